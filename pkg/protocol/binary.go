package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Frame sizes per message type.
// [type(4)]                        = 4 bytes  (Deregister, ListChannels, KeepAlive)
// [type(4) | name(32)]             = 36 bytes (Register, Join, Leave, WhoIsOn)
// [type(4) | channel(32) | text(256)] = 292 bytes (Say)
const (
	EmptyFrameSize = TypeSize
	NameFrameSize  = TypeSize + NameFieldSize
	SayFrameSize   = TypeSize + NameFieldSize + TextFieldSize
)

// BinaryCodec is the canonical fixed-width framing: a 4-byte big-endian type
// followed by NUL-padded UTF-8 fields.
type BinaryCodec struct{}

func (BinaryCodec) Name() string { return WireBinary }

// FrameSize returns the exact datagram size for a message type, or 0 if the
// type is unknown.
func FrameSize(t MessageType) int {
	switch t {
	case TypeDeregister, TypeListChannels, TypeKeepAlive:
		return EmptyFrameSize
	case TypeRegister, TypeJoin, TypeLeave, TypeWhoIsOn:
		return NameFrameSize
	case TypeSay:
		return SayFrameSize
	default:
		return 0
	}
}

// Encode serializes m into a freshly allocated frame.
func (BinaryCodec) Encode(m Message) ([]byte, error) {
	size := FrameSize(m.Type)
	if size == 0 {
		return nil, fmt.Errorf("protocol: encode: %w", ErrUnknownType)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, err)
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:TypeSize], uint32(m.Type))

	// Validate bounds every field to its width; the tail stays NUL.
	switch m.Type {
	case TypeRegister:
		copy(buf[TypeSize:NameFrameSize], m.Username)
	case TypeJoin, TypeLeave, TypeWhoIsOn:
		copy(buf[TypeSize:NameFrameSize], m.Channel)
	case TypeSay:
		copy(buf[TypeSize:NameFrameSize], m.Channel)
		copy(buf[NameFrameSize:SayFrameSize], m.Text)
	}
	return buf, nil
}

// Decode parses a frame. Every failure is a *DecodeError.
func (BinaryCodec) Decode(data []byte) (Message, error) {
	m, err := decodeBinary(data)
	if err != nil {
		return Message{}, &DecodeError{Codec: WireBinary, Err: err}
	}
	return m, nil
}

func decodeBinary(data []byte) (Message, error) {
	if len(data) < TypeSize {
		return Message{}, ErrShortFrame
	}
	if len(data) > MaxDatagramSize {
		return Message{}, ErrTooLarge
	}

	m := Message{Type: MessageType(binary.BigEndian.Uint32(data[0:TypeSize]))}
	size := FrameSize(m.Type)
	if size == 0 {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownType, uint32(m.Type))
	}
	if len(data) != size {
		return Message{}, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrFrameLength, m.Type, size, len(data))
	}

	var err error
	switch m.Type {
	case TypeRegister:
		m.Username, err = getField("username", data[TypeSize:NameFrameSize])
	case TypeJoin, TypeLeave, TypeWhoIsOn:
		m.Channel, err = getField("channel", data[TypeSize:NameFrameSize])
	case TypeSay:
		if m.Channel, err = getField("channel", data[TypeSize:NameFrameSize]); err == nil {
			m.Text, err = getField("text", data[NameFrameSize:SayFrameSize])
		}
	}
	if err != nil {
		return Message{}, err
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// getField strips the trailing NUL fill and rejects fields whose content
// contains NUL or is not UTF-8.
func getField(name string, b []byte) (string, error) {
	content := bytes.TrimRight(b, "\x00")
	if bytes.IndexByte(content, 0) >= 0 {
		return "", &FieldError{Field: name, Err: ErrBadPadding}
	}
	if !utf8.Valid(content) {
		return "", &FieldError{Field: name, Err: ErrInvalidUTF8}
	}
	return string(content), nil
}
