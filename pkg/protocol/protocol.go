// Package protocol defines the MustangChat datagram messages and their codecs.
//
// One message travels per UDP datagram. The canonical framing is binary
// (see BinaryCodec); a JSON framing understood by early clients is also
// available (see JSONCodec). Both produce the same Message values, so the
// server handles them through a single code path.
package protocol

import (
	"errors"
	"fmt"

	"github.com/NicolasHaas/mustangchat/pkg/model"
)

const (
	// MaxDatagramSize is the largest datagram either side will send or accept.
	MaxDatagramSize = 512

	// TypeSize is the size of the big-endian message-type discriminant.
	TypeSize = 4

	// NameFieldSize is the fixed width of a username or channel field.
	NameFieldSize = model.MaxNameLength

	// TextFieldSize is the fixed width of a text field.
	TextFieldSize = model.MaxTextLength
)

// MessageType is the wire discriminant of a message.
type MessageType uint32

const (
	TypeRegister MessageType = iota
	TypeDeregister
	TypeJoin
	TypeLeave
	TypeSay
	TypeListChannels
	TypeWhoIsOn
	TypeKeepAlive
)

func (t MessageType) String() string {
	switch t {
	case TypeRegister:
		return "register"
	case TypeDeregister:
		return "deregister"
	case TypeJoin:
		return "join"
	case TypeLeave:
		return "leave"
	case TypeSay:
		return "say"
	case TypeListChannels:
		return "list"
	case TypeWhoIsOn:
		return "who"
	case TypeKeepAlive:
		return "keepalive"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Valid reports whether t is a known discriminant.
func (t MessageType) Valid() bool {
	return t <= TypeKeepAlive
}

// Message is one decoded datagram. Only the fields relevant to Type are set.
type Message struct {
	Type     MessageType
	Username string // Register
	Channel  string // Join, Leave, Say, WhoIsOn
	Text     string // Say
}

func Register(username string) Message { return Message{Type: TypeRegister, Username: username} }
func Deregister() Message              { return Message{Type: TypeDeregister} }
func Join(channel string) Message      { return Message{Type: TypeJoin, Channel: channel} }
func Leave(channel string) Message     { return Message{Type: TypeLeave, Channel: channel} }
func ListChannels() Message            { return Message{Type: TypeListChannels} }
func WhoIsOn(channel string) Message   { return Message{Type: TypeWhoIsOn, Channel: channel} }
func KeepAlive() Message               { return Message{Type: TypeKeepAlive} }

func Say(channel, text string) Message {
	return Message{Type: TypeSay, Channel: channel, Text: text}
}

// Validate checks the fields a message of this type carries.
func (m Message) Validate() error {
	switch m.Type {
	case TypeRegister:
		return fieldErr("username", model.ValidateUsername(m.Username))
	case TypeJoin, TypeLeave, TypeWhoIsOn:
		return fieldErr("channel", model.ValidateChannelName(m.Channel))
	case TypeSay:
		if err := model.ValidateChannelName(m.Channel); err != nil {
			return fieldErr("channel", err)
		}
		return fieldErr("text", model.ValidateText(m.Text))
	case TypeDeregister, TypeListChannels, TypeKeepAlive:
		return nil
	default:
		return ErrUnknownType
	}
}

func fieldErr(field string, err error) error {
	if err == nil {
		return nil
	}
	return &FieldError{Field: field, Err: err}
}

var (
	ErrShortFrame    = errors.New("frame shorter than type header")
	ErrFrameLength   = errors.New("frame length does not match message type")
	ErrUnknownType   = errors.New("unknown message type")
	ErrInvalidUTF8   = errors.New("field is not valid UTF-8")
	ErrBadPadding    = errors.New("field padding contains non-NUL bytes")
	ErrMalformedJSON = errors.New("malformed JSON message")
	ErrTooLarge      = errors.New("datagram exceeds maximum size")
)

// FieldError reports a problem with one named field of a message.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// DecodeError is returned for every datagram a codec cannot turn into a
// valid Message.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return "protocol: decode " + e.Codec + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err came from a failed decode.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Codec converts between Messages and datagram payloads.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// Codec names accepted by NewCodec.
const (
	WireBinary = "binary"
	WireJSON   = "json"
)

// NewCodec returns the codec registered under name. An empty name selects
// the binary codec.
func NewCodec(name string) (Codec, error) {
	switch name {
	case WireBinary, "":
		return BinaryCodec{}, nil
	case WireJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown wire format %q (valid: %s, %s)", name, WireBinary, WireJSON)
	}
}
