package protocol

import (
	"encoding/json"
	"fmt"
)

// MaxJSONDatagramSize bounds JSON datagrams. JSON escaping can inflate a
// bounded Say well past MaxDatagramSize, so this framing gets more room.
const MaxJSONDatagramSize = 2048

// JSONCodec speaks the self-describing framing used by the first
// generation of clients:
//
//	{"type": "say", "username": "alice", "channel": "dev", "text": "hi"}
//
// Field bounds match BinaryCodec exactly.
type JSONCodec struct{}

type jsonMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Text     string `json:"text,omitempty"`
}

var jsonTypes = map[string]MessageType{
	"login":     TypeRegister,
	"logout":    TypeDeregister,
	"join":      TypeJoin,
	"leave":     TypeLeave,
	"say":       TypeSay,
	"list":      TypeListChannels,
	"who":       TypeWhoIsOn,
	"keepalive": TypeKeepAlive,
}

func jsonTypeName(t MessageType) (string, bool) {
	for name, mt := range jsonTypes {
		if mt == t {
			return name, true
		}
	}
	return "", false
}

func (JSONCodec) Name() string { return WireJSON }

// Encode serializes m as JSON. The username travels only with login; the
// server identifies every other message by its source endpoint.
func (JSONCodec) Encode(m Message) ([]byte, error) {
	name, ok := jsonTypeName(m.Type)
	if !ok {
		return nil, fmt.Errorf("protocol: encode: %w", ErrUnknownType)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, err)
	}
	data, err := json.Marshal(jsonMessage{
		Type:     name,
		Username: m.Username,
		Channel:  m.Channel,
		Text:     m.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data) > MaxJSONDatagramSize {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, ErrTooLarge)
	}
	return data, nil
}

// Decode parses a JSON datagram. Every failure is a *DecodeError.
func (JSONCodec) Decode(data []byte) (Message, error) {
	m, err := decodeJSON(data)
	if err != nil {
		return Message{}, &DecodeError{Codec: WireJSON, Err: err}
	}
	return m, nil
}

func decodeJSON(data []byte) (Message, error) {
	if len(data) > MaxJSONDatagramSize {
		return Message{}, ErrTooLarge
	}
	var wire jsonMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	t, ok := jsonTypes[wire.Type]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, wire.Type)
	}

	m := Message{Type: t}
	switch t {
	case TypeRegister:
		m.Username = wire.Username
	case TypeJoin, TypeLeave, TypeWhoIsOn:
		m.Channel = wire.Channel
	case TypeSay:
		m.Channel = wire.Channel
		m.Text = wire.Text
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
