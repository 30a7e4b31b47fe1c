package protocol

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// Error is returned for malformed frames: bad base64, unknown control types,
// unknown key names. A protocol error rejects the individual frame; the
// session keeps running.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol error in %s: %s", e.Field, e.Reason)
}

// EncodePayload encodes raw PTY bytes for transport.
func EncodePayload(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodePayload reverses EncodePayload. DecodePayload(EncodePayload(b))
// returns b for every byte sequence, including empty.
func DecodePayload(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &Error{Field: "payload", Reason: "invalid base64: " + err.Error()}
	}
	return data, nil
}

// Marshal serializes a message for the wire.
func Marshal(m *Message) ([]byte, error) {
	return sonic.Marshal(m)
}

// Unmarshal parses and validates a wire message. The payload matching the
// type tag must be present; control messages are validated in full.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, &Error{Field: "message", Reason: "malformed JSON: " + err.Error()}
	}

	switch m.Type {
	case TypeOutput:
		if m.Output == nil {
			return nil, missingPayload(m.Type)
		}
	case TypeGap:
		if m.Gap == nil {
			return nil, missingPayload(m.Type)
		}
	case TypeInput:
		if m.Input == nil {
			return nil, missingPayload(m.Type)
		}
	case TypeControl:
		if m.Control == nil {
			return nil, missingPayload(m.Type)
		}
		if err := m.Control.Validate(); err != nil {
			return nil, err
		}
	case TypeLifecycle:
		if m.Lifecycle == nil {
			return nil, missingPayload(m.Type)
		}
	case TypeError:
		if m.Error == nil {
			return nil, missingPayload(m.Type)
		}
	default:
		return nil, &Error{Field: "type", Reason: "unknown message type: " + m.Type}
	}

	return &m, nil
}

func missingPayload(typ string) error {
	return &Error{Field: typ, Reason: "missing payload for type " + typ}
}
