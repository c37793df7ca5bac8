package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	canonicaljson "github.com/gibson042/canonicaljson-go"
)

// Encode serialises msg as canonical JSON so byte-oriented transports
// produce identical frames for identical messages.
func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, ErrEmptyType
	}
	out, err := Canonical(msg)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", msg.Type, err)
	}
	return out, nil
}

// Canonical renders any JSON-encodable value as canonical JSON with sorted
// object members and no insignificant whitespace. Number literals keep
// their exact digits.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := canonicaljson.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return canonicaljson.Marshal(generic)
}

// Parse decodes a single JSON message frame.
func Parse(raw []byte) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Message{}, errors.New("message: empty frame")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("message: parse frame: %w", err)
	}
	if dec.More() {
		return Message{}, errors.New("message: unexpected data after frame")
	}
	if msg.Type == "" {
		return Message{}, ErrEmptyType
	}
	return msg, nil
}
