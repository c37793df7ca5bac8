// Package message defines the wire unit exchanged between the host page and
// the hosted checkout frames, plus the tagged decoding of inbound messages.
//
// Every message is `{"type": string, "data"?: object}`. Type is an opaque,
// namespaced tag and is the only thing correlation relies on.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message is the unit posted between browsing contexts.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Well-known message types.
const (
	TypeChangeLanguage   = "changeLanguage"
	TypeComplete         = "onComplete"
	TypeFail             = "onFail"
	TypeDimensionsChange = "dimensionsChange"
	TypeVaultSubmit      = "vaultSubmit"
	TypeVaultSuccess     = "vaultSubmit:success"
	TypeVaultError       = "vaultSubmit:error"
)

// DefaultNamespace prefixes RPC operation names and the handshake.
const DefaultNamespace = "sdk"

// Field events carried as "<fieldType>@<event>".
const (
	EventFocus            = "focus"
	EventBlur             = "blur"
	EventError            = "error"
	EventChangeInput      = "changeInput"
	EventCardNumberChange = "cardNumberChange"
)

const (
	initSuffix    = ":init"
	fieldEventSep = "@"
	namespaceSep  = ":"
)

// ErrEmptyType is returned when a message has no type tag.
var ErrEmptyType = errors.New("message: type is required")

// New builds a message, encoding data as its JSON payload. A nil data value
// produces a message without a data member.
func New(typ string, data any) (Message, error) {
	if typ == "" {
		return Message{}, ErrEmptyType
	}
	msg := Message{Type: typ}
	if data == nil {
		return msg, nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		msg.Data = raw
		return msg, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("message: encode %s data: %w", typ, err)
	}
	msg.Data = b
	return msg, nil
}

// MustNew is like New but panics on encoding errors. It is meant for
// literal payloads that are known to encode.
func MustNew(typ string, data any) Message {
	msg, err := New(typ, data)
	if err != nil {
		panic(err)
	}
	return msg
}

// DataMap decodes the payload into a generic mapping. A message without
// data yields an empty, non-nil map.
func (m Message) DataMap() (map[string]any, error) {
	out := map[string]any{}
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(m.Data, &out); err != nil {
		return nil, fmt.Errorf("message: decode %s data: %w", m.Type, err)
	}
	return out, nil
}

// DecodeData unmarshals the payload into v. Missing data leaves v untouched.
func (m Message) DecodeData(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("message: decode %s data: %w", m.Type, err)
	}
	return nil
}

// InitType returns the handshake type for a namespace, e.g. "sdk:init".
func InitType(namespace string) string {
	return namespace + initSuffix
}

// OperationType returns the RPC type for an operation, e.g. "sdk:getIntentDetails".
// Names that already carry a namespace are returned unchanged.
func OperationType(namespace, operation string) string {
	if strings.Contains(operation, namespaceSep) {
		return operation
	}
	return namespace + namespaceSep + operation
}

// FieldEventType returns "<field>@<event>".
func FieldEventType(field, event string) string {
	return field + fieldEventSep + event
}

// FieldInitType returns "<field>:init".
func FieldInitType(field string) string {
	return field + initSuffix
}
