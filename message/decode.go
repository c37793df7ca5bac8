package message

import (
	"encoding/json"
	"strings"
)

// Kind labels a decoded inbound message.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindInit
	KindRPCResponse
	KindComplete
	KindFail
	KindDimensionsChange
	KindFieldInit
	KindFieldEvent
	KindVaultSubmit
)

var kindNames = map[Kind]string{
	KindUnrecognized:     "unrecognized",
	KindInit:             "init",
	KindRPCResponse:      "rpc_response",
	KindComplete:         "complete",
	KindFail:             "fail",
	KindDimensionsChange: "dimensions_change",
	KindFieldInit:        "field_init",
	KindFieldEvent:       "field_event",
	KindVaultSubmit:      "vault_submit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is implemented by every decoded inbound message variant.
type Event interface {
	Kind() Kind
}

// Init is the remote's readiness handshake, "<namespace>:init".
type Init struct {
	Namespace string
	Data      json.RawMessage
}

// RPCResponse answers a call made with the same API type.
type RPCResponse struct {
	API    string
	Result Result
}

// Complete reports a finished checkout flow.
type Complete struct {
	Payload json.RawMessage
}

// Fail reports a failed checkout flow.
type Fail struct {
	Payload json.RawMessage
}

// Dimensions is the rendered size of the remote content.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DimensionsChange carries new content dimensions.
type DimensionsChange struct {
	Dimensions Dimensions
}

// FieldInit signals that a standalone field frame is ready.
type FieldInit struct {
	Field string
}

// FieldEvent is a "<field>@<event>" notification.
type FieldEvent struct {
	Field string
	Event string
	Data  json.RawMessage
}

// VaultSubmit is the outcome of a vault submission.
type VaultSubmit struct {
	Success bool
	Payload json.RawMessage
}

// Unrecognized wraps any message no other variant matched.
type Unrecognized struct {
	Message Message
}

func (Init) Kind() Kind             { return KindInit }
func (RPCResponse) Kind() Kind      { return KindRPCResponse }
func (Complete) Kind() Kind         { return KindComplete }
func (Fail) Kind() Kind             { return KindFail }
func (DimensionsChange) Kind() Kind { return KindDimensionsChange }
func (FieldInit) Kind() Kind        { return KindFieldInit }
func (FieldEvent) Kind() Kind       { return KindFieldEvent }
func (VaultSubmit) Kind() Kind      { return KindVaultSubmit }
func (Unrecognized) Kind() Kind     { return KindUnrecognized }

// StatusResolved marks a successful RPC response.
const StatusResolved = "resolved"

// Result is the status-tagged body of an RPC response.
type Result struct {
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID *uint64         `json:"requestId,omitempty"`
}

// Resolved reports whether the remote completed the call successfully.
func (r Result) Resolved() bool {
	return r.Status == StatusResolved
}

// Decode classifies msg once. namespace is the handshake/RPC namespace of
// the receiving component (usually DefaultNamespace).
func Decode(msg Message, namespace string) Event {
	switch msg.Type {
	case "":
		return Unrecognized{Message: msg}
	case InitType(namespace):
		return Init{Namespace: namespace, Data: msg.Data}
	case TypeComplete:
		return Complete{Payload: msg.Data}
	case TypeFail:
		return Fail{Payload: msg.Data}
	case TypeDimensionsChange:
		var d Dimensions
		if err := msg.DecodeData(&d); err != nil {
			return Unrecognized{Message: msg}
		}
		return DimensionsChange{Dimensions: d}
	case TypeVaultSuccess:
		return VaultSubmit{Success: true, Payload: msg.Data}
	case TypeVaultError:
		return VaultSubmit{Success: false, Payload: msg.Data}
	}

	if field, event, ok := strings.Cut(msg.Type, fieldEventSep); ok && field != "" && event != "" {
		return FieldEvent{Field: field, Event: event, Data: msg.Data}
	}
	if field, ok := strings.CutSuffix(msg.Type, initSuffix); ok && field != "" {
		return FieldInit{Field: field}
	}
	if strings.HasPrefix(msg.Type, namespace+namespaceSep) {
		var res Result
		if err := msg.DecodeData(&res); err != nil || res.Status == "" {
			return Unrecognized{Message: msg}
		}
		return RPCResponse{API: msg.Type, Result: res}
	}
	return Unrecognized{Message: msg}
}
