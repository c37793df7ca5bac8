package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/gate"
	"github.com/sumup/checkout/message"
)

// FieldType identifies a standalone card field.
type FieldType string

const (
	FieldCardNumber     FieldType = "cardNumber"
	FieldCardCVV        FieldType = "cardCvv"
	FieldCardExpiry     FieldType = "cardExpiry"
	FieldCardHolderName FieldType = "cardHolderName"
)

// RequiredFields must all be mounted before Submit. The order decides which
// missing field is reported first.
var RequiredFields = []FieldType{FieldCardNumber, FieldCardCVV, FieldCardExpiry, FieldCardHolderName}

func (f FieldType) known() bool {
	switch f {
	case FieldCardNumber, FieldCardCVV, FieldCardExpiry, FieldCardHolderName:
		return true
	default:
		return false
	}
}

func (f FieldType) required() bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}

// FieldStyle is forwarded to the field frame as style query parameters.
type FieldStyle struct {
	Color            string `json:"color,omitempty"`
	BackgroundColor  string `json:"backgroundColor,omitempty"`
	FontFamily       string `json:"fontFamily,omitempty"`
	FontSize         string `json:"fontSize,omitempty"`
	FontWeight       string `json:"fontWeight,omitempty"`
	PlaceholderColor string `json:"placeholderColor,omitempty"`
	ErrorColor       string `json:"errorColor,omitempty"`
}

func (s FieldStyle) params() map[string]interface{} {
	out := make(map[string]interface{})
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("color", s.Color)
	set("backgroundColor", s.BackgroundColor)
	set("fontFamily", s.FontFamily)
	set("fontSize", s.FontSize)
	set("fontWeight", s.FontWeight)
	set("placeholderColor", s.PlaceholderColor)
	set("errorColor", s.ErrorColor)
	return out
}

// FieldChange is the payload of a changeInput event.
type FieldChange struct {
	Valid bool `json:"valid"`
	Empty bool `json:"empty"`
}

// CardNumberChange is the payload of a cardNumberChange event.
type CardNumberChange struct {
	Brand string `json:"brand"`
}

// FieldOptions configures one mounted field.
type FieldOptions struct {
	Placeholder   string
	Style         FieldStyle
	FontSourceCSS string

	OnFocus            func()
	OnBlur             func()
	OnError            func(payload json.RawMessage)
	OnChange           func(FieldChange)
	OnCardNumberChange func(CardNumberChange)
}

type mountRequest struct {
	Field    FieldType `json:"field" validate:"required,field_type"`
	Selector string    `json:"selector" validate:"required"`
}

type mountedField struct {
	field FieldType
	win   channel.Window
	ready *gate.Ready
	opts  FieldOptions
}

// Fields manages the standalone card field frames of one intent. All
// frames share a single subscription to the host's message event.
type Fields struct {
	host   Host
	cfg    config
	origin string

	mu          sync.Mutex
	unsubscribe func()
	order       []FieldType
	mounted     map[FieldType]*mountedField
	validity    map[FieldType]bool
	allValid    bool
	submit      *gate.Gate[json.RawMessage]
	closed      bool
}

// NewFields prepares a field set for the intent.
func NewFields(host Host, intentType IntentType, intentID string, opts ...Option) (*Fields, error) {
	if host == nil {
		panic("checkout: host is required")
	}
	cfg, err := buildConfig(intentType, intentID, opts)
	if err != nil {
		return nil, err
	}
	origin, err := originOf(cfg.fieldsURL())
	if err != nil {
		return nil, newError(ErrInvalidConfig, "checkout: resolve fields origin", withCause(err), withParam("fieldsUrl"))
	}
	return &Fields{
		host:     host,
		cfg:      cfg,
		origin:   origin,
		mounted:  make(map[FieldType]*mountedField),
		validity: make(map[FieldType]bool),
	}, nil
}

// Mount renders field into the element selector resolves to. Mounting a
// field again replaces its frame.
func (f *Fields) Mount(field FieldType, selector string, opts FieldOptions) error {
	if err := validate.Struct(mountRequest{Field: field, Selector: selector}); err != nil {
		return normalizeValidationError(err)
	}
	src, err := f.cfg.fieldURL(f.host.Origin(), field, opts)
	if err != nil {
		return newError(ErrInvalidConfig, "checkout: build field url", withCause(err))
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return channel.ErrClosed
	}
	changed, err := f.mountLocked(field, selector, src, opts)
	all := f.allValid
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.notifyValidity(changed, all)
	return nil
}

// mountLocked replaces the frame of field. A fresh frame starts invalid, so
// it reports whether that flipped the all-valid flag.
func (f *Fields) mountLocked(field FieldType, selector, src string, opts FieldOptions) (bool, error) {
	win, err := f.host.MountFrame(selector, FrameSpec{
		Src:     src,
		Name:    fmt.Sprintf("sumup-%s-%s", field, uuid.NewString()),
		Title:   string(field),
		Sandbox: f.cfg.Sandbox,
	})
	if err != nil {
		return false, mountError(selector, err)
	}
	if win == nil {
		return false, newError(ErrContainerNotFound, "checkout: no element matches "+selector, withParam("selector"))
	}

	if f.unsubscribe == nil {
		f.unsubscribe = f.host.Subscribe(f.handle)
	}
	if _, ok := f.mounted[field]; !ok {
		f.order = append(f.order, field)
	}
	f.mounted[field] = &mountedField{field: field, win: win, ready: gate.NewReady(), opts: opts}
	f.validity[field] = false
	return f.recomputeLocked(), nil
}

// Mounted lists the mounted fields in mount order.
func (f *Fields) Mounted() []FieldType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FieldType(nil), f.order...)
}

// AllValid reports whether every mounted field last reported valid input.
func (f *Fields) AllValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allValid
}

func (f *Fields) handle(ev channel.Event) {
	if ev.Origin != f.origin {
		return
	}
	decoded := message.Decode(ev.Message, f.cfg.Namespace)
	if v, ok := decoded.(message.VaultSubmit); ok {
		f.settleSubmit(v)
		return
	}

	f.mu.Lock()
	fields := make([]*mountedField, 0, len(f.order))
	for _, name := range f.order {
		fields = append(fields, f.mounted[name])
	}
	f.mu.Unlock()

	for _, mf := range fields {
		f.deliver(mf, decoded)
	}
}

// deliver runs the per-field listener; it ignores events for other fields.
func (f *Fields) deliver(mf *mountedField, ev message.Event) {
	switch v := ev.(type) {
	case message.FieldInit:
		if v.Field == string(mf.field) {
			mf.ready.Resolve(struct{}{})
		}
	case message.FieldEvent:
		if v.Field != string(mf.field) {
			return
		}
		switch v.Event {
		case message.EventFocus:
			if mf.opts.OnFocus != nil {
				mf.opts.OnFocus()
			}
		case message.EventBlur:
			if mf.opts.OnBlur != nil {
				mf.opts.OnBlur()
			}
		case message.EventError:
			if mf.opts.OnError != nil {
				mf.opts.OnError(v.Data)
			}
		case message.EventChangeInput:
			var change FieldChange
			if err := decodeEventData(v.Data, &change); err != nil {
				return
			}
			f.updateValidity(mf, change.Valid)
			if mf.opts.OnChange != nil {
				mf.opts.OnChange(change)
			}
		case message.EventCardNumberChange:
			var change CardNumberChange
			if err := decodeEventData(v.Data, &change); err != nil {
				return
			}
			if mf.opts.OnCardNumberChange != nil {
				mf.opts.OnCardNumberChange(change)
			}
		}
	}
}

func decodeEventData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// updateValidity records a field's validity and fires the validity
// callback only when the all-valid flag flips.
func (f *Fields) updateValidity(mf *mountedField, valid bool) {
	f.mu.Lock()
	if f.mounted[mf.field] != mf {
		f.mu.Unlock()
		return
	}
	f.validity[mf.field] = valid
	changed := f.recomputeLocked()
	all := f.allValid
	f.mu.Unlock()

	f.notifyValidity(changed, all)
}

// recomputeLocked derives the all-valid flag and reports whether it flipped.
func (f *Fields) recomputeLocked() bool {
	all := len(f.validity) > 0
	for _, ok := range f.validity {
		all = all && ok
	}
	changed := all != f.allValid
	f.allValid = all
	return changed
}

func (f *Fields) notifyValidity(changed, all bool) {
	if changed && f.cfg.onValidityChange != nil {
		f.cfg.onValidityChange(all)
	}
}

func (f *Fields) settleSubmit(v message.VaultSubmit) {
	f.mu.Lock()
	slot := f.submit
	f.submit = nil
	f.mu.Unlock()
	if slot == nil {
		return
	}
	if v.Success {
		slot.Resolve(v.Payload)
		return
	}
	slot.Reject(newError(ErrSubmitFailed, ErrSubmitFailed.Message, withPayload(v.Payload)))
}

// Submit asks the card number frame to vault the entered card and waits for
// the outcome. Every required field must be mounted. A newer Submit replaces
// this one, which then returns an error matching ErrSubmitSuperseded.
func (f *Fields) Submit(ctx context.Context, payload any) (json.RawMessage, error) {
	data, err := f.submitData(payload)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, channel.ErrClosed
	}
	for _, field := range RequiredFields {
		if _, ok := f.mounted[field]; !ok {
			f.mu.Unlock()
			return nil, newError(ErrMissingField,
				fmt.Sprintf("checkout: %s field is required", field),
				withParam(string(field)),
			)
		}
	}
	target := f.mounted[FieldCardNumber]
	slot := gate.New[json.RawMessage]()
	previous := f.submit
	f.submit = slot
	f.mu.Unlock()

	if previous != nil {
		previous.Reject(ErrSubmitSuperseded)
	}
	defer f.releaseSubmit(slot)

	if _, err := target.ready.Wait(ctx); err != nil {
		return nil, err
	}
	if slot.Settled() {
		return slot.Wait(ctx)
	}
	if err := target.win.PostMessage(message.Message{Type: message.TypeVaultSubmit, Data: data}, f.origin); err != nil {
		return nil, err
	}
	return slot.Wait(ctx)
}

func (f *Fields) submitData(payload any) (json.RawMessage, error) {
	base := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode submit payload: %w", err)
		}
		if len(b) == 0 || b[0] != '{' {
			return nil, newError(ErrInvalidConfig, "checkout: submit payload must be an object", withParam("payload"))
		}
		base = b
	}
	intent, err := json.Marshal(map[string]string{"intentId": f.cfg.IntentID})
	if err != nil {
		return nil, err
	}
	merged, err := runtime.JSONMerge(base, intent)
	if err != nil {
		return nil, fmt.Errorf("merge submit payload: %w", err)
	}
	return merged, nil
}

func (f *Fields) releaseSubmit(slot *gate.Gate[json.RawMessage]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submit == slot {
		f.submit = nil
	}
}

// Close detaches the shared subscription and fails a pending Submit. It is
// safe to call more than once.
func (f *Fields) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	unsubscribe := f.unsubscribe
	slot := f.submit
	f.submit = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if slot != nil {
		slot.Reject(channel.ErrClosed)
	}
}
