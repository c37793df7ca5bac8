package checkout

import (
	"encoding/json"
	"log/slog"

	"github.com/sumup/checkout/message"
)

// IntentType is the kind of intent the embed completes.
type IntentType string

const (
	IntentPayment IntentType = "payment"
	IntentPayout  IntentType = "payout"
)

// Environment selects the default hosted checkout endpoint.
type Environment string

const (
	Production Environment = "production"
	Sandbox    Environment = "sandbox"
)

var defaultBaseURLs = map[Environment]string{
	Production: "https://checkout.sumup.com",
	Sandbox:    "https://checkout.sandbox.sumup.com",
}

// Version is reported to the hosted checkout in the version query parameter
// unless WithSDKVersion overrides it.
const Version = "1.4.0"

// Style overrides forwarded to the hosted UI during the handshake.
type Style map[string]any

// Callbacks receive results of the rendered (non-headless) flow.
type (
	CompleteFunc         func(payload json.RawMessage)
	FailFunc             func(payload json.RawMessage)
	DimensionsChangeFunc func(d message.Dimensions)
	ValidityChangeFunc   func(allValid bool)
)

type config struct {
	IntentType  IntentType  `json:"intentType" validate:"required,oneof=payment payout"`
	IntentID    string      `json:"intentId" validate:"required,max=128"`
	Environment Environment `json:"environment" validate:"required,oneof=production sandbox"`
	BaseURL     string      `json:"baseUrl" validate:"omitempty,http_url"`
	FieldsURL   string      `json:"fieldsUrl" validate:"omitempty,http_url"`
	SDKVersion  string      `json:"version" validate:"required,max=64"`
	Locale      string      `json:"locale"`
	Namespace   string      `json:"namespace" validate:"required,excludesall=:@"`
	Sandbox     []string    `json:"sandbox" validate:"dive,sandbox_token"`

	style              Style
	onComplete         CompleteFunc
	onFail             FailFunc
	onDimensionsChange DimensionsChangeFunc
	onValidityChange   ValidityChangeFunc
	logger             *slog.Logger
	strictExternal     bool
	popupWidth         int
	popupHeight        int
}

func defaultConfig(intentType IntentType, intentID string) config {
	return config{
		IntentType:  intentType,
		IntentID:    intentID,
		Environment: Production,
		SDKVersion:  Version,
		Locale:      DefaultLocale,
		Namespace:   message.DefaultNamespace,
		logger:      slog.New(slog.DiscardHandler),
		popupWidth:  500,
		popupHeight: 700,
	}
}

// Option customises an embed, headless handler or field set.
type Option func(*config)

// WithEnvironment selects the production or sandbox endpoint.
func WithEnvironment(env Environment) Option {
	return func(cfg *config) {
		cfg.Environment = env
	}
}

// WithBaseURL overrides the hosted checkout endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *config) {
		cfg.BaseURL = url
	}
}

// WithFieldsURL overrides the endpoint serving standalone card fields.
func WithFieldsURL(url string) Option {
	return func(cfg *config) {
		cfg.FieldsURL = url
	}
}

// WithSDKVersion sets the version string reported to the hosted checkout.
// Wrappers that bundle the SDK pass their own build version here.
func WithSDKVersion(version string) Option {
	return func(cfg *config) {
		cfg.SDKVersion = version
	}
}

// WithLocale sets the UI language. Unsupported locales fall back to
// DefaultLocale with a warning.
func WithLocale(locale string) Option {
	return func(cfg *config) {
		cfg.Locale = locale
	}
}

// WithNamespace changes the handshake and operation namespace, "sdk" by default.
func WithNamespace(namespace string) Option {
	return func(cfg *config) {
		cfg.Namespace = namespace
	}
}

// WithSandboxAttributes sets the iframe sandbox allow-list, e.g.
// "allow-scripts", "allow-same-origin".
func WithSandboxAttributes(tokens ...string) Option {
	return func(cfg *config) {
		cfg.Sandbox = append(cfg.Sandbox, tokens...)
	}
}

// WithStyle forwards style overrides to the hosted UI.
func WithStyle(style Style) Option {
	return func(cfg *config) {
		cfg.style = style
	}
}

// WithOnComplete registers the completion callback. Headless handlers
// refuse it: their results arrive through Request.
func WithOnComplete(fn CompleteFunc) Option {
	return func(cfg *config) {
		cfg.onComplete = fn
	}
}

// WithOnFail registers the failure callback. Headless handlers refuse it.
func WithOnFail(fn FailFunc) Option {
	return func(cfg *config) {
		cfg.onFail = fn
	}
}

// WithOnDimensionsChange opts into content size notifications.
func WithOnDimensionsChange(fn DimensionsChangeFunc) Option {
	return func(cfg *config) {
		cfg.onDimensionsChange = fn
	}
}

// WithOnValidityChange registers the callback fired when the mounted card
// fields become all valid or stop being all valid.
func WithOnValidityChange(fn ValidityChangeFunc) Option {
	return func(cfg *config) {
		cfg.onValidityChange = fn
	}
}

// WithLogger routes SDK warnings to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithStrictExternalMessages makes popup and redirect flows ignore
// unrecognised messages instead of settling on them.
func WithStrictExternalMessages() Option {
	return func(cfg *config) {
		cfg.strictExternal = true
	}
}

// WithPopupSize sets the popup window size in CSS pixels.
func WithPopupSize(width, height int) Option {
	if width <= 0 || height <= 0 {
		panic("checkout: popup size must be positive")
	}
	return func(cfg *config) {
		cfg.popupWidth = width
		cfg.popupHeight = height
	}
}

func buildConfig(intentType IntentType, intentID string, opts []Option) (config, error) {
	cfg := defaultConfig(intentType, intentID)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	cfg.Locale = resolveLocale(cfg.Locale, cfg.logger)
	return cfg, nil
}

func (cfg config) baseURL() string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return defaultBaseURLs[cfg.Environment]
}

func (cfg config) fieldsURL() string {
	if cfg.FieldsURL != "" {
		return cfg.FieldsURL
	}
	return cfg.baseURL() + "/fields"
}
