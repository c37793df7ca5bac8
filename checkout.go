package checkout

import (
	"context"
)

// Checkout renders the full hosted checkout UI for one intent and forwards
// its completion events to the configured callbacks.
type Checkout struct {
	e *embed
}

// New prepares a checkout for the intent. Nothing is mounted until Render.
func New(host Host, intentType IntentType, intentID string, opts ...Option) (*Checkout, error) {
	cfg, err := buildConfig(intentType, intentID, opts)
	if err != nil {
		return nil, err
	}
	return &Checkout{e: newEmbed(host, cfg, false)}, nil
}

// Render mounts the checkout into the element selector resolves to. A
// previous render on the same instance is torn down first.
func (c *Checkout) Render(selector string) error {
	_, err := c.e.mount(selector)
	return err
}

// SetLocale switches the UI language once the current render is ready.
// Unsupported locales fall back to DefaultLocale with a warning.
func (c *Checkout) SetLocale(ctx context.Context, locale string) error {
	return c.e.setLocale(ctx, locale)
}

// AbortService stops listening to the current render once it is ready.
func (c *Checkout) AbortService(ctx context.Context) error {
	return c.e.abortService(ctx)
}

// Close detaches the current render immediately. It is safe to call more
// than once.
func (c *Checkout) Close() {
	c.e.close()
}

// State reports the lifecycle position of the embed.
func (c *Checkout) State() State {
	return c.e.State()
}
