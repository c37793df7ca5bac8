package checkout

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// queryParam is one form-styled query parameter. Values are strings, bools
// or flat map[string]interface{} objects exploded into one pair per key.
type queryParam struct {
	name  string
	value interface{}
}

func encodeQuery(params []queryParam) (string, error) {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		encoded, err := runtime.StyleParamWithLocation("form", true, p.name, runtime.ParamLocationQuery, p.value)
		if err != nil {
			return "", fmt.Errorf("encode %s query parameter: %w", p.name, err)
		}
		if encoded != "" {
			parts = append(parts, encoded)
		}
	}
	return strings.Join(parts, "&"), nil
}

func (cfg config) commonParams(parent string) []queryParam {
	params := []queryParam{
		{name: "sdk", value: true},
		{name: "parent", value: parent},
		{name: "version", value: cfg.SDKVersion},
		{name: "lang", value: cfg.Locale},
	}
	if cfg.Environment == Sandbox {
		params = append(params, queryParam{name: "sandbox", value: true})
	}
	return params
}

// embedURL is the iframe, popup or redirect source for the intent.
func (cfg config) embedURL(parent string) (string, error) {
	params := cfg.commonParams(parent)
	if cfg.onDimensionsChange != nil {
		params = append(params, queryParam{name: "onDimensionsChange", value: true})
	}
	query, err := encodeQuery(params)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(cfg.baseURL(), "/")
	return fmt.Sprintf("%s/%s/%s?%s", base, cfg.IntentType, url.PathEscape(cfg.IntentID), query), nil
}

// fieldURL is the iframe source of a standalone card field.
func (cfg config) fieldURL(parent string, field FieldType, opts FieldOptions) (string, error) {
	params := append(cfg.commonParams(parent),
		queryParam{name: "host", value: base64.StdEncoding.EncodeToString([]byte(parent))},
		queryParam{name: "type", value: string(field)},
		queryParam{name: "required", value: field.required()},
	)
	if opts.Placeholder != "" {
		params = append(params, queryParam{name: "placeholder", value: opts.Placeholder})
	}
	if style := opts.Style.params(); len(style) > 0 {
		params = append(params, queryParam{name: "style", value: style})
	}
	if opts.FontSourceCSS != "" {
		params = append(params, queryParam{name: "fontSourceCss", value: opts.FontSourceCSS})
	}
	query, err := encodeQuery(params)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(cfg.fieldsURL(), "/")
	return fmt.Sprintf("%s/%s?%s", base, field, query), nil
}

// originOf returns the scheme://host[:port] origin of rawURL.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
