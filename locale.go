package checkout

import (
	"log/slog"
	"strings"
)

// DefaultLocale is used when no locale or an unsupported one is configured.
const DefaultLocale = "en"

// supportedLocales are the ISO-639-1 languages the hosted checkout ships.
var supportedLocales = map[string]struct{}{
	"bg": {}, "cs": {}, "da": {}, "de": {}, "el": {}, "en": {}, "es": {}, "et": {},
	"fi": {}, "fr": {}, "hr": {}, "hu": {}, "it": {}, "lt": {}, "lv": {}, "nb": {},
	"nl": {}, "pl": {}, "pt": {}, "ro": {}, "sk": {}, "sl": {}, "sv": {},
}

// SupportedLocale reports whether locale is served by the hosted checkout.
// Region suffixes are ignored, so "de-AT" is supported when "de" is.
func SupportedLocale(locale string) bool {
	_, ok := supportedLocales[normalizeLocale(locale)]
	return ok
}

func normalizeLocale(locale string) string {
	lang, _, _ := strings.Cut(strings.TrimSpace(locale), "-")
	lang, _, _ = strings.Cut(lang, "_")
	return strings.ToLower(lang)
}

// resolveLocale maps locale onto a supported language, substituting
// DefaultLocale with a warning when it is not supported.
func resolveLocale(locale string, logger *slog.Logger) string {
	if locale == "" {
		return DefaultLocale
	}
	lang := normalizeLocale(locale)
	if _, ok := supportedLocales[lang]; ok {
		return lang
	}
	logger.Warn("checkout: unsupported locale, falling back to default",
		slog.String("locale", locale),
		slog.String("default", DefaultLocale),
	)
	return DefaultLocale
}
