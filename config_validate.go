package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// sandboxTokens is the iframe sandbox allow-list the hosted checkout supports.
var sandboxTokens = map[string]struct{}{
	"allow-forms":                             {},
	"allow-modals":                            {},
	"allow-popups":                            {},
	"allow-popups-to-escape-sandbox":          {},
	"allow-same-origin":                       {},
	"allow-scripts":                           {},
	"allow-top-navigation":                    {},
	"allow-top-navigation-by-user-activation": {},
	"allow-storage-access-by-user-activation": {},
}

var validate = newValidator()

func (cfg config) validate() error {
	if err := validate.Struct(cfg); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	if err := v.RegisterValidation("sandbox_token", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, known := sandboxTokens[value]
		return known
	}); err != nil {
		panic(err)
	}

	if err := v.RegisterValidation("field_type", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(FieldType)
		if !ok {
			return false
		}
		return value.known()
	}); err != nil {
		panic(err)
	}

	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return newError(ErrInvalidConfig, ErrInvalidConfig.Message, withCause(err))
	}
	first := validationErrs[0]
	fieldPath := jsonPath(first)
	return newError(ErrInvalidConfig,
		fmt.Sprintf("checkout: %s %s", fieldPath, validationMessage(first)),
		withParam(fieldPath),
	)
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "http_url":
		return "must be an absolute http(s) URL"
	case "excludesall":
		return fmt.Sprintf("cannot contain any of %q", fe.Param())
	case "sandbox_token":
		return fmt.Sprintf("is not a supported sandbox token: %v", fe.Value())
	case "field_type":
		return fmt.Sprintf("is not a supported field type: %v", fe.Value())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
