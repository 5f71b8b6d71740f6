package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
		return name
	})
	return v
}

// Validate checks cfg and returns the first problem as a *ConfigError.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return toConfigError(verrs[0])
}

func toConfigError(fe validator.FieldError) *ConfigError {
	// Namespace is "Config.fetch.retries"; drop the root type name.
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("%v is not one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", ")))
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value()))
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be > %s, got %v", fe.Param(), fe.Value()))
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}
