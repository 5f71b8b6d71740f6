package config

import (
	"fmt"
	"strings"
)

// ConfigError describes one invalid or missing setting with a hint on how to fix it.
//
//nolint:revive // ConfigError reads better than Error at call sites
type ConfigError struct {
	Category string // "missing" or "invalid"
	Field    string // dotted key, e.g. fetch.retries
	Message  string
	Action   string
}

func (e *ConfigError) Error() string {
	parts := []string{"config_" + e.Category + ":"}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required setting that has no value.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVarName(field), field, DefaultFile),
	}
}

// NewInvalidFieldError reports a setting whose value is out of range.
func NewInvalidFieldError(field, message string) *ConfigError {
	return &ConfigError{Category: "invalid", Field: field, Message: message}
}

func envVarName(field string) string {
	return strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
