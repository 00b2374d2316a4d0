package config

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid setting. It is fatal: a run
// never starts auditing with a configuration that produced one.
type ConfigurationError struct {
	field string
	msg   string
	err   error
}

func (e *ConfigurationError) Error() string {
	if e.field == "" {
		return "configuration: " + e.msg
	}
	return fmt.Sprintf("configuration: %s: %s", e.field, e.msg)
}

func (e *ConfigurationError) Unwrap() error { return e.err }

// Field returns the descriptor key the error refers to, or "" for file-level errors.
func (e *ConfigurationError) Field() string { return e.field }

func newConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{field: field, msg: fmt.Sprintf(format, args...)}
}

func wrapConfigError(field string, err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{field: field, msg: fmt.Sprintf(format, args...) + ": " + err.Error(), err: err}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
