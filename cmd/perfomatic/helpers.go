package main

import (
	"fmt"

	"perfomatic/internal/config"
)

// ExitConfig is the exit code for configuration and usage errors.
const ExitConfig = 2

// exitError carries a process exit code through cobra's RunE. A nil err
// exits silently (the report has already been printed).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitConfig, err: err}
}

// classify maps configuration errors to ExitConfig; anything else exits 1.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if config.IsConfigurationError(err) {
		return usageError(err)
	}
	return &exitError{code: 1, err: err}
}
