package tournament

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFrozen means the round's submission set has not been locked.
	ErrNotFrozen = errors.New("submission set is not frozen")

	// ErrConfig classifies every *ConfigError.
	ErrConfig = errors.New("invalid round configuration")
)

// ConfigError is the only error that is fatal to a whole run.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrConfig, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}
