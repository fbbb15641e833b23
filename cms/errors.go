package cms

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrRegistryFrozen = errors.New("registry is frozen")
	ErrListExists     = errors.New("list already exists")
)

// ConfigError is returned when a list or field is misconfigured. It is
// fatal: the registry refuses to compile and the server should not start.
type ConfigError struct {
	ListKey string
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.ListKey == "" {
		return e.Message
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.ListKey, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.ListKey, e.Path, e.Message)
}

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

type ValidationError struct {
	ListKey string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s.%s: %s", e.ListKey, e.Path, e.Message)
}
