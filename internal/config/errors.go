package config

import (
	"errors"
	"strings"
)

// ValidationError reports a configuration problem found before any process or
// network action takes place.
type ValidationError struct {
	Field string
	// Unknown lists rejected override keys, sorted.
	Unknown []string
	Msg     string
}

func (e *ValidationError) Error() string {
	if len(e.Unknown) > 0 {
		return "unknown override keys: " + strings.Join(e.Unknown, ", ")
	}
	if e.Field != "" {
		return "invalid config " + e.Field + ": " + e.Msg
	}
	return "invalid config: " + e.Msg
}

// IsValidation reports whether err is (or wraps) a configuration error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
