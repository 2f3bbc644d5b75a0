package app

import (
	"errors"

	"essaylens/internal/embedded"
	"essaylens/internal/kvcache"
	"essaylens/internal/supervisor"
)

// ErrNotReady is returned when a call arrives before the backend is up.
var ErrNotReady = errors.New("backend not ready")

// ErrNoCache is returned when paragraph feedback is requested from a backend
// without a KV engine.
var ErrNoCache = errors.New("paragraph feedback requires the kv backend")

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// ErrTooBusy constructs a backpressure error with a short reason.
func ErrTooBusy(reason string) error { return tooBusyError{reason: reason} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// TooBusyReason returns the reason of a backpressure error, or "".
func TooBusyReason(err error) string {
	var tb tooBusyError
	if errors.As(err, &tb) {
		return tb.reason
	}
	return ""
}

// IsUnavailable reports whether err means the backend cannot serve calls at
// all: not started, not compiled in, or failed to launch.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNotReady) ||
		errors.Is(err, kvcache.ErrUnavailable) ||
		errors.Is(err, embedded.ErrUnavailable) ||
		supervisor.IsNotFound(err) ||
		supervisor.IsStartupFailure(err) ||
		supervisor.IsTimeout(err)
}
