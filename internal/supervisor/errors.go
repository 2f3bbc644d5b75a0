package supervisor

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError reports a missing binary or model file.
type NotFoundError struct {
	What string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// IsNotFound reports whether err indicates a missing launch input.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StartupError reports that the process could not be started or exited before
// becoming ready. Stdout and Stderr hold the captured output tails.
type StartupError struct {
	Err    error
	Stdout string
	Stderr string
}

func (e *StartupError) Error() string {
	msg := "llama-server exited before ready"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "; stderr tail: " + e.Stderr
	}
	return msg
}

func (e *StartupError) Unwrap() error { return e.Err }

// IsStartupFailure reports whether err indicates a failed launch.
func IsStartupFailure(err error) bool {
	var se *StartupError
	return errors.As(err, &se)
}

// TimeoutError reports that the readiness deadline elapsed first.
type TimeoutError struct {
	URL     string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llama-server not ready in time: %s (waited %s)", e.URL, e.Elapsed.Round(time.Millisecond))
}

// IsTimeout reports whether err indicates a readiness timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
