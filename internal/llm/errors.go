package llm

import (
	"errors"
	"fmt"
)

// maxErrorBody caps the response body kept on an HTTPError.
const maxErrorBody = 1000

// HTTPError is returned for any non-200 reply from the backend. Body holds at
// most the first 1000 characters of the response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llama server http error: %s: %s", e.Status, e.Body)
}

// IsHTTPError reports whether err is a backend protocol error.
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// DecodeError reports model output that is not valid JSON even after repair.
// Raw keeps the full text for debugging.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid JSON from model: %v: %s", e.Err, e.Raw)
	}
	return "invalid JSON from model: " + e.Raw
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecode reports whether err indicates malformed model JSON.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// ErrStreamConsumed is yielded when a chat stream is iterated a second time.
var ErrStreamConsumed = errors.New("chat stream already consumed")

// ErrEmptyResponse reports a reply without any choices.
var ErrEmptyResponse = errors.New("llama server returned no choices")

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
