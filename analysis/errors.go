package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is matched by the ValidationError returned for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt must not be empty")
	// ErrIncompleteStream means the body ended before the terminal marker.
	ErrIncompleteStream = errors.New("stream ended before the final result")

	errInvalidUTF8   = errors.New("line is not valid UTF-8")
	errNoExplanation = errors.New("result entry has no explanation")
)

// ValidationError is returned synchronously by Start; no request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrEmptyPrompt && e.Field == "prompt"
}

// TransportError wraps network and HTTP failures of the analysis stream.
type TransportError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("analysis API error (status %d): %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("analysis API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("analysis stream failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError describes an NDJSON line that could not be used. It is logged,
// never returned to callers.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed stream line %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
