package gemini

import (
	"errors"
	"fmt"
)

// Terminal states for a remote extraction attempt. The retry loop classifies
// every failure into exactly one of these.
var (
	// ErrSafetyBlocked means the model refused the page. Fatal for the page,
	// never retried.
	ErrSafetyBlocked = errors.New("remote engine blocked the request for safety reasons")

	// ErrMaxTokens means the response was truncated and stayed empty even at
	// the largest configured output-token budget.
	ErrMaxTokens = errors.New("remote response truncated at maximum token budget")

	// ErrRateLimited means the remote API rejected the call with a quota
	// error. Retried with backoff inside the attempt budget.
	ErrRateLimited = errors.New("remote engine rate limit exceeded")

	// ErrMalformed means the response text could not be parsed into a valid
	// record. A model-output problem, not a transient one: never retried.
	ErrMalformed = errors.New("remote response is not valid bill JSON")

	// ErrUnavailable means the remote call kept failing until the retry
	// budget ran out.
	ErrUnavailable = errors.New("remote engine unavailable after all attempts")

	// ErrEmptyResponse means the engine answered without any usable text.
	ErrEmptyResponse = errors.New("remote response contained no text")

	// ErrMissingAPIKey is returned when no Gemini API key is configured.
	ErrMissingAPIKey = errors.New("missing Gemini credentials: set GEMINI_API_KEY")
)

// GeminiError wraps errors with context about the failed remote operation.
type GeminiError struct {
	// Op is the operation that failed (e.g., "Extract", "Generate").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *GeminiError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("gemini: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("gemini: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *GeminiError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *GeminiError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapGeminiError wraps an error as a GeminiError if it isn't already one.
func WrapGeminiError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var gemErr *GeminiError
	if errors.As(err, &gemErr) {
		return err // Already wrapped
	}

	return &GeminiError{Op: op, Err: err, Details: details}
}
