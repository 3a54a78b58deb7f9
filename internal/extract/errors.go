package extract

import (
	"errors"
	"fmt"
)

// Job-level errors. Page-level problems never surface here; they are recorded
// as outcomes and statistics instead.
var (
	// ErrRasterize indicates the PDF could not be rendered into page images.
	ErrRasterize = errors.New("pdf rasterization failed")

	// ErrNoValidPages indicates every rasterized page failed validation.
	ErrNoValidPages = errors.New("no pages survived validation")
)

// ExtractError provides context about where a job-level failure occurred.
type ExtractError struct {
	Op      string
	Err     error
	Details string
}

func (e *ExtractError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract %s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("extract %s: %v", e.Op, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

func (e *ExtractError) Is(target error) bool { return errors.Is(e.Err, target) }

// WrapExtractError creates an ExtractError with operation context.
func WrapExtractError(op string, err error, details string) error {
	return &ExtractError{Op: op, Err: err, Details: details}
}
