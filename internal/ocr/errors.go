package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrEngineUnavailable is returned when no Tesseract installation can be
	// found on the host.
	ErrEngineUnavailable = errors.New("tesseract engine is not available on this system")

	// ErrRecognitionFailed is returned when the Tesseract engine fails to
	// process an image.
	ErrRecognitionFailed = errors.New("OCR recognition failed")

	// ErrEncodeImage is returned when the page image cannot be encoded for
	// the engine.
	ErrEncodeImage = errors.New("failed to encode image for OCR")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "Extract").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return &OCRError{Op: op, Err: err, Details: details}
}
