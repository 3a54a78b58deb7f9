// Package raster turns utility-bill PDFs into page images and provides the
// image plumbing around them: pre-validation of the PDF, per-page content
// validation, quality-reduced fingerprinting for the result cache, and JPEG
// optimization for remote upload.
//
// Rendering shells out to Poppler's pdftoppm, the same renderer the legacy
// pipeline relied on. Rasterization failure is fatal for the whole job;
// callers should check Available() before accepting work.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Common rasterization errors
var (
	// ErrPopplerMissing is returned when pdftoppm cannot be found on PATH.
	ErrPopplerMissing = errors.New("poppler (pdftoppm) is not installed or not on PATH")

	// ErrInvalidPDF is returned when the input is not a valid PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrPDFTooLarge is returned when the PDF exceeds the configured size limit.
	ErrPDFTooLarge = errors.New("PDF file size exceeds the configured limit")

	// ErrTooManyPages is returned when the PDF exceeds the configured page limit.
	ErrTooManyPages = errors.New("PDF has more pages than the configured limit")

	// ErrRenderFailed is returned when the renderer fails to produce page images.
	ErrRenderFailed = errors.New("PDF rasterization failed")
)

// RasterError wraps errors with context about the failed rasterization step.
type RasterError struct {
	Op      string
	Err     error
	Details string
}

func (e *RasterError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("raster: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("raster: %s failed: %v", e.Op, e.Err)
}

func (e *RasterError) Unwrap() error { return e.Err }

func (e *RasterError) Is(target error) bool { return errors.Is(e.Err, target) }

// WrapRasterError wraps an error as a RasterError if it isn't already one.
func WrapRasterError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var rerr *RasterError
	if errors.As(err, &rerr) {
		return err
	}
	return &RasterError{Op: op, Err: err, Details: details}
}

// PageImage is one rasterized page. The index is 0-based and stable for the
// document; the image is never mutated after creation.
type PageImage struct {
	Index int
	Image image.Image
}

// Rasterizer renders a PDF into ordered page images.
type Rasterizer interface {
	// Render rasterizes every page of the PDF at the given DPI, preserving
	// page order.
	Render(ctx context.Context, pdf []byte, dpi int) ([]PageImage, error)

	// Available reports whether the renderer's runtime dependency is
	// installed, so callers can short-circuit before accepting work.
	Available() bool
}
