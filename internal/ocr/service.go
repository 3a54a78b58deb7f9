// Package ocr provides the local extraction path for utility-bill pages.
//
// It wraps a Tesseract OCR engine (via gosseract), scores the quality of the
// recognized text with a billing-specific heuristic, and parses a small set
// of structured fields out of the raw text with pattern rules. The local path
// is cheap and offline; the adaptive router falls back to the remote engine
// whenever the confidence score lands below the configured threshold.
//
// Tesseract requirements:
//   - libtesseract with the Spanish ("spa") trained data installed
//   - page segmentation mode 6 (single uniform block) works best for bills
package ocr

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

// RecognizeResult is the raw output of one engine invocation.
type RecognizeResult struct {
	// Text is the recognized text for the whole page.
	Text string

	// WordConfidences holds one 0-100 confidence value per recognized word.
	// Empty when the engine does not report per-word confidence.
	WordConfidences []int
}

// Engine is the contract for a local OCR text engine.
type Engine interface {
	// Name identifies the engine in logs and statistics.
	Name() string

	// Recognize runs OCR over a decoded page image.
	Recognize(ctx context.Context, img image.Image) (RecognizeResult, error)
}

// Result is the outcome of the full local extraction pipeline for one page.
type Result struct {
	// Record holds the parsed bill fields; unmatched fields keep defaults.
	Record models.BillRecord

	// Text is the raw OCR text the record was parsed from.
	Text string

	// Confidence is the heuristic quality score in [0,1].
	Confidence float64
}

// Adapter runs the local engine and turns its text into a scored bill record.
type Adapter struct {
	engine Engine
	log    zerolog.Logger
}

// NewAdapter wraps an OCR engine.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{
		engine: engine,
		log:    logger.WithComponent("ocr"),
	}
}

// Available reports whether the underlying engine can run, when the engine
// exposes a probe. Engines without a probe are assumed available.
func (a *Adapter) Available() bool {
	if probe, ok := a.engine.(interface{ Available() bool }); ok {
		return probe.Available()
	}
	return true
}

// Extract recognizes the page and parses bill fields from the text.
//
// Engine failures degrade to an empty result with zero confidence instead of
// failing the page; the router then escalates to the remote engine. The only
// error returned is context cancellation.
func (a *Adapter) Extract(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rec, err := a.engine.Recognize(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		a.log.Warn().Err(err).Msg("Local OCR failed, degrading to empty result")
		return Result{Record: models.NewBillRecord()}, nil
	}

	confidence := Score(rec.Text, rec.WordConfidences)
	record := ParseBillText(rec.Text)

	a.log.Debug().
		Int("text_length", len(rec.Text)).
		Float64("confidence", confidence).
		Msg("Local extraction completed")

	return Result{
		Record:     record,
		Text:       rec.Text,
		Confidence: confidence,
	}, nil
}
