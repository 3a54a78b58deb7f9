package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the trained data used for recognition. Bills handled by
// this tool are Colombian, so Spanish is the default.
const DefaultLanguage = "spa"

// TesseractEngine implements Engine using the gosseract client.
type TesseractEngine struct {
	language      string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{
		language:      DefaultLanguage,
		clientFactory: gosseract.NewClient,
	}
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return "tesseract" }

// Available reports whether a usable Tesseract installation with the
// configured language was found. Callers use this to decide between adaptive
// and remote-only routing before processing starts.
func (e *TesseractEngine) Available() bool {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return false
	}
	for _, l := range langs {
		if l == e.language {
			return true
		}
	}
	return false
}

// Recognize performs OCR on a single page image and collects per-word
// confidences alongside the text.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (RecognizeResult, error) {
	const op = "Recognize"

	if err := ctx.Err(); err != nil {
		return RecognizeResult{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return RecognizeResult{}, WrapOCRError(op, ErrEncodeImage, err.Error())
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return RecognizeResult{}, WrapOCRError(op, ErrRecognitionFailed, "set image: "+err.Error())
	}
	if err := c.SetLanguage(e.language); err != nil {
		return RecognizeResult{}, WrapOCRError(op, ErrRecognitionFailed, "set language: "+err.Error())
	}
	// PSM 6: assume a single uniform block of text, the best mode for bills.
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return RecognizeResult{}, WrapOCRError(op, ErrRecognitionFailed, "set page seg mode: "+err.Error())
	}

	text, err := c.Text()
	if err != nil {
		return RecognizeResult{}, WrapOCRError(op, ErrRecognitionFailed, err.Error())
	}

	result := RecognizeResult{Text: text}
	if boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		result.WordConfidences = make([]int, 0, len(boxes))
		for _, b := range boxes {
			result.WordConfidences = append(result.WordConfidences, int(b.Confidence))
		}
	}

	return result, nil
}
