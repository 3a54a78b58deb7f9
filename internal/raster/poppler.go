package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/pjojoa/DocuMarval/internal/logger"
)

// PopplerRasterizer renders PDFs with pdftoppm.
type PopplerRasterizer struct {
	// MaxPDFSize bounds the input in bytes; zero disables the check.
	MaxPDFSize int64

	// MaxPages bounds the page count; zero disables the check.
	MaxPages int

	log zerolog.Logger
}

// NewPopplerRasterizer creates a rasterizer with the given document limits.
func NewPopplerRasterizer(maxPDFSize int64, maxPages int) *PopplerRasterizer {
	return &PopplerRasterizer{
		MaxPDFSize: maxPDFSize,
		MaxPages:   maxPages,
		log:        logger.WithComponent("raster"),
	}
}

// Available reports whether pdftoppm is on PATH.
func (p *PopplerRasterizer) Available() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// Render validates the PDF and rasterizes every page in order.
func (p *PopplerRasterizer) Render(ctx context.Context, pdf []byte, dpi int) ([]PageImage, error) {
	const op = "Render"

	if !p.Available() {
		return nil, WrapRasterError(op, ErrPopplerMissing, "")
	}
	if err := p.validatePDF(pdf); err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "documarval-raster-*")
	if err != nil {
		return nil, WrapRasterError(op, err, "create temp dir")
	}
	defer os.RemoveAll(workDir)

	pdfPath := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0600); err != nil {
		return nil, WrapRasterError(op, err, "write temp PDF")
	}

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", fmt.Sprint(dpi), "-png", pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, WrapRasterError(op, ctx.Err(), "canceled")
		}
		return nil, WrapRasterError(op, ErrRenderFailed, stderr.String())
	}

	pages, err := p.collectPages(workDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, WrapRasterError(op, ErrRenderFailed, "renderer produced no pages")
	}

	p.log.Info().
		Int("pages", len(pages)).
		Int("dpi", dpi).
		Msg("PDF rasterized")

	return pages, nil
}

// validatePDF rejects oversized, non-PDF, or over-long documents before any
// rendering work is spent on them.
func (p *PopplerRasterizer) validatePDF(pdf []byte) error {
	const op = "validatePDF"

	if p.MaxPDFSize > 0 && int64(len(pdf)) > p.MaxPDFSize {
		return WrapRasterError(op, ErrPDFTooLarge,
			fmt.Sprintf("%d bytes, limit %d", len(pdf), p.MaxPDFSize))
	}
	if len(pdf) < 4 || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return WrapRasterError(op, ErrInvalidPDF, "missing PDF header")
	}

	pageCount, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return WrapRasterError(op, ErrInvalidPDF, err.Error())
	}
	if p.MaxPages > 0 && pageCount > p.MaxPages {
		return WrapRasterError(op, ErrTooManyPages,
			fmt.Sprintf("%d pages, limit %d", pageCount, p.MaxPages))
	}
	return nil
}

// collectPages decodes the pdftoppm output files in page order. pdftoppm
// zero-pads its numeric suffixes, so lexicographic order is page order.
func (p *PopplerRasterizer) collectPages(dir string) ([]PageImage, error) {
	const op = "collectPages"

	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, WrapRasterError(op, err, "glob output files")
	}
	sort.Strings(matches)

	pages := make([]PageImage, 0, len(matches))
	for i, path := range matches {
		img, err := decodePNGFile(path)
		if err != nil {
			return nil, WrapRasterError(op, ErrRenderFailed,
				fmt.Sprintf("decode %s: %v", filepath.Base(path), err))
		}
		pages = append(pages, PageImage{Index: i, Image: img})
	}
	return pages, nil
}

func decodePNGFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
