package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pjojoa/DocuMarval/internal/cache"
	"github.com/pjojoa/DocuMarval/internal/config"
	"github.com/pjojoa/DocuMarval/internal/export"
	"github.com/pjojoa/DocuMarval/internal/extract"
	"github.com/pjojoa/DocuMarval/internal/gemini"
	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/internal/ocr"
	"github.com/pjojoa/DocuMarval/internal/raster"
	"github.com/pjojoa/DocuMarval/internal/ratelimit"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [pdf-file]",
	Short: "Extract bill fields from a scanned utility-bill PDF",
	Long: `Process a scanned utility-bill PDF page by page.

Each page is rasterized with pdftoppm, validated, and routed adaptively:
a local Tesseract OCR pass runs first, and pages whose recognized text
scores below the confidence threshold are escalated to the Gemini vision
API. Identical pages within the cache TTL are served from the result
cache without any remote call.

Required environment variables:
  GEMINI_API_KEY - API key for the Generative Language API

Runtime requirements:
  pdftoppm (poppler-utils) on PATH
  libtesseract with the Spanish trained data (optional; without it every
  page goes to the remote engine)`,
	Example: `  # Extract all pages, print records as JSON
  documarval process facturas.pdf

  # Export records and statistics to a workbook
  documarval process facturas.pdf -o facturas.xlsx

  # Skip the local OCR pass entirely
  documarval process facturas.pdf --force-remote

  # Lower the local acceptance threshold
  documarval process facturas.pdf --threshold 0.6`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// pageJSON is one entry of the JSON output.
type pageJSON struct {
	Page     int               `json:"page"`
	Status   string            `json:"status"`
	Engine   string            `json:"engine,omitempty"`
	CacheHit bool              `json:"cache_hit,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Record   models.BillRecord `json:"record"`
}

// processJSON is the top-level JSON output structure.
type processJSON struct {
	FileName string           `json:"file_name"`
	Pages    []pageJSON       `json:"pages"`
	Stats    *models.JobStats `json:"stats"`
	Duration string           `json:"duration"`
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("output", "o", "", "Write an XLSX workbook to this path instead of printing JSON")
	processCmd.Flags().Bool("force-remote", false, "Send every page to the remote engine, skipping local OCR")
	processCmd.Flags().Float64("threshold", 0, "Local confidence acceptance threshold (default from CONFIDENCE_THRESHOLD)")
	processCmd.Flags().Int("workers", 0, "Concurrent page workers (default from MAX_WORKERS)")
	processCmd.Flags().Int("timeout", 900, "Whole-job timeout in seconds")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	outputPath, _ := cmd.Flags().GetString("output")
	forceRemote, _ := cmd.Flags().GetBool("force-remote")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	workers, _ := cmd.Flags().GetInt("workers")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	log.Info().
		Str("file", pdfPath).
		Str("output", outputPath).
		Bool("force_remote", forceRemote).
		Int("timeout", timeoutSecs).
		Msg("Starting bill extraction")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fileInfo, err := validateBillPDF(pdfPath, cfg.MaxPDFSize, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Failed to read PDF file")
		return fmt.Errorf("failed to read PDF file: %w", err)
	}

	orchestrator, cleanup, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	startTime := time.Now()
	result, err := orchestrator.Process(ctx, pdf, extract.Options{
		ForceRemote:         forceRemote,
		ConfidenceThreshold: threshold,
		MaxWorkers:          workers,
	})
	if err != nil {
		return handleProcessError(err, log)
	}

	duration := time.Since(startTime)
	log.Info().
		Int("total_pages", result.Stats.TotalPages).
		Int("valid_pages", result.Stats.ValidPages).
		Int("failed", result.Stats.Failed).
		Dur("duration", duration).
		Msg("Bill extraction completed")

	if outputPath != "" {
		return writeWorkbook(result, outputPath, log)
	}
	return printJSON(result, fileInfo, duration)
}

// buildPipeline wires every pipeline component from the loaded configuration.
// The returned cleanup closes the remote client.
func buildPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*extract.Orchestrator, func(), error) {
	rasterizer := raster.NewPopplerRasterizer(cfg.MaxPDFSize, cfg.MaxPages)
	if !rasterizer.Available() {
		log.Error().Msg("pdftoppm not found on PATH")
		return nil, nil, fmt.Errorf("pdftoppm not found. Install poppler-utils to rasterize PDFs")
	}

	local := ocr.NewAdapter(ocr.NewTesseractEngine())
	if !local.Available() {
		log.Warn().Msg("Tesseract unavailable, every page will use the remote engine")
	}

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Gemini client")
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimitCalls, cfg.RateLimitWindow)
	remote := gemini.NewAdapter(client, limiter, gemini.WithAttemptTimeout(cfg.RemoteTimeout))
	store := cache.New(cfg.CacheTTL, cfg.CacheMaxEntries)

	orchestrator := extract.NewOrchestrator(
		rasterizer, local, remote, store,
		cfg.ConfidenceThreshold, cfg.MaxWorkers, cfg.DPI,
	)

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Gemini client")
		}
	}
	return orchestrator, cleanup, nil
}

// validateBillPDF checks that the path is a readable, plausible PDF.
func validateBillPDF(pdfPath string, maxSize int64, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", pdfPath).Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", pdfPath).Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", pdfPath).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().Str("file", pdfPath).Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", pdfPath).Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	if fileInfo.Size() > maxSize {
		log.Error().
			Str("file", pdfPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxSize).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes",
			fileInfo.Size(), maxSize)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling extraction")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// handleProcessError provides user-friendly error messages for job failures
func handleProcessError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Bill extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, raster.ErrPopplerMissing):
		return fmt.Errorf("pdftoppm not found. Install poppler-utils to rasterize PDFs")
	case errors.Is(err, raster.ErrPDFTooLarge):
		return fmt.Errorf("PDF file is too large. Try compressing or splitting the file")
	case errors.Is(err, raster.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages. Try splitting into smaller files")
	case errors.Is(err, raster.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, extract.ErrRasterize):
		return fmt.Errorf("PDF rasterization failed: %w", err)
	case errors.Is(err, extract.ErrNoValidPages):
		return fmt.Errorf("no readable pages found. Every page was blank or below the minimum size")
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}

// writeWorkbook exports the result as an XLSX file.
func writeWorkbook(result *extract.Result, outputPath string, log zerolog.Logger) error {
	data, err := export.NewService().RecordsXLSX(result.Outcomes, result.Stats)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build workbook")
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write workbook")
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Workbook written")
	return nil
}

// printJSON writes the result to stdout as indented JSON.
func printJSON(result *extract.Result, fileInfo os.FileInfo, duration time.Duration) error {
	out := processJSON{
		FileName: filepath.Base(fileInfo.Name()),
		Stats:    result.Stats,
		Duration: duration.String(),
	}
	for _, o := range result.Outcomes {
		out.Pages = append(out.Pages, pageJSON{
			Page:     o.PageIndex + 1,
			Status:   o.Kind.String(),
			Engine:   o.Engine,
			CacheHit: o.CacheHit,
			Reason:   o.Reason,
			Record:   o.Record,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
