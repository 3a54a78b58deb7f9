package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pjojoa/DocuMarval/internal/config"
	"github.com/pjojoa/DocuMarval/internal/export"
	"github.com/pjojoa/DocuMarval/internal/extract"
	"github.com/pjojoa/DocuMarval/internal/logger"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Process every utility-bill PDF in a folder",
	Long: `Process all PDF files in the specified folder through the adaptive
extraction pipeline and write one XLSX workbook per document.

Documents share one result cache and one rate limiter, so a page that
repeats across documents is served from cache without a remote call.

Required environment variables:
  GEMINI_API_KEY - API key for the Generative Language API`,
	Example: `  # Process a folder, workbooks next to each PDF
  documarval batch ./facturas

  # Write workbooks into a separate directory
  documarval batch ./facturas -o ./resultados

  # Send every page to the remote engine
  documarval batch ./facturas --force-remote`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// batchResult represents the outcome of processing a single PDF
type batchResult struct {
	Filename string
	Result   *extract.Result
	Error    error
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output-dir", "o", "", "Directory for the XLSX workbooks (default: next to each PDF)")
	batchCmd.Flags().Bool("force-remote", false, "Send every page to the remote engine, skipping local OCR")
	batchCmd.Flags().Float64("threshold", 0, "Local confidence acceptance threshold (default from CONFIDENCE_THRESHOLD)")
	batchCmd.Flags().Int("timeout", 3600, "Whole-batch timeout in seconds")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	folderPath := args[0]
	outputDir, _ := cmd.Flags().GetString("output-dir")
	forceRemote, _ := cmd.Flags().GetBool("force-remote")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	log.Info().
		Str("folder", folderPath).
		Str("output_dir", outputDir).
		Bool("force_remote", forceRemote).
		Msg("Starting batch extraction")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pdfFiles, err := findPDFFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find PDF files: %w", err)
	}
	if len(pdfFiles) == 0 {
		fmt.Println("No se encontraron archivos PDF en la carpeta.")
		return nil
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	// One pipeline for the whole batch: cache and rate limiter are shared
	// across documents.
	orchestrator, cleanup, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("                    EXTRACCION DE FACTURAS")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Carpeta: %s\n", folderPath)
	fmt.Printf("Documentos: %d\n", len(pdfFiles))
	fmt.Println()

	exporter := export.NewService()
	startTime := time.Now()

	results := make([]batchResult, 0, len(pdfFiles))
	for i, pdfPath := range pdfFiles {
		res := processBatchFile(ctx, orchestrator, exporter, pdfPath, outputDir, extract.Options{
			ForceRemote:         forceRemote,
			ConfidenceThreshold: threshold,
		})
		results = append(results, res)

		status := "OK"
		detail := ""
		if res.Error != nil {
			status = "ERROR"
			detail = " (" + res.Error.Error() + ")"
		} else {
			detail = fmt.Sprintf(" (%d/%d paginas)", res.Result.Stats.ValidPages-res.Result.Stats.Failed, res.Result.Stats.TotalPages)
		}
		fmt.Printf("[%d/%d] %s - %s%s\n", i+1, len(pdfFiles), res.Filename, status, detail)

		if ctx.Err() != nil {
			break
		}
	}

	successCount := 0
	errorCount := 0
	cacheHits := 0
	for _, res := range results {
		if res.Error != nil {
			errorCount++
			continue
		}
		successCount++
		cacheHits += res.Result.Stats.CacheHits
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULTADO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Exitosos: %d\n", successCount)
	if errorCount > 0 {
		fmt.Printf("Fallidos: %d\n", errorCount)
	}
	if cacheHits > 0 {
		fmt.Printf("Aciertos de cache: %d\n", cacheHits)
	}
	fmt.Println(strings.Repeat("=", 70))

	log.Info().
		Int("total", len(pdfFiles)).
		Int("success", successCount).
		Int("errors", errorCount).
		Int("cache_hits", cacheHits).
		Dur("duration", time.Since(startTime)).
		Msg("Batch extraction completed")

	if errorCount > 0 {
		return fmt.Errorf("%d of %d documents failed", errorCount, len(pdfFiles))
	}
	return nil
}

// processBatchFile runs one document through the shared pipeline and writes
// its workbook.
func processBatchFile(ctx context.Context, orchestrator *extract.Orchestrator, exporter *export.Service, pdfPath, outputDir string, opts extract.Options) batchResult {
	res := batchResult{Filename: filepath.Base(pdfPath)}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		res.Error = fmt.Errorf("failed to read PDF file: %w", err)
		return res
	}

	result, err := orchestrator.Process(ctx, pdf, opts)
	if err != nil {
		res.Error = err
		return res
	}
	res.Result = result

	data, err := exporter.RecordsXLSX(result.Outcomes, result.Stats)
	if err != nil {
		res.Error = fmt.Errorf("failed to build workbook: %w", err)
		return res
	}

	outPath := workbookPath(pdfPath, outputDir)
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		res.Error = fmt.Errorf("failed to write workbook: %w", err)
		return res
	}
	return res
}

// workbookPath derives the XLSX destination from the PDF path.
func workbookPath(pdfPath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath)) + ".xlsx"
	if outputDir != "" {
		return filepath.Join(outputDir, base)
	}
	return filepath.Join(filepath.Dir(pdfPath), base)
}

// findPDFFiles finds all PDF files under the folder, recursively.
func findPDFFiles(folderPath string) ([]string, error) {
	var pdfFiles []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".pdf") {
			pdfFiles = append(pdfFiles, path)
		}

		return nil
	})

	return pdfFiles, err
}
