package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pjojoa/DocuMarval/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "documarval",
	Short: "DocuMarval - structured data extraction from scanned utility bills",
	Long: `DocuMarval extracts structured billing fields from scanned Colombian
utility-bill PDFs. Each page is routed adaptively: a local Tesseract
OCR pass runs first, and pages whose recognized text scores below the
confidence threshold are escalated to the Gemini vision API.

Results can be printed as JSON or exported to an XLSX workbook.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("DocuMarval CLI executed")

		fmt.Println("Welcome to DocuMarval!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
