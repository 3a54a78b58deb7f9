// Package export turns processed extraction results into XLSX workbooks.
package export

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

const (
	sheetRecords = "Facturas"
	sheetStats   = "Estadisticas"
)

// Service produces XLSX bytes from a processed document.
type Service struct {
	log zerolog.Logger
}

func NewService() *Service {
	return &Service{log: logger.WithComponent("export")}
}

// RecordsXLSX builds a workbook with one row per page outcome plus a summary
// sheet of the job statistics.
func (s *Service) RecordsXLSX(outcomes []models.PageOutcome, stats *models.JobStats) ([]byte, error) {
	f := excelize.NewFile()

	if err := s.writeRecords(f, outcomes); err != nil {
		return nil, err
	}
	if err := s.writeStats(f, stats); err != nil {
		return nil, err
	}

	// Drop the default sheet so the workbook opens on the records.
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}
	if idx, _ := f.GetSheetIndex(sheetRecords); idx != -1 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.log.Info().
		Int("rows", len(outcomes)).
		Msg("Workbook generated")
	return buf.Bytes(), nil
}

func (s *Service) writeRecords(f *excelize.File, outcomes []models.PageOutcome) error {
	if _, err := f.NewSheet(sheetRecords); err != nil {
		return err
	}

	headers := []string{
		"Pagina",
		"Estado",
		"No. Contrato",
		"Direccion",
		"Codigo Referencia",
		"No. Factura",
		"Total a Pagar",
		"Consumo",
		"Empresa",
		"NIT",
		"Periodo Facturado",
		"Fecha Vencimiento",
		"Medidor",
		"Motor",
		"Observacion",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetRecords, cell, h); err != nil {
			return err
		}
	}

	for row, out := range outcomes {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row+2)
			_ = f.SetCellValue(sheetRecords, cell, v)
		}

		engine := out.Engine
		if out.CacheHit {
			engine = engine + " (cache)"
		}

		write(1, out.PageIndex+1)
		write(2, out.Kind.String())
		write(3, out.Record.NumeroContrato)
		write(4, out.Record.Direccion)
		write(5, out.Record.CodigoReferencia)
		write(6, out.Record.NumeroFactura)
		write(7, out.Record.TotalPagar.String())
		write(8, out.Record.Consumo.String())
		write(9, out.Record.Empresa)
		write(10, out.Record.NitEmpresa)
		write(11, out.Record.PeriodoFacturado)
		write(12, out.Record.FechaVencimiento)
		write(13, out.Record.Medidor)
		write(14, engine)
		write(15, out.Reason)
	}

	_ = f.SetColWidth(sheetRecords, "C", "F", 18)
	_ = f.SetColWidth(sheetRecords, "D", "D", 32)
	_ = f.SetColWidth(sheetRecords, "G", "H", 14)
	_ = f.SetColWidth(sheetRecords, "I", "I", 26)
	_ = f.SetColWidth(sheetRecords, "O", "O", 40)

	return nil
}

func (s *Service) writeStats(f *excelize.File, stats *models.JobStats) error {
	if _, err := f.NewSheet(sheetStats); err != nil {
		return err
	}

	rows := [][2]any{
		{"Paginas totales", stats.TotalPages},
		{"Paginas validas", stats.ValidPages},
		{"Paginas omitidas", stats.Skipped},
		{"Paginas fallidas", stats.Failed},
		{"Aciertos de cache", stats.CacheHits},
	}
	for _, engine := range []string{models.EngineTesseract, models.EngineGemini} {
		if n, ok := stats.ByEngine[engine]; ok {
			rows = append(rows, [2]any{"Extracciones " + engine, n})
		}
	}

	for i, r := range rows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(sheetStats, keyCell, r[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetStats, valCell, r[1]); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetStats, "A", "A", 24)
	return nil
}
