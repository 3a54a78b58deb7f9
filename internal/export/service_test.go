package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/pjojoa/DocuMarval/pkg/models"
)

func sampleOutcomes() ([]models.PageOutcome, *models.JobStats) {
	rec := models.NewBillRecord()
	rec.NumeroContrato = "12345-6"
	rec.Direccion = "CALLE 10 # 5-20"
	rec.Empresa = "EMPRESAS PUBLICAS"
	rec.TotalPagar = decimal.NewFromFloat(125000.50)

	outcomes := []models.PageOutcome{
		{PageIndex: 0, Kind: models.OutcomeSuccess, Record: rec, Engine: models.EngineTesseract},
		{PageIndex: 1, Kind: models.OutcomeSkipped, Record: models.NewBillRecord(), Reason: "blank page"},
		{PageIndex: 2, Kind: models.OutcomeSuccess, Record: rec, Engine: models.EngineGemini, CacheHit: true},
	}

	stats := models.NewJobStats(3)
	stats.ValidPages = 2
	stats.Skipped = 1
	stats.CacheHits = 1
	stats.ByEngine[models.EngineTesseract] = 1
	return outcomes, stats
}

func TestRecordsXLSXRoundTrip(t *testing.T) {
	outcomes, stats := sampleOutcomes()

	data, err := NewService().RecordsXLSX(outcomes, stats)
	if err != nil {
		t.Fatalf("RecordsXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Facturas", "Estadisticas"} {
		if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
			t.Fatalf("sheet %q missing", sheet)
		}
	}

	tests := []struct {
		cell string
		want string
	}{
		{"C1", "No. Contrato"},
		{"C2", "12345-6"},
		{"B3", "skipped"},
		{"O3", "blank page"},
		{"N4", "gemini (cache)"},
		{"G2", "125000.5"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue("Facturas", tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("Facturas!%s = %q, want %q", tt.cell, got, tt.want)
		}
	}

	got, err := f.GetCellValue("Estadisticas", "B1")
	if err != nil {
		t.Fatalf("GetCellValue(B1): %v", err)
	}
	if got != "3" {
		t.Errorf("Estadisticas!B1 = %q, want total pages 3", got)
	}
}
