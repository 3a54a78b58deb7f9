package ocr

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pjojoa/DocuMarval/pkg/models"
)

// Pattern rules for the four fields the local path can extract reliably.
// Each rule is independent: no match leaves the field at its default.
var (
	contractRe = regexp.MustCompile(`(?i)(?:No\.?\s*CONTRATO|CONTRATO)\s*:?\s*([A-Z0-9-]+)`)
	addressRe  = regexp.MustCompile(`(?i)DIRECCI[OÓ]N\s*:?\s*([^\n]+)`)
	paymentRe  = regexp.MustCompile(`(?is)(?:C[OÓ]DIGO.*?REFERENCIA|REFERENCIA.*?PAGO|REF.*?ELECTR[OÓ]NICO)\s*:?\s*([A-Z0-9-]+)`)
	totalRe    = regexp.MustCompile(`(?i)(?:TOTAL\s*A\s*PAGAR|TOTAL\s*FACTURA)\s*:?\s*\$?\s*([\d,\.]+)`)
)

// ParseBillText applies the pattern rules to raw OCR text and returns a
// record. It never fails: text with no recognizable fields yields a default
// record.
func ParseBillText(text string) models.BillRecord {
	record := models.NewBillRecord()
	if text == "" {
		return record
	}

	if m := contractRe.FindStringSubmatch(text); m != nil {
		record.NumeroContrato = strings.TrimSpace(m[1])
	}
	if m := addressRe.FindStringSubmatch(text); m != nil {
		record.Direccion = strings.TrimSpace(m[1])
	}
	if m := paymentRe.FindStringSubmatch(text); m != nil {
		record.CodigoReferencia = strings.TrimSpace(m[1])
	}
	if m := totalRe.FindStringSubmatch(text); m != nil {
		record.TotalPagar = parseTotal(m[1])
	}

	return record
}

// parseTotal interprets a matched amount string. Colombian bills print
// thousands separators as dots or commas with no decimals, so all separators
// are stripped. Short digit strings (3-6 digits) are assumed to carry two
// trailing decimal places.
func parseTotal(raw string) decimal.Decimal {
	digits := strings.NewReplacer(",", "", ".", "").Replace(raw)
	if digits == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero
	}
	if len(digits) > 2 && len(digits) <= 6 {
		return value.Div(decimal.NewFromInt(100))
	}
	return value
}
