package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/pjojoa/DocuMarval/pkg/models"
)

const maxFieldLength = 200

// consumptionCeiling marks values that cannot be real meter readings; anything
// above it is an extraction error and is zeroed.
var consumptionCeiling = decimal.NewFromInt(1_000_000)

// deniedTerms is boilerplate the model occasionally echoes into fields from
// the advertising and demographic blurbs printed on bills. Any field
// containing one of these is blanked entirely.
var deniedTerms = []string{
	"adultos", "mayores", "millones", "dólares", "familia",
	"demográfico", "grupo", "estadística",
}

var (
	codeFenceRe = regexp.MustCompile("```json\\s*|```\\s*")
	jsonSpanRe  = regexp.MustCompile(`(?s)\{.*\}`)
	phoneRe     = regexp.MustCompile(`^\d{10}$`)
	moneyRe     = regexp.MustCompile(`[^\d.]`)
)

// stringFields are the record keys sanitized as strings, paired with setters.
var stringFields = map[string]func(*models.BillRecord, string){
	"numero_contrato":   func(r *models.BillRecord, v string) { r.NumeroContrato = v },
	"direccion":         func(r *models.BillRecord, v string) { r.Direccion = v },
	"codigo_referencia": func(r *models.BillRecord, v string) { r.CodigoReferencia = v },
	"empresa":           func(r *models.BillRecord, v string) { r.Empresa = v },
	"periodo_facturado": func(r *models.BillRecord, v string) { r.PeriodoFacturado = v },
	"fecha_vencimiento": func(r *models.BillRecord, v string) { r.FechaVencimiento = v },
	"numero_factura":    func(r *models.BillRecord, v string) { r.NumeroFactura = v },
	"nit_empresa":       func(r *models.BillRecord, v string) { r.NitEmpresa = v },
	"medidor":           func(r *models.BillRecord, v string) { r.Medidor = v },
}

// recordSchema constrains the shape of the model's JSON. Types are permissive
// where the model is known to waver (amounts arrive as numbers or strings);
// the sanitizer resolves the rest.
const recordSchemaJSON = `{
	"type": "object",
	"properties": {
		"numero_contrato":   {"type": "string"},
		"direccion":         {"type": "string"},
		"codigo_referencia": {"type": "string"},
		"empresa":           {"type": "string"},
		"periodo_facturado": {"type": "string"},
		"fecha_vencimiento": {"type": "string"},
		"numero_factura":    {"type": "string"},
		"nit_empresa":       {"type": "string"},
		"medidor":           {"type": "string"},
		"total_pagar":       {"type": ["number", "string"]},
		"consumo":           {"type": ["number", "string"]}
	}
}`

var recordSchema = jsonschema.MustCompileString("record.json", recordSchemaJSON)

// ParseRecord turns raw model output into a sanitized bill record.
//
// The text is defensively cleaned first: markdown code fences are stripped
// and the outermost {...} span is isolated, because the model sometimes
// wraps its JSON in prose despite instructions. Parse or schema failures are
// a model-output problem and surface as errors (mapped to ErrMalformed by
// the caller); they are never retried.
func ParseRecord(text string) (models.BillRecord, error) {
	cleaned := codeFenceRe.ReplaceAllString(strings.TrimSpace(text), "")
	cleaned = strings.TrimSpace(cleaned)
	if span := jsonSpanRe.FindString(cleaned); span != "" {
		cleaned = span
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return models.BillRecord{}, fmt.Errorf("decode JSON: %w", err)
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return models.BillRecord{}, fmt.Errorf("decode JSON: %w", err)
	}
	if err := recordSchema.Validate(doc); err != nil {
		return models.BillRecord{}, fmt.Errorf("schema validation: %w", err)
	}

	return sanitize(raw), nil
}

// sanitize maps raw JSON values onto a record, enforcing the hard cleanup
// contract for every field.
func sanitize(raw map[string]any) models.BillRecord {
	record := models.NewBillRecord()

	for key, set := range stringFields {
		v, ok := raw[key].(string)
		if !ok {
			continue
		}
		set(&record, sanitizeString(v))
	}

	// A payment reference that collapses to exactly 10 digits is a phone
	// number the model picked up from the contact section, never a real
	// reference code.
	collapsed := strings.NewReplacer(" ", "", "-", "").Replace(record.CodigoReferencia)
	if phoneRe.MatchString(collapsed) {
		record.CodigoReferencia = ""
	}

	record.TotalPagar = sanitizeMoney(raw["total_pagar"])
	record.Consumo = sanitizeConsumption(raw["consumo"])

	return record
}

func sanitizeString(v string) string {
	if containsDeniedTerm(v) {
		return ""
	}
	v = strings.TrimSpace(v)
	if len(v) > maxFieldLength {
		v = strings.TrimSpace(v[:maxFieldLength])
	}
	return v
}

// sanitizeMoney coerces total_pagar to a non-negative decimal. String values
// are reduced to digits and a single decimal point before parsing; denylist
// hits and parse failures zero the amount.
func sanitizeMoney(v any) decimal.Decimal {
	switch val := v.(type) {
	case string:
		if containsDeniedTerm(val) {
			return decimal.Zero
		}
		digits := moneyRe.ReplaceAllString(val, "")
		if i := strings.Index(digits, "."); i >= 0 {
			digits = digits[:i+1] + strings.ReplaceAll(digits[i+1:], ".", "")
		}
		if digits == "" || digits == "." {
			return decimal.Zero
		}
		amount, err := decimal.NewFromString(digits)
		if err != nil || amount.IsNegative() {
			return decimal.Zero
		}
		return amount
	case json.Number:
		amount, err := decimal.NewFromString(val.String())
		if err != nil || amount.IsNegative() {
			return decimal.Zero
		}
		return amount
	default:
		return decimal.Zero
	}
}

// sanitizeConsumption coerces consumo to a decimal and zeroes readings above
// the sanity ceiling.
func sanitizeConsumption(v any) decimal.Decimal {
	var value decimal.Decimal
	switch val := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero
		}
		value = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		value = parsed
	default:
		return decimal.Zero
	}
	if value.IsNegative() || value.GreaterThan(consumptionCeiling) {
		return decimal.Zero
	}
	return value
}

func containsDeniedTerm(v string) bool {
	lower := strings.ToLower(v)
	for _, term := range deniedTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
