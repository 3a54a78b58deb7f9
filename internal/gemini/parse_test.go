package gemini

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const validBillJSON = `{
	"numero_contrato": "5512345",
	"direccion": "CRA 7 No 45-12 BOGOTA",
	"codigo_referencia": "440012345678",
	"total_pagar": 128500.50,
	"empresa": "Acueducto de Bogota",
	"periodo_facturado": "Enero 2024",
	"fecha_vencimiento": "15/02/2024",
	"numero_factura": "F-88421",
	"nit_empresa": "899999094-1",
	"consumo": 18.5,
	"medidor": "M-4471"
}`

func TestParseRecordPlainJSON(t *testing.T) {
	record, err := ParseRecord(validBillJSON)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if record.NumeroContrato != "5512345" {
		t.Errorf("NumeroContrato = %q", record.NumeroContrato)
	}
	if want := decimal.NewFromFloat(128500.50); !record.TotalPagar.Equal(want) {
		t.Errorf("TotalPagar = %s, want %s", record.TotalPagar, want)
	}
	if want := decimal.NewFromFloat(18.5); !record.Consumo.Equal(want) {
		t.Errorf("Consumo = %s, want %s", record.Consumo, want)
	}
	if record.Medidor != "M-4471" {
		t.Errorf("Medidor = %q", record.Medidor)
	}
}

func TestParseRecordStripsCodeFences(t *testing.T) {
	wrapped := "```json\n" + validBillJSON + "\n```"
	record, err := ParseRecord(wrapped)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if record.Empresa != "Acueducto de Bogota" {
		t.Errorf("Empresa = %q", record.Empresa)
	}
}

func TestParseRecordExtractsBraceSpan(t *testing.T) {
	chatty := "Aquí está el JSON solicitado:\n" + validBillJSON + "\nEspero que sea útil."
	record, err := ParseRecord(chatty)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if record.NumeroFactura != "F-88421" {
		t.Errorf("NumeroFactura = %q", record.NumeroFactura)
	}
}

func TestParseRecordMalformed(t *testing.T) {
	tests := []string{
		"",
		"no JSON here at all",
		`{"numero_contrato": "abc"`,
		`[1, 2, 3]`,
	}
	for _, text := range tests {
		if _, err := ParseRecord(text); err == nil {
			t.Errorf("ParseRecord(%q) succeeded, want error", text)
		}
	}
}

func TestParseRecordSchemaRejectsWrongTypes(t *testing.T) {
	if _, err := ParseRecord(`{"numero_contrato": 12345}`); err == nil {
		t.Fatal("numeric numero_contrato should fail schema validation")
	}
}

func TestParseRecordMissingFieldsDefaulted(t *testing.T) {
	record, err := ParseRecord(`{"empresa": "Codensa"}`)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if record.Empresa != "Codensa" {
		t.Errorf("Empresa = %q", record.Empresa)
	}
	if record.NumeroContrato != "" || !record.TotalPagar.IsZero() || !record.Consumo.IsZero() {
		t.Error("absent fields must default to \"\" and 0")
	}
}

func TestSanitizeDeniedTermsBlankField(t *testing.T) {
	record, err := ParseRecord(`{
		"direccion": "beneficios para adultos mayores en toda la familia",
		"empresa": "Codensa"
	}`)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if record.Direccion != "" {
		t.Errorf("Direccion = %q, want blanked", record.Direccion)
	}
	if record.Empresa != "Codensa" {
		t.Errorf("Empresa = %q, want untouched", record.Empresa)
	}
}

func TestSanitizeTruncatesLongFields(t *testing.T) {
	long := strings.Repeat("x", 300)
	record, err := ParseRecord(`{"direccion": "` + long + `"}`)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if len(record.Direccion) != 200 {
		t.Errorf("len(Direccion) = %d, want 200", len(record.Direccion))
	}
}

func TestSanitizePhoneShapedReferenceBlanked(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"3101234567", ""},          // bare 10-digit phone
		{"310 123 4567", ""},        // spaced phone
		{"310-123-4567", ""},        // hyphenated phone
		{"440012345678", "440012345678"}, // 12 digits: real reference
		{"98765", "98765"},          // short reference
	}
	for _, tt := range tests {
		record, err := ParseRecord(`{"codigo_referencia": "` + tt.ref + `"}`)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v", err)
		}
		if record.CodigoReferencia != tt.want {
			t.Errorf("CodigoReferencia(%q) = %q, want %q", tt.ref, record.CodigoReferencia, tt.want)
		}
	}
}

func TestSanitizeMoney(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"number", `{"total_pagar": 125000}`, "125000"},
		{"decimal number", `{"total_pagar": 125000.5}`, "125000.5"},
		{"string with symbols", `{"total_pagar": "$ 125.000,50"}`, "125.00050"},
		{"denylisted string", `{"total_pagar": "12 millones"}`, "0"},
		{"unparseable string", `{"total_pagar": "N/A"}`, "0"},
		{"negative number", `{"total_pagar": -500}`, "0"},
		{"missing", `{}`, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := ParseRecord(tt.json)
			if err != nil {
				t.Fatalf("ParseRecord() error = %v", err)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !record.TotalPagar.Equal(want) {
				t.Errorf("TotalPagar = %s, want %s", record.TotalPagar, want)
			}
		})
	}
}

func TestSanitizeConsumptionCeiling(t *testing.T) {
	tests := []struct {
		json string
		want string
	}{
		{`{"consumo": 18.5}`, "18.5"},
		{`{"consumo": 1000000}`, "1000000"}, // exactly at ceiling: kept
		{`{"consumo": 2000000}`, "0"},       // above ceiling: extraction error
		{`{"consumo": "150.5"}`, "150.5"},
		{`{"consumo": "garbage"}`, "0"},
	}
	for _, tt := range tests {
		record, err := ParseRecord(tt.json)
		if err != nil {
			t.Fatalf("ParseRecord(%q) error = %v", tt.json, err)
		}
		want, _ := decimal.NewFromString(tt.want)
		if !record.Consumo.Equal(want) {
			t.Errorf("Consumo(%s) = %s, want %s", tt.json, record.Consumo, want)
		}
	}
}
