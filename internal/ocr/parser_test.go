package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseBillTextFullBill(t *testing.T) {
	text := `EMPRESA DE ENERGIA
No. CONTRATO: 5512345
DIRECCION: CRA 7 No 45-12
CODIGO DE REFERENCIA: 440012345
TOTAL A PAGAR: $128,500`

	record := ParseBillText(text)

	if record.NumeroContrato != "5512345" {
		t.Errorf("NumeroContrato = %q, want 5512345", record.NumeroContrato)
	}
	if record.Direccion != "CRA 7 No 45-12" {
		t.Errorf("Direccion = %q, want CRA 7 No 45-12", record.Direccion)
	}
	if record.CodigoReferencia != "440012345" {
		t.Errorf("CodigoReferencia = %q, want 440012345", record.CodigoReferencia)
	}
	if want := decimal.NewFromInt(1285); !record.TotalPagar.Equal(want) {
		t.Errorf("TotalPagar = %s, want %s", record.TotalPagar, want)
	}
}

func TestParseBillTextRulesAreIndependent(t *testing.T) {
	record := ParseBillText("CONTRATO: AB-9921 sin mas datos legibles")
	if record.NumeroContrato != "AB-9921" {
		t.Errorf("NumeroContrato = %q, want AB-9921", record.NumeroContrato)
	}
	if record.Direccion != "" || record.CodigoReferencia != "" {
		t.Error("unmatched fields must stay at defaults")
	}
	if !record.TotalPagar.IsZero() {
		t.Errorf("TotalPagar = %s, want 0", record.TotalPagar)
	}
}

func TestParseBillTextEmpty(t *testing.T) {
	record := ParseBillText("")
	if !record.IsEmpty() {
		t.Fatalf("ParseBillText(\"\") = %+v, want empty record", record)
	}
}

func TestParseBillTextReferenceAcrossLines(t *testing.T) {
	text := "CODIGO\nDE REFERENCIA: 77881234"
	record := ParseBillText(text)
	if record.CodigoReferencia != "77881234" {
		t.Errorf("CodigoReferencia = %q, want 77881234", record.CodigoReferencia)
	}
}

func TestParseTotalDigitLengthHeuristic(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"85", "85"},            // 2 digits: kept as-is
		{"125.000", "1250"},     // 6 digits: assumed two decimals
		{"1,250,000", "1250000"}, // 7 digits: already whole pesos
		{"500", "5"},            // 3 digits: assumed two decimals
	}
	for _, tt := range tests {
		got := parseTotal(tt.raw)
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("parseTotal(%q) = %s, want %s", tt.raw, got, want)
		}
	}
}

// fakeEngine returns canned text or an error.
type fakeEngine struct {
	result RecognizeResult
	err    error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image) (RecognizeResult, error) {
	return f.result, f.err
}

func TestAdapterExtract(t *testing.T) {
	engine := &fakeEngine{result: RecognizeResult{
		Text:            sampleBillText,
		WordConfidences: []int{92, 88, 85},
	}}
	adapter := NewAdapter(engine)

	res, err := adapter.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Record.NumeroContrato != "12345678" {
		t.Errorf("NumeroContrato = %q, want 12345678", res.Record.NumeroContrato)
	}
	if res.Confidence <= 0 {
		t.Errorf("Confidence = %v, want > 0", res.Confidence)
	}
}

func TestAdapterDegradesOnEngineError(t *testing.T) {
	adapter := NewAdapter(&fakeEngine{err: errors.New("tesseract exploded")})

	res, err := adapter.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	if err != nil {
		t.Fatalf("Extract() error = %v, want degraded nil-error result", err)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
	if !res.Record.IsEmpty() {
		t.Errorf("Record = %+v, want empty", res.Record)
	}
}

func TestAdapterHonorsCanceledContext(t *testing.T) {
	adapter := NewAdapter(&fakeEngine{result: RecognizeResult{Text: sampleBillText}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := adapter.Extract(ctx, image.NewGray(image.Rect(0, 0, 10, 10))); err == nil {
		t.Fatal("Extract() with canceled context should fail")
	}
}
