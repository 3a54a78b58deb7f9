package models

import (
	"github.com/shopspring/decimal"
)

// Engine names as reported in statistics and record metadata.
const (
	EngineTesseract = "tesseract"
	EngineGemini    = "gemini"
)

// BillRecord holds the structured fields extracted from one utility-bill page.
//
// Every field is always present: absent or unreadable values are "" for
// strings and zero for decimals. Downstream consumers (export, display) rely
// on this and never check for missing fields.
type BillRecord struct {
	// Core identifiers
	NumeroContrato   string `json:"numero_contrato"`   // Client contract number ("No. CONTRATO")
	Direccion        string `json:"direccion"`         // Service address of the property
	CodigoReferencia string `json:"codigo_referencia"` // Electronic payment / PSE reference code
	NumeroFactura    string `json:"numero_factura"`    // Invoice or receipt number

	// Amounts
	TotalPagar decimal.Decimal `json:"total_pagar"` // Total amount due, never negative
	Consumo    decimal.Decimal `json:"consumo"`     // Metered consumption in service units

	// Issuer
	Empresa    string `json:"empresa"`     // Utility company name
	NitEmpresa string `json:"nit_empresa"` // Company tax ID (NIT)

	// Billing period
	PeriodoFacturado string `json:"periodo_facturado"` // Billed period, e.g. "Enero 2024"
	FechaVencimiento string `json:"fecha_vencimiento"` // Payment deadline, DD/MM/YYYY as printed

	// Metering
	Medidor string `json:"medidor"` // Physical meter number, if the service is metered
}

// NewBillRecord returns a record with all fields at their defaults.
func NewBillRecord() BillRecord {
	return BillRecord{
		TotalPagar: decimal.Zero,
		Consumo:    decimal.Zero,
	}
}

// IsEmpty reports whether no field of the record carries a value.
func (r BillRecord) IsEmpty() bool {
	return r.NumeroContrato == "" &&
		r.Direccion == "" &&
		r.CodigoReferencia == "" &&
		r.NumeroFactura == "" &&
		r.Empresa == "" &&
		r.NitEmpresa == "" &&
		r.PeriodoFacturado == "" &&
		r.FechaVencimiento == "" &&
		r.Medidor == "" &&
		r.TotalPagar.IsZero() &&
		r.Consumo.IsZero()
}

// OutcomeKind tags the terminal state of a single page.
type OutcomeKind int

const (
	// OutcomeSuccess means a record was extracted, possibly degraded.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeSkipped means the page failed validation and was never dispatched.
	OutcomeSkipped
	// OutcomeFailed means every applicable engine failed for the page.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageOutcome is the single terminal result for one page. Exactly one outcome
// exists per page; there are no partial results.
type PageOutcome struct {
	// PageIndex is the 0-based position of the page in the source document.
	PageIndex int

	Kind OutcomeKind

	// Record is populated on success and holds defaults otherwise.
	Record BillRecord

	// Engine is the name of the engine whose record was accepted.
	Engine string

	// Reason explains a skip or failure in one line.
	Reason string

	// CacheHit marks records served from the result cache without any
	// engine invocation.
	CacheHit bool
}

// JobStats aggregates per-document counters. A fresh instance is created for
// every processed document.
type JobStats struct {
	TotalPages int            `json:"total_pages"` // All rasterized pages, valid or not
	ValidPages int            `json:"valid_pages"` // Pages that passed validation
	ByEngine   map[string]int `json:"by_engine"`   // Successful extractions per engine name
	CacheHits  int            `json:"cache_hits"`  // Pages served entirely from cache
	Skipped    int            `json:"skipped"`     // Pages excluded by validation
	Failed     int            `json:"failed"`      // Pages with no usable record
}

// NewJobStats returns zeroed stats ready for counting.
func NewJobStats(totalPages int) *JobStats {
	return &JobStats{
		TotalPages: totalPages,
		ByEngine:   make(map[string]int),
	}
}
