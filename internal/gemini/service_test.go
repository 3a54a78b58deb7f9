package gemini

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeResponse implements Response with canned values.
type fakeResponse struct {
	text    string
	textErr error
	parts   []string
	finish  FinishReason
}

func (r *fakeResponse) Text() (string, error)      { return r.text, r.textErr }
func (r *fakeResponse) Parts() []string            { return r.parts }
func (r *fakeResponse) FinishReason() FinishReason { return r.finish }

// scriptedEngine replays a fixed sequence of responses/errors and records
// the token budget of every call.
type scriptedEngine struct {
	responses []*fakeResponse
	errs      []error
	budgets   []int32
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) Generate(ctx context.Context, prompt string, img []byte, maxTokens int32) (Response, error) {
	call := len(e.budgets)
	e.budgets = append(e.budgets, maxTokens)
	if call < len(e.errs) && e.errs[call] != nil {
		return nil, e.errs[call]
	}
	if call < len(e.responses) {
		return e.responses[call], nil
	}
	return nil, errors.New("unscripted call")
}

// countingLimiter records admissions without blocking.
type countingLimiter struct {
	admitted int
	err      error
}

func (l *countingLimiter) Admit(ctx context.Context) error {
	if l.err != nil {
		return l.err
	}
	l.admitted++
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestAdapter(engine VisionEngine, limiter Admitter) *Adapter {
	a := NewAdapter(engine, limiter)
	a.sleep = noSleep
	return a
}

func TestExtractSuccessFirstAttempt(t *testing.T) {
	engine := &scriptedEngine{responses: []*fakeResponse{
		{text: validBillJSON, finish: FinishComplete},
	}}
	limiter := &countingLimiter{}
	a := newTestAdapter(engine, limiter)

	record, err := a.Extract(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if record.NumeroContrato != "5512345" {
		t.Errorf("NumeroContrato = %q", record.NumeroContrato)
	}
	if limiter.admitted != 1 {
		t.Errorf("admitted = %d, want 1", limiter.admitted)
	}
	if len(engine.budgets) != 1 || engine.budgets[0] != 2048 {
		t.Errorf("budgets = %v, want [2048]", engine.budgets)
	}
}

func TestExtractEscalatesTokenBudgetOnTruncation(t *testing.T) {
	// Attempt 1 truncates with empty text; attempt 2 succeeds at the larger
	// budget. The final record must come from attempt 2.
	engine := &scriptedEngine{responses: []*fakeResponse{
		{text: "", finish: FinishMaxTokens},
		{text: validBillJSON, finish: FinishComplete},
	}}
	limiter := &countingLimiter{}
	a := newTestAdapter(engine, limiter)

	record, err := a.Extract(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if record.Empresa != "Acueducto de Bogota" {
		t.Errorf("Empresa = %q, want attempt-2 data", record.Empresa)
	}
	if len(engine.budgets) != 2 || engine.budgets[0] != 2048 || engine.budgets[1] != 3072 {
		t.Errorf("budgets = %v, want [2048 3072]", engine.budgets)
	}
	if limiter.admitted != 2 {
		t.Errorf("admitted = %d, want one admission per attempt", limiter.admitted)
	}
}

func TestExtractTruncatedEmptyAtAllTiersFails(t *testing.T) {
	engine := &scriptedEngine{responses: []*fakeResponse{
		{text: "", finish: FinishMaxTokens},
		{text: "", finish: FinishMaxTokens},
		{text: "", finish: FinishMaxTokens},
	}}
	a := newTestAdapter(engine, &countingLimiter{})

	_, err := a.Extract(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrMaxTokens) {
		t.Fatalf("Extract() error = %v, want ErrMaxTokens", err)
	}
	if len(engine.budgets) != 3 {
		t.Errorf("calls = %d, want 3", len(engine.budgets))
	}
}

func TestExtractSafetyBlockedIsTerminal(t *testing.T) {
	engine := &scriptedEngine{responses: []*fakeResponse{
		{text: "", finish: FinishSafety},
	}}
	a := newTestAdapter(engine, &countingLimiter{})

	_, err := a.Extract(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrSafetyBlocked) {
		t.Fatalf("Extract() error = %v, want ErrSafetyBlocked", err)
	}
	if len(engine.budgets) != 1 {
		t.Errorf("calls = %d, want 1 (no retry after safety block)", len(engine.budgets))
	}
}

func TestExtractMalformedIsTerminal(t *testing.T) {
	engine := &scriptedEngine{responses: []*fakeResponse{
		{text: "definitely not json", finish: FinishComplete},
	}}
	a := newTestAdapter(engine, &countingLimiter{})

	_, err := a.Extract(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Extract() error = %v, want ErrMalformed", err)
	}
	if len(engine.budgets) != 1 {
		t.Errorf("calls = %d, want 1 (malformed output is not retried)", len(engine.budgets))
	}
}

func TestExtractRateLimitedRetriesThenSucceeds(t *testing.T) {
	engine := &scriptedEngine{
		errs: []error{errors.New("googleapi: Error 429: rate limit"), nil},
		responses: []*fakeResponse{
			nil,
			{text: validBillJSON, finish: FinishComplete},
		},
	}
	a := newTestAdapter(engine, &countingLimiter{})

	record, err := a.Extract(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if record.NumeroContrato != "5512345" {
		t.Errorf("NumeroContrato = %q", record.NumeroContrato)
	}
	if len(engine.budgets) != 2 {
		t.Errorf("calls = %d, want 2", len(engine.budgets))
	}
}

func TestExtractRateLimitedExhaustsBudget(t *testing.T) {
	rlErr := errors.New("googleapi: Error 429: quota exceeded")
	engine := &scriptedEngine{errs: []error{rlErr, rlErr, rlErr}}
	a := newTestAdapter(engine, &countingLimiter{})

	_, err := a.Extract(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Extract() error = %v, want ErrRateLimited", err)
	}
}

func TestExtractTransientErrorsExhaustToUnavailable(t *testing.T) {
	netErr := errors.New("connection reset by peer")
	engine := &scriptedEngine{errs: []error{netErr, netErr, netErr}}
	a := newTestAdapter(engine, &countingLimiter{})

	_, err := a.Extract(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Extract() error = %v, want ErrUnavailable", err)
	}
	if len(engine.budgets) != 3 {
		t.Errorf("calls = %d, want full retry budget", len(engine.budgets))
	}
}

func TestExtractFallsBackToPartsAccessor(t *testing.T) {
	engine := &scriptedEngine{responses: []*fakeResponse{
		{
			textErr: errors.New("no direct text"),
			parts:   []string{"```json\n", validBillJSON, "\n```"},
			finish:  FinishComplete,
		},
	}}
	a := newTestAdapter(engine, &countingLimiter{})

	record, err := a.Extract(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if record.NitEmpresa != "899999094-1" {
		t.Errorf("NitEmpresa = %q, want parts-assembled record", record.NitEmpresa)
	}
}

func TestExtractLimiterErrorAborts(t *testing.T) {
	limiter := &countingLimiter{err: context.Canceled}
	a := newTestAdapter(&scriptedEngine{}, limiter)

	if _, err := a.Extract(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("Extract() should fail when admission fails")
	}
}
