// Package gemini provides the remote extraction path for utility-bill pages.
//
// It wraps the Gemini vision API: one instruction prompt plus the page image
// per request, a retry loop with an escalating output-token budget, sliding-
// window rate limiting in front of every attempt, defensive multi-shape
// response text extraction, and a mandatory sanitization pass over the parsed
// record. The remote engine is the expensive, high-accuracy path; the router
// only reaches for it when the local OCR confidence is too low or when remote
// extraction is forced.
//
// Required environment:
//   - GEMINI_API_KEY: API key for the Generative Language API
//   - GEMINI_MODEL: model name (optional, defaults to gemini-1.5-flash)
package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

// FinishReason is the normalized termination state of a generation call.
type FinishReason int

const (
	// FinishComplete means the model finished its answer normally.
	FinishComplete FinishReason = iota
	// FinishMaxTokens means the answer hit the output-token ceiling.
	FinishMaxTokens
	// FinishSafety means the model refused to answer.
	FinishSafety
	// FinishOther covers every remaining termination state.
	FinishOther
)

func (r FinishReason) String() string {
	switch r {
	case FinishComplete:
		return "complete"
	case FinishMaxTokens:
		return "max_tokens"
	case FinishSafety:
		return "safety"
	default:
		return "other"
	}
}

// Response is the narrow view of a generation result the adapter needs.
// Implementations expose raw text through the direct Text accessor and may
// additionally expose the structured parts list; the adapter tries the
// simpler accessor first and falls back to the parts.
type Response interface {
	// Text returns the response text through the direct accessor. It fails
	// when the response has no simple text representation.
	Text() (string, error)

	// Parts returns the text fragments of the structured candidate content,
	// in order. Empty when the response carries no parts.
	Parts() []string

	// FinishReason reports why generation stopped.
	FinishReason() FinishReason
}

// VisionEngine is the contract for the remote vision model.
type VisionEngine interface {
	// Name identifies the engine in logs and statistics.
	Name() string

	// Generate sends one prompt-plus-image request with the given output
	// token ceiling.
	Generate(ctx context.Context, prompt string, imageJPEG []byte, maxOutputTokens int32) (Response, error)
}

// Admitter gates calls into the remote engine. Satisfied by ratelimit.Limiter.
type Admitter interface {
	Admit(ctx context.Context) error
}

// Adapter drives the retry loop around a VisionEngine and turns responses
// into sanitized bill records.
type Adapter struct {
	engine  VisionEngine
	limiter Admitter

	maxAttempts    int
	tokenTiers     []int32
	attemptTimeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error

	log zerolog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMaxAttempts overrides the retry budget (default 3 attempts).
func WithMaxAttempts(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithTokenTiers overrides the escalating output-token schedule.
func WithTokenTiers(tiers []int32) Option {
	return func(a *Adapter) {
		if len(tiers) > 0 {
			a.tokenTiers = append([]int32(nil), tiers...)
		}
	}
}

// WithAttemptTimeout bounds each individual remote call (default 30s).
func WithAttemptTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.attemptTimeout = d
		}
	}
}

// NewAdapter creates an adapter over engine, admitting every attempt through
// limiter.
func NewAdapter(engine VisionEngine, limiter Admitter, opts ...Option) *Adapter {
	a := &Adapter{
		engine:         engine,
		limiter:        limiter,
		maxAttempts:    3,
		tokenTiers:     DefaultTokenTiers,
		attemptTimeout: 30 * time.Second,
		sleep:          sleepCtx,
		log:            logger.WithComponent("gemini"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Extract runs the full remote pipeline for one optimized page image and
// returns a sanitized record.
//
// Retry policy: up to maxAttempts calls, each first admitted by the rate
// limiter and given the next output-token tier. Truncated-and-empty responses
// escalate to the next tier; quota rejections back off exponentially and
// retry; safety blocks and malformed JSON are terminal immediately.
func (a *Adapter) Extract(ctx context.Context, imageJPEG []byte) (models.BillRecord, error) {
	const op = "Extract"

	var text string

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := a.limiter.Admit(ctx); err != nil {
			return models.BillRecord{}, WrapGeminiError(op, err, "rate limiter admission")
		}

		budget := a.tokenBudget(attempt)
		resp, err := a.generateOnce(ctx, imageJPEG, budget)
		if err != nil {
			lastAttempt := attempt == a.maxAttempts-1
			if ctx.Err() != nil {
				return models.BillRecord{}, WrapGeminiError(op, ctx.Err(), "canceled")
			}
			if isRateLimited(err) {
				if lastAttempt {
					return models.BillRecord{}, WrapGeminiError(op, ErrRateLimited, err.Error())
				}
				backoff := time.Duration(2*(attempt+1)) * time.Second
				a.log.Warn().
					Err(err).
					Dur("backoff", backoff).
					Int("attempt", attempt+1).
					Msg("Remote call rate limited, backing off")
				if serr := a.sleep(ctx, backoff); serr != nil {
					return models.BillRecord{}, WrapGeminiError(op, serr, "canceled during backoff")
				}
				continue
			}
			if lastAttempt {
				return models.BillRecord{}, WrapGeminiError(op, ErrUnavailable, err.Error())
			}
			retryIn := time.Duration(attempt+1) * time.Second
			a.log.Warn().
				Err(err).
				Dur("retry_in", retryIn).
				Int("attempt", attempt+1).
				Msg("Remote call failed, retrying")
			if serr := a.sleep(ctx, retryIn); serr != nil {
				return models.BillRecord{}, WrapGeminiError(op, serr, "canceled during retry wait")
			}
			continue
		}

		if resp.FinishReason() == FinishSafety {
			return models.BillRecord{}, WrapGeminiError(op, ErrSafetyBlocked, "")
		}

		text = extractText(resp)

		if text != "" && resp.FinishReason() != FinishMaxTokens {
			break
		}

		if resp.FinishReason() == FinishMaxTokens {
			if attempt < a.maxAttempts-1 {
				a.log.Debug().
					Int32("budget", budget).
					Int("attempt", attempt+1).
					Msg("Response truncated, escalating token budget")
				text = ""
				continue
			}
			if text == "" {
				return models.BillRecord{}, WrapGeminiError(op, ErrMaxTokens, "")
			}
			// Truncated on the final tier but non-empty: let the parser
			// decide whether the JSON survived.
			break
		}

		if text == "" {
			if attempt == a.maxAttempts-1 {
				return models.BillRecord{}, WrapGeminiError(op, ErrEmptyResponse, "")
			}
			continue
		}
	}

	if text == "" {
		return models.BillRecord{}, WrapGeminiError(op, ErrEmptyResponse, "")
	}

	record, err := ParseRecord(text)
	if err != nil {
		return models.BillRecord{}, WrapGeminiError(op, ErrMalformed, err.Error())
	}
	return record, nil
}

// generateOnce performs one bounded engine call.
func (a *Adapter) generateOnce(ctx context.Context, imageJPEG []byte, budget int32) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.attemptTimeout)
	defer cancel()
	return a.engine.Generate(callCtx, ExtractionPrompt, imageJPEG, budget)
}

func (a *Adapter) tokenBudget(attempt int) int32 {
	if attempt >= len(a.tokenTiers) {
		return a.tokenTiers[len(a.tokenTiers)-1]
	}
	return a.tokenTiers[attempt]
}

// extractText pulls the response text, trying the direct accessor first and
// falling back to the structured parts. Both paths failing yields "".
func extractText(resp Response) string {
	if text, err := resp.Text(); err == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.Join(resp.Parts(), ""))
}

// isRateLimited classifies quota rejections from the remote API.
func isRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
