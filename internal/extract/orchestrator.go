// Package extract coordinates the per-page extraction pipeline: adaptive
// routing between the local OCR engine and the remote vision engine, a
// content-addressed result cache in front of the remote path, and a bounded
// worker pool that processes pages concurrently while preserving the original
// page order in the output.
package extract

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pjojoa/DocuMarval/internal/cache"
	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/internal/raster"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

// Options tunes one processing job. Zero values fall back to the
// orchestrator's configured defaults.
type Options struct {
	// ForceRemote sends every page straight to the remote engine.
	ForceRemote bool

	// ConfidenceThreshold is the minimum local score to accept without
	// remote fallback.
	ConfidenceThreshold float64

	// MaxWorkers bounds page-level concurrency.
	MaxWorkers int

	// DPI is the rasterization resolution.
	DPI int
}

// Result is everything one processed document yields.
type Result struct {
	// Outcomes holds exactly one entry per rasterized page, ordered by the
	// original page index.
	Outcomes []models.PageOutcome

	Stats *models.JobStats
}

// Orchestrator owns the full document pipeline from PDF bytes to ordered
// per-page records.
type Orchestrator struct {
	rasterizer raster.Rasterizer
	local      LocalEngine
	remote     RemoteEngine
	cache      *cache.Store

	threshold  float64
	maxWorkers int
	dpi        int

	log zerolog.Logger
}

// NewOrchestrator wires the pipeline. threshold, maxWorkers and dpi become
// the per-job defaults; Options may override each per call.
func NewOrchestrator(rasterizer raster.Rasterizer, local LocalEngine, remote RemoteEngine, store *cache.Store, threshold float64, maxWorkers, dpi int) *Orchestrator {
	return &Orchestrator{
		rasterizer: rasterizer,
		local:      local,
		remote:     remote,
		cache:      store,
		threshold:  threshold,
		maxWorkers: maxWorkers,
		dpi:        dpi,
		log:        logger.WithComponent("extract"),
	}
}

// Process rasterizes the PDF and runs every valid page through the adaptive
// pipeline.
//
// The job fails only when rasterization fails or when no page survives
// validation. Individual page failures are recorded as Failed outcomes with
// empty-default records and never affect sibling pages. The returned outcome
// sequence always covers every rasterized page in original page order.
func (o *Orchestrator) Process(ctx context.Context, pdf []byte, opts Options) (*Result, error) {
	const op = "Process"

	threshold := o.threshold
	if opts.ConfidenceThreshold > 0 {
		threshold = opts.ConfidenceThreshold
	}
	maxWorkers := o.maxWorkers
	if opts.MaxWorkers > 0 {
		maxWorkers = opts.MaxWorkers
	}
	dpi := o.dpi
	if opts.DPI > 0 {
		dpi = opts.DPI
	}

	pages, err := o.rasterizer.Render(ctx, pdf, dpi)
	if err != nil {
		return nil, WrapExtractError(op, ErrRasterize, err.Error())
	}

	stats := models.NewJobStats(len(pages))
	outcomes := make(map[int]models.PageOutcome, len(pages))

	var valid []raster.PageImage
	for _, page := range pages {
		ok, reason := raster.ValidatePage(page.Image)
		if !ok {
			outcomes[page.Index] = models.PageOutcome{
				PageIndex: page.Index,
				Kind:      models.OutcomeSkipped,
				Record:    models.NewBillRecord(),
				Reason:    reason,
			}
			stats.Skipped++
			o.log.Info().Int("page", page.Index).Str("reason", reason).Msg("Page skipped")
			continue
		}
		valid = append(valid, page)
	}
	stats.ValidPages = len(valid)

	if len(valid) == 0 {
		return nil, WrapExtractError(op, ErrNoValidPages, "")
	}

	router := NewRouter(o.local, o.remote, threshold, opts.ForceRemote)

	workers := maxWorkers
	if workers > len(valid) {
		workers = len(valid)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, page := range valid {
		g.Go(func() error {
			outcome, err := o.processPage(gctx, router, page)
			if err != nil {
				return err
			}
			mu.Lock()
			outcomes[page.Index] = outcome
			o.recordStats(stats, outcome)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, WrapExtractError(op, err, "job canceled")
	}

	ordered := make([]models.PageOutcome, 0, len(pages))
	for i := 0; i < len(pages); i++ {
		ordered = append(ordered, outcomes[i])
	}

	o.log.Info().
		Int("total_pages", stats.TotalPages).
		Int("valid_pages", stats.ValidPages).
		Int("cache_hits", stats.CacheHits).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Document processed")

	return &Result{Outcomes: ordered, Stats: stats}, nil
}

// processPage runs fingerprint, cache lookup, routing and cache store for one
// page. The returned error is context cancellation only; every other failure
// becomes a Failed outcome.
func (o *Orchestrator) processPage(ctx context.Context, router *Router, page raster.PageImage) (models.PageOutcome, error) {
	fp, err := raster.Fingerprint(page.Image)
	if err != nil {
		o.log.Warn().Err(err).Int("page", page.Index).Msg("Fingerprint failed, bypassing cache")
	} else if record, ok := o.cache.Get(fp); ok {
		o.log.Debug().Int("page", page.Index).Str("fingerprint", fp).Msg("Cache hit")
		return models.PageOutcome{
			PageIndex: page.Index,
			Kind:      models.OutcomeSuccess,
			Record:    record,
			Engine:    models.EngineGemini,
			CacheHit:  true,
		}, nil
	}

	res, err := router.Route(ctx, page.Index, page.Image)
	if err != nil {
		if ctx.Err() != nil {
			return models.PageOutcome{}, ctx.Err()
		}
		o.log.Error().Err(err).Int("page", page.Index).Msg("Page extraction failed")
		return models.PageOutcome{
			PageIndex: page.Index,
			Kind:      models.OutcomeFailed,
			Record:    models.NewBillRecord(),
			Reason:    err.Error(),
		}, nil
	}

	// Only clean remote records are worth replaying across documents.
	if fp != "" && res.Engine == models.EngineGemini && !res.Degraded {
		o.cache.Put(fp, res.Record)
	}

	return models.PageOutcome{
		PageIndex: page.Index,
		Kind:      models.OutcomeSuccess,
		Record:    res.Record,
		Engine:    res.Engine,
	}, nil
}

func (o *Orchestrator) recordStats(stats *models.JobStats, outcome models.PageOutcome) {
	switch outcome.Kind {
	case models.OutcomeSuccess:
		if outcome.CacheHit {
			stats.CacheHits++
			return
		}
		stats.ByEngine[outcome.Engine]++
	case models.OutcomeFailed:
		stats.Failed++
	}
}
