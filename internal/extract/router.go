package extract

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/internal/ocr"
	"github.com/pjojoa/DocuMarval/internal/raster"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

// LocalEngine is the local extraction path. Satisfied by ocr.Adapter.
type LocalEngine interface {
	// Available reports whether the engine can run at all.
	Available() bool

	// Extract recognizes the page and returns a scored record. Engine
	// failures degrade to an empty zero-confidence result; the only error
	// is context cancellation.
	Extract(ctx context.Context, img image.Image) (ocr.Result, error)
}

// RemoteEngine is the remote extraction path. Satisfied by gemini.Adapter.
type RemoteEngine interface {
	// Extract sends one optimized page image and returns a sanitized record.
	Extract(ctx context.Context, imageJPEG []byte) (models.BillRecord, error)
}

// routeState tracks the per-page routing state machine.
type routeState int

const (
	stateNotStarted routeState = iota
	stateLocalAttempted
	stateRemoteAttempted
	stateDone
)

func (s routeState) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateLocalAttempted:
		return "local_attempted"
	case stateRemoteAttempted:
		return "remote_attempted"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// RouteResult is the accepted record for one page plus routing metadata.
type RouteResult struct {
	Record models.BillRecord

	// Engine names the engine whose record was accepted.
	Engine string

	// Confidence is the local heuristic score when Engine is the local one,
	// zero otherwise.
	Confidence float64

	// Degraded marks a below-threshold local record kept because the remote
	// fallback failed.
	Degraded bool
}

// Router decides, per page, which engine's record to accept.
//
// Routing policy: with force-remote set, or with the local engine unavailable,
// the page goes straight to the remote engine. Otherwise the local engine runs
// first and its record is accepted when the confidence score reaches the
// threshold; below threshold the remote engine is tried, and if it also fails
// the below-threshold local record is returned anyway. A degraded record beats
// a failed page.
type Router struct {
	local     LocalEngine
	remote    RemoteEngine
	threshold float64
	force     bool

	optimize func(image.Image) ([]byte, error)

	log zerolog.Logger
}

// NewRouter wires both engines behind the given acceptance threshold.
// forceRemote bypasses the local engine entirely.
func NewRouter(local LocalEngine, remote RemoteEngine, threshold float64, forceRemote bool) *Router {
	return &Router{
		local:     local,
		remote:    remote,
		threshold: threshold,
		force:     forceRemote,
		optimize:  raster.OptimizeForUpload,
		log:       logger.WithComponent("router"),
	}
}

// Route runs the routing state machine for one page image.
//
// The returned error is non-nil only when no record at all could be produced:
// context cancellation, or a remote failure with no local record to fall back
// on. Callers record that as a failed page, not a failed job.
func (r *Router) Route(ctx context.Context, pageIndex int, img image.Image) (RouteResult, error) {
	state := stateNotStarted

	var localRes ocr.Result
	localRan := false

	if !r.force && r.local.Available() {
		res, err := r.local.Extract(ctx, img)
		if err != nil {
			return RouteResult{}, err
		}
		state = stateLocalAttempted
		localRes = res
		localRan = true

		if res.Confidence >= r.threshold {
			state = stateDone
			r.log.Debug().
				Int("page", pageIndex).
				Float64("confidence", res.Confidence).
				Str("state", state.String()).
				Msg("Local record accepted")
			return RouteResult{
				Record:     res.Record,
				Engine:     models.EngineTesseract,
				Confidence: res.Confidence,
			}, nil
		}
		r.log.Debug().
			Int("page", pageIndex).
			Float64("confidence", res.Confidence).
			Float64("threshold", r.threshold).
			Msg("Local confidence below threshold, falling back to remote")
	} else {
		r.log.Debug().
			Int("page", pageIndex).
			Bool("force_remote", r.force).
			Msg("Skipping local engine")
	}

	record, err := r.routeRemote(ctx, img)
	state = stateRemoteAttempted
	if err == nil {
		state = stateDone
		r.log.Debug().
			Int("page", pageIndex).
			Str("state", state.String()).
			Msg("Remote record accepted")
		return RouteResult{Record: record, Engine: models.EngineGemini}, nil
	}
	if ctx.Err() != nil {
		return RouteResult{}, ctx.Err()
	}

	if localRan {
		r.log.Warn().
			Err(err).
			Int("page", pageIndex).
			Float64("confidence", localRes.Confidence).
			Msg("Remote fallback failed, keeping degraded local record")
		return RouteResult{
			Record:     localRes.Record,
			Engine:     models.EngineTesseract,
			Confidence: localRes.Confidence,
			Degraded:   true,
		}, nil
	}

	return RouteResult{}, err
}

// routeRemote optimizes the page image and runs the remote engine.
func (r *Router) routeRemote(ctx context.Context, img image.Image) (models.BillRecord, error) {
	data, err := r.optimize(img)
	if err != nil {
		return models.BillRecord{}, err
	}
	return r.remote.Extract(ctx, data)
}
