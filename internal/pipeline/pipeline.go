// Package pipeline wires the reconciliation flow: analyst text in,
// per-timeframe states and a consensus verdict persisted out.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"priceaction-bot/internal/consensus"
	"priceaction-bot/internal/events"
	"priceaction-bot/internal/parser"
	"priceaction-bot/internal/state"
)

// DefaultTimeframes is the multiplexed timeframe set of the analyst
// protocol.
var DefaultTimeframes = []string{"15m", "1h", "1d"}

// Analyst produces the raw completion text for one symbol. One call
// covers all timeframes.
type Analyst interface {
	Analyze(ctx context.Context, symbol string) (string, error)
}

// Reconciler runs the full reconciliation for one symbol per call. It
// is stateless between calls; a full retry re-fetches fresh analyst
// text and re-runs everything.
type Reconciler struct {
	store      state.Store
	engine     *consensus.Engine
	bus        *events.EventBus
	analyst    Analyst
	timeframes []string
	logger     zerolog.Logger
}

// NewReconciler creates a Reconciler. bus may be nil.
func NewReconciler(store state.Store, engine *consensus.Engine, bus *events.EventBus, analyst Analyst, timeframes []string, logger zerolog.Logger) *Reconciler {
	if len(timeframes) == 0 {
		timeframes = DefaultTimeframes
	}
	return &Reconciler{
		store:      store,
		engine:     engine,
		bus:        bus,
		analyst:    analyst,
		timeframes: timeframes,
		logger:     logger,
	}
}

// ReconcileSymbol fetches analyst text for the symbol, reconciles every
// timeframe, persists the states, and computes and persists the
// consensus. A failed extraction degrades to inference over the full
// prose; only analyst and storage errors abort the run.
func (r *Reconciler) ReconcileSymbol(ctx context.Context, symbol string) (*state.ConsensusResult, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Str("symbol", symbol).Logger()

	text, err := r.analyst.Analyze(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("analyst: %w", err)
	}

	sanitized := parser.Sanitize(text)

	var (
		slices map[string]json.RawMessage
		shared json.RawMessage
		prose  = sanitized
	)
	res, err := parser.Extract(sanitized)
	switch {
	case err == nil:
		slices, shared = parser.TimeframeSlices(res.Payload, r.timeframes)
		prose = res.Prose
		logger.Debug().Str("strategy", res.Strategy).Int("timeframes", len(slices)).Msg("payload extracted")
	default:
		var exErr *parser.ExtractionError
		if !errors.As(err, &exErr) {
			return nil, err
		}
		// Recoverable: infer every timeframe from the full prose.
		logger.Warn().Str("reason", exErr.Reason).Msg("extraction failed, inferring from prose")
		if r.bus != nil {
			r.bus.PublishExtractionFailed(symbol, exErr.Reason, exErr.Span)
		}
	}

	now := time.Now().UTC()
	states := make([]*state.TimeframeState, 0, len(r.timeframes))
	for _, tf := range r.timeframes {
		st, inferred := r.reconcileTimeframe(logger, symbol, tf, slices[tf], prose)
		st.MultiTimeframe = shared
		st.LastUpdated = now

		if err := r.store.SaveState(ctx, st); err != nil {
			return nil, fmt.Errorf("save state %s/%s: %w", symbol, tf, err)
		}
		if r.bus != nil {
			r.bus.PublishStateReconciled(symbol, tf, inferred)
		}
		states = append(states, st)
	}

	cr := r.engine.Evaluate(symbol, states)
	if err := r.store.SaveConsensus(ctx, cr); err != nil {
		return nil, fmt.Errorf("save consensus %s: %w", symbol, err)
	}
	if r.bus != nil {
		r.bus.PublishConsensusUpdated(symbol, string(cr.Direction), cr.Confidence)
	}

	logger.Info().
		Str("direction", string(cr.Direction)).
		Float64("confidence", cr.Confidence).
		Msg("symbol reconciled")
	return cr, nil
}

// reconcileTimeframe builds one timeframe's state from its payload
// slice, falling back to pure inference when the slice is missing or
// malformed. The returned flag reports whether inference ran on an
// empty partial state.
func (r *Reconciler) reconcileTimeframe(logger zerolog.Logger, symbol, timeframe string, slice json.RawMessage, prose string) (*state.TimeframeState, bool) {
	var st state.TimeframeState
	inferred := true
	if slice != nil {
		if err := json.Unmarshal(slice, &st); err != nil {
			logger.Warn().Err(err).Str("timeframe", timeframe).Msg("malformed timeframe slice, inferring from prose")
			st = state.TimeframeState{}
		} else {
			inferred = false
		}
	}

	st.Symbol = symbol
	st.Timeframe = timeframe
	st.AnalysisText = prose

	completed := parser.Complete(prose, st)
	return &completed, inferred
}

// Timeframes returns the configured timeframe set.
func (r *Reconciler) Timeframes() []string {
	return r.timeframes
}
