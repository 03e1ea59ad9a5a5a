// Package consensus computes a single weighted directional verdict per
// symbol from its per-timeframe states.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"time"

	"priceaction-bot/internal/state"
)

// defaultWeight applies to timeframes missing from the weight table.
const defaultWeight = 0.5

// Config holds the weight table and tie epsilon. Weights encode
// higher-timeframe dominance: daily structure overrides intraday noise.
type Config struct {
	Weights map[string]float64
	Epsilon float64
}

// DefaultConfig returns the documented weight table (15m=0.3, 1h=0.6,
// 1d=1.0) and epsilon.
func DefaultConfig() Config {
	return Config{
		Weights: map[string]float64{
			"15m": 0.3,
			"1h":  0.6,
			"1d":  1.0,
		},
		Epsilon: 1e-9,
	}
}

// Engine is a pure evaluator over timeframe states.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given configuration. Zero-value
// fields fall back to DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Weights == nil {
		cfg.Weights = def.Weights
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &Engine{cfg: cfg}
}

type lean int

const (
	leanNeutral lean = iota
	leanBullish
	leanBearish
)

// classify derives a timeframe's directional lean. The action plan's
// direction overrides the market cycle when both are present, since the
// plan is the more specific, more recent signal.
func classify(st *state.TimeframeState) lean {
	l := leanNeutral
	switch st.MarketCycle {
	case state.CycleBullTrend:
		l = leanBullish
	case state.CycleBearTrend:
		l = leanBearish
	}
	switch st.ActionPlan.Direction {
	case state.DirectionLong:
		l = leanBullish
	case state.DirectionShort:
		l = leanBearish
	case state.DirectionNeutral:
		l = leanNeutral
	}
	return l
}

// Evaluate folds the given timeframe states into one ConsensusResult.
// Aligned and Conflicting always partition the input timeframes; when
// the overall direction is NEUTRAL, neutral leans count as aligned.
// Equal scores (within epsilon) yield NEUTRAL with confidence 0.
func (e *Engine) Evaluate(symbol string, states []*state.TimeframeState) *state.ConsensusResult {
	var bullish, bearish, total float64
	leans := make(map[string]lean, len(states))
	timeframes := make([]string, 0, len(states))

	for _, st := range states {
		w, ok := e.cfg.Weights[st.Timeframe]
		if !ok {
			w = defaultWeight
		}
		l := classify(st)
		leans[st.Timeframe] = l
		timeframes = append(timeframes, st.Timeframe)
		total += w
		switch l {
		case leanBullish:
			bullish += w
		case leanBearish:
			bearish += w
		}
	}
	sort.Strings(timeframes)

	direction := state.ConsensusNeutral
	switch {
	case bullish-bearish > e.cfg.Epsilon:
		direction = state.ConsensusBullish
	case bearish-bullish > e.cfg.Epsilon:
		direction = state.ConsensusBearish
	}

	var confidence float64
	if direction != state.ConsensusNeutral && total > 0 {
		confidence = math.Abs(bullish-bearish) / total
		if confidence > 1 {
			confidence = 1
		}
	}

	aligned := make([]string, 0, len(timeframes))
	conflicting := make([]string, 0, len(timeframes))
	for _, tf := range timeframes {
		if agrees(leans[tf], direction) {
			aligned = append(aligned, tf)
		} else {
			conflicting = append(conflicting, tf)
		}
	}

	return &state.ConsensusResult{
		Symbol:         symbol,
		Direction:      direction,
		Confidence:     confidence,
		Aligned:        aligned,
		Conflicting:    conflicting,
		BullishScore:   bullish,
		BearishScore:   bearish,
		Recommendation: recommendation(direction, confidence, conflicting),
		CreatedAt:      time.Now().UTC(),
	}
}

func agrees(l lean, direction state.ConsensusDirection) bool {
	switch direction {
	case state.ConsensusBullish:
		return l == leanBullish
	case state.ConsensusBearish:
		return l == leanBearish
	default:
		return l == leanNeutral
	}
}

func recommendation(direction state.ConsensusDirection, confidence float64, conflicting []string) string {
	switch direction {
	case state.ConsensusNeutral:
		return "No directional edge across timeframes; stand aside."
	default:
		if len(conflicting) == 0 {
			return fmt.Sprintf("All timeframes %s; trade with the trend (confidence %.2f).", direction, confidence)
		}
		return fmt.Sprintf("%s bias with %d conflicting timeframe(s); reduce size (confidence %.2f).", direction, len(conflicting), confidence)
	}
}
