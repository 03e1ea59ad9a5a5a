// Package risk computes deterministic risk analyses for trade plans:
// reward/risk, Kelly-based sizing, expected value, and a staged exit
// schedule.
package risk

import (
	"fmt"
	"math"

	"priceaction-bot/internal/state"
)

// Config is the risk policy. All values are stable across runs; they
// are configuration, not computed.
type Config struct {
	// KellyMultiplier scales the raw Kelly fraction down.
	KellyMultiplier float64
	// AccountBalance and RiskPerTrade size the monetary risk unit.
	AccountBalance float64
	RiskPerTrade   float64
	// Risk band edges, as stop-distance percent of entry.
	LowMaxStopPct    float64
	MediumMaxStopPct float64
	HighMaxStopPct   float64
	// MinKellyForLow is the adjusted Kelly floor for the LOW band.
	MinKellyForLow float64
}

// DefaultConfig returns the documented risk policy.
func DefaultConfig() Config {
	return Config{
		KellyMultiplier:  0.8,
		AccountBalance:   10000,
		RiskPerTrade:     0.02,
		LowMaxStopPct:    1.0,
		MediumMaxStopPct: 2.5,
		HighMaxStopPct:   5.0,
		MinKellyForLow:   0.05,
	}
}

// InvalidTradePlanError reports a direction/price inconsistency. It is
// the engine's only fatal error; everything else degrades to defaults.
type InvalidTradePlanError struct {
	Reason string
}

func (e *InvalidTradePlanError) Error() string {
	return fmt.Sprintf("invalid trade plan: %s", e.Reason)
}

// Input is one trade plan plus its volatility context. ATR is the
// average true range on the plan's timeframe; HasVolatility is false
// when no kline data was available.
type Input struct {
	Entry          float64
	Stop           float64
	Target1        float64
	Target2        *float64
	Direction      state.Direction
	WinProbability float64
	ATR            float64
	HasVolatility  bool
}

// Engine is a pure risk calculator.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine; a zero Config falls back to DefaultConfig.
func NewEngine(cfg Config) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// rMultiplePlan is the fixed staged exit schedule: 30% off at +1R with
// the stop moved to breakeven, 30% at +2R with the stop moved to +1R,
// the remaining 40% at +3R or trailed.
func rMultiplePlan() []state.RMultipleStage {
	return []state.RMultipleStage{
		{Level: 1, ClosePercent: 30, StopAction: "move stop to breakeven"},
		{Level: 2, ClosePercent: 30, StopAction: "move stop to +1R"},
		{Level: 3, ClosePercent: 40, StopAction: "close or trail stop"},
	}
}

// Analyze computes the RiskAnalysis for the given input. It returns
// *InvalidTradePlanError when entry equals stop, when the stop sits on
// the wrong side of entry for the stated direction, or when the
// direction is not tradeable. Missing volatility zeroes the
// volatility-dependent fields and clears VolatilityOK instead of
// failing.
func (e *Engine) Analyze(in Input) (*state.RiskAnalysis, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	stopDistance := math.Abs(in.Entry - in.Stop)
	rr := math.Abs(in.Target1-in.Entry) / stopDistance

	p := clamp01(in.WinProbability)
	q := 1 - p
	var rawKelly float64
	if rr > 0 {
		rawKelly = (p*rr - q) / rr
	}
	adjusted := math.Max(0, rawKelly) * e.cfg.KellyMultiplier

	riskAmount := e.cfg.AccountBalance * e.cfg.RiskPerTrade
	expectedValue := p*rr*riskAmount - q*riskAmount

	positionSize := adjusted * 100
	stopPct := stopDistance / in.Entry * 100

	analysis := &state.RiskAnalysis{
		RiskRewardExpected:    rr,
		PositionSizeSuggested: positionSize,
		KellyFraction:         rawKelly,
		KellyFractionAdjusted: adjusted,
		MaxDrawdownEstimate:   math.Min(100, positionSize*3),
		ExpectedValue:         expectedValue,
		MaxLoss:               riskAmount,
		RMultiplePlan:         rMultiplePlan(),
		RiskLevel:             e.band(rawKelly, adjusted, stopPct),
		VolatilityOK:          in.HasVolatility,
	}

	// Sharpe-style estimate: per-trade expectancy in R units over the
	// ATR measured in stop distances. An internal estimate only, not an
	// exchange-verifiable figure.
	if in.HasVolatility && in.ATR > 0 {
		volatilityR := in.ATR / stopDistance
		analysis.SharpeRatioEstimate = (p*rr - q) / volatilityR
	}

	return analysis, nil
}

func validate(in Input) error {
	if in.Entry == in.Stop {
		return &InvalidTradePlanError{Reason: "entry equals stop"}
	}
	switch in.Direction {
	case state.DirectionLong:
		if in.Stop > in.Entry {
			return &InvalidTradePlanError{Reason: "stop above entry for LONG"}
		}
	case state.DirectionShort:
		if in.Stop < in.Entry {
			return &InvalidTradePlanError{Reason: "stop below entry for SHORT"}
		}
	default:
		return &InvalidTradePlanError{Reason: fmt.Sprintf("direction %q is not tradeable", in.Direction)}
	}
	if in.Entry <= 0 {
		return &InvalidTradePlanError{Reason: "entry must be positive"}
	}
	return nil
}

// band maps Kelly and stop distance onto the risk bands. A negative raw
// Kelly marks a negative-expectancy plan regardless of stop size.
func (e *Engine) band(rawKelly, adjusted, stopPct float64) state.RiskLevel {
	if rawKelly < 0 {
		if stopPct >= e.cfg.HighMaxStopPct {
			return state.RiskExtreme
		}
		return state.RiskHigh
	}
	switch {
	case stopPct < e.cfg.LowMaxStopPct && adjusted >= e.cfg.MinKellyForLow:
		return state.RiskLow
	case stopPct < e.cfg.MediumMaxStopPct:
		return state.RiskMedium
	case stopPct <= e.cfg.HighMaxStopPct:
		return state.RiskHigh
	default:
		return state.RiskExtreme
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
