package risk

import (
	"errors"
	"math"
	"testing"

	"priceaction-bot/internal/state"
)

// TestRiskRewardExact tests the canonical 2R plan
func TestRiskRewardExact(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 95, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.RiskRewardExpected != 2.0 {
		t.Errorf("RiskRewardExpected = %v, want 2.0 exactly", got.RiskRewardExpected)
	}
}

// TestKellyFraction tests f* for p=0.6, b=2.0
func TestKellyFraction(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 95, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if math.Abs(got.KellyFraction-0.4) > 1e-12 {
		t.Errorf("KellyFraction = %v, want 0.4", got.KellyFraction)
	}
	if math.Abs(got.KellyFractionAdjusted-0.32) > 1e-12 {
		t.Errorf("KellyFractionAdjusted = %v, want 0.32", got.KellyFractionAdjusted)
	}
	if math.Abs(got.PositionSizeSuggested-32) > 1e-9 {
		t.Errorf("PositionSizeSuggested = %v, want 32", got.PositionSizeSuggested)
	}
}

// TestStopWrongSideLong tests the LONG precondition
func TestStopWrongSideLong(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	_, err := engine.Analyze(Input{
		Entry: 100, Stop: 105, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
	})
	var planErr *InvalidTradePlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("error = %v, want *InvalidTradePlanError", err)
	}
}

// TestEntryEqualsStop tests the degenerate plan precondition
func TestEntryEqualsStop(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	_, err := engine.Analyze(Input{
		Entry: 100, Stop: 100, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
	})
	var planErr *InvalidTradePlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("error = %v, want *InvalidTradePlanError", err)
	}
}

// TestShortPlan tests direction-aware handling for SHORT
func TestShortPlan(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 104, Target1: 92,
		Direction: state.DirectionShort, WinProbability: 0.5,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.RiskRewardExpected != 2.0 {
		t.Errorf("RiskRewardExpected = %v, want 2.0", got.RiskRewardExpected)
	}
}

// TestNegativeKellyClamped tests that negative expectancy never suggests a position
func TestNegativeKellyClamped(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 98, Target1: 101,
		Direction: state.DirectionLong, WinProbability: 0.3,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.KellyFraction >= 0 {
		t.Fatalf("KellyFraction = %v, want negative", got.KellyFraction)
	}
	if got.KellyFractionAdjusted != 0 {
		t.Errorf("KellyFractionAdjusted = %v, want 0", got.KellyFractionAdjusted)
	}
	if got.PositionSizeSuggested != 0 {
		t.Errorf("PositionSizeSuggested = %v, want 0", got.PositionSizeSuggested)
	}
	if got.RiskLevel != state.RiskHigh && got.RiskLevel != state.RiskExtreme {
		t.Errorf("RiskLevel = %q, want HIGH or EXTREME", got.RiskLevel)
	}
}

// TestRMultipleSchedule tests the fixed staged exit policy
func TestRMultipleSchedule(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 95, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(got.RMultiplePlan) != 3 {
		t.Fatalf("len(RMultiplePlan) = %d, want 3", len(got.RMultiplePlan))
	}
	wantLevels := []float64{1, 2, 3}
	wantClose := []float64{30, 30, 40}
	for i, stage := range got.RMultiplePlan {
		if stage.Level != wantLevels[i] {
			t.Errorf("stage %d Level = %v, want %v", i, stage.Level, wantLevels[i])
		}
		if stage.ClosePercent != wantClose[i] {
			t.Errorf("stage %d ClosePercent = %v, want %v", i, stage.ClosePercent, wantClose[i])
		}
	}
}

// TestMissingVolatility tests graceful degradation without ATR
func TestMissingVolatility(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 95, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
		HasVolatility: false,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.VolatilityOK {
		t.Error("VolatilityOK should be false without kline data")
	}
	if got.SharpeRatioEstimate != 0 {
		t.Errorf("SharpeRatioEstimate = %v, want 0", got.SharpeRatioEstimate)
	}
}

// TestExpectedValue tests EV against the documented risk unit
func TestExpectedValue(t *testing.T) {
	cfg := DefaultConfig()
	engine := NewEngine(cfg)
	got, err := engine.Analyze(Input{
		Entry: 100, Stop: 95, Target1: 110,
		Direction: state.DirectionLong, WinProbability: 0.6,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	riskAmount := cfg.AccountBalance * cfg.RiskPerTrade
	want := 0.6*2.0*riskAmount - 0.4*riskAmount
	if math.Abs(got.ExpectedValue-want) > 1e-9 {
		t.Errorf("ExpectedValue = %v, want %v", got.ExpectedValue, want)
	}
	if got.MaxLoss != riskAmount {
		t.Errorf("MaxLoss = %v, want %v", got.MaxLoss, riskAmount)
	}
}
