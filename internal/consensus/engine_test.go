package consensus

import (
	"math"
	"testing"

	"priceaction-bot/internal/state"
)

func tfState(timeframe string, cycle state.MarketCycle, dir state.Direction) *state.TimeframeState {
	st := &state.TimeframeState{
		Symbol:      "BTCUSDT",
		Timeframe:   timeframe,
		MarketCycle: cycle,
	}
	st.ActionPlan.Direction = dir
	return st
}

// TestEvaluateAllBullish tests full alignment
func TestEvaluateAllBullish(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	states := []*state.TimeframeState{
		tfState("15m", state.CycleBullTrend, state.DirectionLong),
		tfState("1h", state.CycleBullTrend, state.DirectionLong),
		tfState("1d", state.CycleBullTrend, state.DirectionLong),
	}

	got := engine.Evaluate("BTCUSDT", states)
	if got.Direction != state.ConsensusBullish {
		t.Errorf("Direction = %q, want BULLISH", got.Direction)
	}
	if math.Abs(got.Confidence-1.0) > 1e-9 {
		t.Errorf("Confidence = %v, want 1.0", got.Confidence)
	}
	if len(got.Aligned) != 3 || len(got.Conflicting) != 0 {
		t.Errorf("Aligned/Conflicting = %v/%v, want 3/0", got.Aligned, got.Conflicting)
	}
}

// TestEvaluateTie tests that equal scores yield NEUTRAL with confidence 0
func TestEvaluateTie(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	states := []*state.TimeframeState{
		tfState("4h", state.CycleBullTrend, state.DirectionLong),
		tfState("8h", state.CycleBearTrend, state.DirectionShort),
	}

	got := engine.Evaluate("BTCUSDT", states)
	if got.Direction != state.ConsensusNeutral {
		t.Errorf("Direction = %q, want NEUTRAL", got.Direction)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
	if len(got.Aligned) != 0 || len(got.Conflicting) != 2 {
		t.Errorf("Aligned/Conflicting = %v/%v, want 0/2", got.Aligned, got.Conflicting)
	}
}

// TestEvaluateDirectionOverridesCycle tests that the action plan wins
func TestEvaluateDirectionOverridesCycle(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	states := []*state.TimeframeState{
		tfState("1d", state.CycleBullTrend, state.DirectionShort),
	}

	got := engine.Evaluate("BTCUSDT", states)
	if got.Direction != state.ConsensusBearish {
		t.Errorf("Direction = %q, want BEARISH", got.Direction)
	}
}

// TestEvaluateHigherTimeframeDominance tests that 1d outweighs 15m+1h
func TestEvaluateHigherTimeframeDominance(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	states := []*state.TimeframeState{
		tfState("15m", state.CycleBullTrend, state.DirectionLong),
		tfState("1h", state.CycleBullTrend, state.DirectionLong),
		tfState("1d", state.CycleBearTrend, state.DirectionShort),
	}

	got := engine.Evaluate("BTCUSDT", states)
	if got.Direction != state.ConsensusBearish {
		t.Errorf("Direction = %q, want BEARISH (1d must dominate)", got.Direction)
	}
	want := (1.0 - 0.9) / 1.9
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", got.Confidence, want)
	}
	if len(got.Conflicting) != 2 {
		t.Errorf("Conflicting = %v, want 15m and 1h", got.Conflicting)
	}
}

// TestEvaluatePartition tests that aligned and conflicting partition the input
func TestEvaluatePartition(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	states := []*state.TimeframeState{
		tfState("15m", state.CycleTradingRange, state.DirectionNeutral),
		tfState("1h", state.CycleBullTrend, state.DirectionLong),
		tfState("1d", state.CycleBearTrend, ""),
	}

	got := engine.Evaluate("BTCUSDT", states)
	seen := make(map[string]int)
	for _, tf := range got.Aligned {
		seen[tf]++
	}
	for _, tf := range got.Conflicting {
		seen[tf]++
	}
	if len(seen) != 3 {
		t.Fatalf("partition covers %d timeframes, want 3", len(seen))
	}
	for tf, n := range seen {
		if n != 1 {
			t.Errorf("timeframe %q appears %d times", tf, n)
		}
	}
}

// TestEvaluateNeutralAligned tests that neutral leans align with a NEUTRAL verdict
func TestEvaluateNeutralAligned(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	states := []*state.TimeframeState{
		tfState("15m", state.CycleTradingRange, state.DirectionNeutral),
		tfState("1h", state.CycleTransition, ""),
	}

	got := engine.Evaluate("BTCUSDT", states)
	if got.Direction != state.ConsensusNeutral {
		t.Fatalf("Direction = %q, want NEUTRAL", got.Direction)
	}
	if len(got.Aligned) != 2 || len(got.Conflicting) != 0 {
		t.Errorf("Aligned/Conflicting = %v/%v, want 2/0", got.Aligned, got.Conflicting)
	}
}
