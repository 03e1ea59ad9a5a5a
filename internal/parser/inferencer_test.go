package parser

import (
	"math"
	"testing"

	"priceaction-bot/internal/state"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// TestCompleteDefaults tests that required fields are never left empty
func TestCompleteDefaults(t *testing.T) {
	got := Complete("", state.TimeframeState{})
	if got.MarketCycle != state.CycleTradingRange {
		t.Errorf("MarketCycle = %q, want %q", got.MarketCycle, state.CycleTradingRange)
	}
	if got.ActiveNarrative.Status != state.NarrativeForming {
		t.Errorf("Status = %q, want %q", got.ActiveNarrative.Status, state.NarrativeForming)
	}
	if got.ActionPlan.State != state.PlanWait {
		t.Errorf("ActionPlan.State = %q, want %q", got.ActionPlan.State, state.PlanWait)
	}
	if got.MarketStructure != state.StructureRange {
		t.Errorf("MarketStructure = %q, want %q", got.MarketStructure, state.StructureRange)
	}
}

// TestCompleteStatusPrecedence tests that trigger vocabulary beats forming vocabulary
func TestCompleteStatusPrecedence(t *testing.T) {
	prose := "The flag that had been forming for days saw its breakout confirmed this morning."
	got := Complete(prose, state.TimeframeState{})
	if got.ActiveNarrative.Status != state.NarrativeTriggered {
		t.Errorf("Status = %q, want %q", got.ActiveNarrative.Status, state.NarrativeTriggered)
	}
}

// TestCompleteNeverOverwrites tests that populated fields survive inference
func TestCompleteNeverOverwrites(t *testing.T) {
	st := state.TimeframeState{MarketCycle: state.CycleBullTrend}
	st.ActionPlan.Direction = state.DirectionLong

	got := Complete("deep bear market, sell everything, downtrend intact", st)
	if got.MarketCycle != state.CycleBullTrend {
		t.Errorf("MarketCycle = %q, want %q", got.MarketCycle, state.CycleBullTrend)
	}
	if got.ActionPlan.Direction != state.DirectionLong {
		t.Errorf("Direction = %q, want %q", got.ActionPlan.Direction, state.DirectionLong)
	}
}

// TestCompleteDirection tests directional vocabulary mapping
func TestCompleteDirection(t *testing.T) {
	cases := []struct {
		prose string
		want  state.Direction
	}{
		{"looking to go long above resistance", state.DirectionLong},
		{"short the retest of the broken level", state.DirectionShort},
		{"no clear edge, stay flat", state.DirectionNeutral},
	}
	for _, c := range cases {
		got := Complete(c.prose, state.TimeframeState{})
		if got.ActionPlan.Direction != c.want {
			t.Errorf("Complete(%q).Direction = %q, want %q", c.prose, got.ActionPlan.Direction, c.want)
		}
	}
}

// TestConfidenceBands tests the probability_value to confidence mapping
func TestConfidenceBands(t *testing.T) {
	cases := []struct {
		pv   float64
		want int
	}{
		{0.85, 80},
		{0.65, 60},
		{0.45, 40},
		{0.1, 50},
		{0, 50},
	}
	for _, c := range cases {
		st := state.TimeframeState{}
		st.ActiveNarrative.ProbabilityValue = c.pv
		got := Complete("", st)
		if got.SignalConfidence != c.want {
			t.Errorf("pv=%v: SignalConfidence = %d, want %d", c.pv, got.SignalConfidence, c.want)
		}
	}
}

// TestInferKeyLevelsTwoPrices tests the lowest/highest mapping
func TestInferKeyLevelsTwoPrices(t *testing.T) {
	got := Complete("entry near 42,000 with target 45,000", state.TimeframeState{})
	kl := got.ActiveNarrative.KeyLevels
	if !almostEqual(kl.EntryTrigger, 42000) {
		t.Errorf("EntryTrigger = %v, want 42000", kl.EntryTrigger)
	}
	if !almostEqual(kl.InvalidationLevel, 42000*0.99) {
		t.Errorf("InvalidationLevel = %v, want %v", kl.InvalidationLevel, 42000*0.99)
	}
	if !almostEqual(kl.ProfitTarget1, 45000*1.01) {
		t.Errorf("ProfitTarget1 = %v, want %v", kl.ProfitTarget1, 45000*1.01)
	}
}

// TestInferKeyLevelsSingleAnchor tests fixed percentage offsets
func TestInferKeyLevelsSingleAnchor(t *testing.T) {
	got := Complete("keep an eye on 50000", state.TimeframeState{})
	kl := got.ActiveNarrative.KeyLevels
	if !almostEqual(kl.EntryTrigger, 50000) {
		t.Errorf("EntryTrigger = %v, want 50000", kl.EntryTrigger)
	}
	if !almostEqual(kl.InvalidationLevel, 49000) {
		t.Errorf("InvalidationLevel = %v, want 49000", kl.InvalidationLevel)
	}
	if !almostEqual(kl.ProfitTarget1, 52000) {
		t.Errorf("ProfitTarget1 = %v, want 52000", kl.ProfitTarget1)
	}
}

// TestInferKeyLevelsImplausibleNumbers tests the price window filter
func TestInferKeyLevelsImplausibleNumbers(t *testing.T) {
	got := Complete("up 5 percent with RSI at 70", state.TimeframeState{})
	kl := got.ActiveNarrative.KeyLevels
	if kl.EntryTrigger != 0 || kl.InvalidationLevel != 0 || kl.ProfitTarget1 != 0 {
		t.Errorf("levels should stay unset, got %+v", kl)
	}
}
