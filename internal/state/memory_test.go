package state

import (
	"context"
	"errors"
	"testing"
)

// TestMemoryStoreStateRoundTrip tests replace-on-write and re-read
func TestMemoryStoreStateRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	st := &TimeframeState{
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		MarketCycle: CycleBullTrend,
	}
	if err := store.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	got, err := store.GetLatestState(ctx, "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("GetLatestState() error = %v", err)
	}
	if got == nil || got.MarketCycle != CycleBullTrend {
		t.Errorf("got %+v, want saved state back", got)
	}

	// Replace wholesale.
	st2 := &TimeframeState{Symbol: "BTCUSDT", Timeframe: "1h", MarketCycle: CycleBearTrend}
	if err := store.SaveState(ctx, st2); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	got, _ = store.GetLatestState(ctx, "BTCUSDT", "1h")
	if got.MarketCycle != CycleBearTrend {
		t.Errorf("MarketCycle = %q, want BEAR_TREND after replace", got.MarketCycle)
	}
}

// TestMemoryStoreMissingState tests the (nil, nil) contract
func TestMemoryStoreMissingState(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.GetLatestState(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("GetLatestState() error = %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing state", got)
	}
}

// TestTradePlanLifecycle tests the ANALYZED -> CLOSED/EXPIRED transitions
func TestTradePlanLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.CreateTradePlan(ctx, &TradePlan{
		Symbol:     "BTCUSDT",
		Direction:  DirectionLong,
		EntryPrice: 42000,
		StopLoss:   41000,
		Target1:    45000,
	})
	if err != nil {
		t.Fatalf("CreateTradePlan() error = %v", err)
	}

	plan, err := store.GetTradePlan(ctx, id)
	if err != nil {
		t.Fatalf("GetTradePlan() error = %v", err)
	}
	if plan.Status != PlanAnalyzed {
		t.Errorf("Status = %q, want ANALYZED", plan.Status)
	}

	if err := store.CloseTradePlan(ctx, id, "hit target"); err != nil {
		t.Fatalf("CloseTradePlan() error = %v", err)
	}
	plan, _ = store.GetTradePlan(ctx, id)
	if plan.Status != PlanClosed || plan.Feedback != "hit target" {
		t.Errorf("plan = %+v, want CLOSED with feedback", plan)
	}

	// No transitions out of CLOSED.
	if err := store.ExpireTradePlan(ctx, id); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ExpireTradePlan() error = %v, want ErrInvalidTransition", err)
	}
}

// TestTradePlanNotFound tests the missing-plan error
func TestTradePlanNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetTradePlan(context.Background(), "nope"); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("error = %v, want ErrPlanNotFound", err)
	}
	if err := store.CloseTradePlan(context.Background(), "nope", ""); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("error = %v, want ErrPlanNotFound", err)
	}
}
