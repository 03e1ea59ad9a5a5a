package state

import (
	"context"
	"errors"
)

// ErrPlanNotFound is returned when a trade plan id does not exist.
var ErrPlanNotFound = errors.New("trade plan not found")

// ErrInvalidTransition is returned when a trade plan lifecycle transition
// is attempted from a status other than ANALYZED.
var ErrInvalidTransition = errors.New("invalid trade plan transition")

// Store is the persistence contract the reconciliation core requires.
// State and consensus writes are replace-on-write per key; history is
// appended by the implementation. Getters return (nil, nil) when no row
// exists. Storage errors propagate to the caller unretried.
type Store interface {
	SaveState(ctx context.Context, st *TimeframeState) error
	GetLatestState(ctx context.Context, symbol, timeframe string) (*TimeframeState, error)
	StateHistory(ctx context.Context, symbol, timeframe string, limit int) ([]*TimeframeState, error)

	SaveConsensus(ctx context.Context, cr *ConsensusResult) error
	GetLatestConsensus(ctx context.Context, symbol string) (*ConsensusResult, error)

	CreateTradePlan(ctx context.Context, plan *TradePlan) (string, error)
	GetTradePlan(ctx context.Context, id string) (*TradePlan, error)
	UpdateRiskResult(ctx context.Context, id string, risk *RiskAnalysis) error
	CloseTradePlan(ctx context.Context, id string, feedback string) error
	ExpireTradePlan(ctx context.Context, id string) error
}
