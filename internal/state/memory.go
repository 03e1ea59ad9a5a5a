package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// the database-less development mode; semantics match the PostgreSQL
// repository (replace-on-write, ANALYZED-only transitions).
type MemoryStore struct {
	mu        sync.RWMutex
	states    map[string]*TimeframeState // key: symbol|timeframe
	history   map[string][]*TimeframeState
	consensus map[string]*ConsensusResult
	plans     map[string]*TradePlan
}

// maxHistoryPerKey bounds the in-memory history ring.
const maxHistoryPerKey = 200

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:    make(map[string]*TimeframeState),
		history:   make(map[string][]*TimeframeState),
		consensus: make(map[string]*ConsensusResult),
		plans:     make(map[string]*TradePlan),
	}
}

func stateKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// SaveState replaces the state for (symbol, timeframe).
func (m *MemoryStore) SaveState(_ context.Context, st *TimeframeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	key := stateKey(st.Symbol, st.Timeframe)
	m.states[key] = &cp

	hist := append(m.history[key], &cp)
	if len(hist) > maxHistoryPerKey {
		hist = hist[len(hist)-maxHistoryPerKey:]
	}
	m.history[key] = hist
	return nil
}

// StateHistory returns up to limit historical states, newest first.
func (m *MemoryStore) StateHistory(_ context.Context, symbol, timeframe string, limit int) ([]*TimeframeState, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hist := m.history[stateKey(symbol, timeframe)]
	out := make([]*TimeframeState, 0, limit)
	for i := len(hist) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *hist[i]
		out = append(out, &cp)
	}
	return out, nil
}

// GetLatestState returns the stored state or (nil, nil).
func (m *MemoryStore) GetLatestState(_ context.Context, symbol, timeframe string) (*TimeframeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[stateKey(symbol, timeframe)]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// SaveConsensus replaces the consensus for the symbol.
func (m *MemoryStore) SaveConsensus(_ context.Context, cr *ConsensusResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cr
	m.consensus[cr.Symbol] = &cp
	return nil
}

// GetLatestConsensus returns the stored consensus or (nil, nil).
func (m *MemoryStore) GetLatestConsensus(_ context.Context, symbol string) (*ConsensusResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cr, ok := m.consensus[symbol]
	if !ok {
		return nil, nil
	}
	cp := *cr
	return &cp, nil
}

// CreateTradePlan stores a new plan with status ANALYZED and returns its id.
func (m *MemoryStore) CreateTradePlan(_ context.Context, plan *TradePlan) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Status = PlanAnalyzed
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.plans[cp.ID] = &cp
	return cp.ID, nil
}

// GetTradePlan returns the plan or ErrPlanNotFound.
func (m *MemoryStore) GetTradePlan(_ context.Context, id string) (*TradePlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *plan
	return &cp, nil
}

// UpdateRiskResult attaches a risk analysis to an existing plan.
func (m *MemoryStore) UpdateRiskResult(_ context.Context, id string, risk *RiskAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	cp := *risk
	plan.Risk = &cp
	plan.UpdatedAt = time.Now().UTC()
	return nil
}

// CloseTradePlan transitions ANALYZED -> CLOSED with outcome feedback.
func (m *MemoryStore) CloseTradePlan(_ context.Context, id string, feedback string) error {
	return m.transition(id, PlanClosed, feedback)
}

// ExpireTradePlan transitions ANALYZED -> EXPIRED.
func (m *MemoryStore) ExpireTradePlan(_ context.Context, id string) error {
	return m.transition(id, PlanExpired, "")
}

func (m *MemoryStore) transition(id string, to PlanStatus, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	if plan.Status != PlanAnalyzed {
		return ErrInvalidTransition
	}
	plan.Status = to
	if feedback != "" {
		plan.Feedback = feedback
	}
	plan.UpdatedAt = time.Now().UTC()
	return nil
}
