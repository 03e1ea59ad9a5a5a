package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"priceaction-bot/internal/state"
)

// Repository implements state.Store on PostgreSQL. Latest-state and
// consensus writes are replace-on-write; history rows are appended in
// the same call. An optional StateCache fronts the latest-state reads.
type Repository struct {
	db     *DB
	cache  *StateCache
	logger zerolog.Logger
}

// NewRepository creates a Repository. cache may be nil.
func NewRepository(db *DB, cache *StateCache, logger zerolog.Logger) *Repository {
	return &Repository{db: db, cache: cache, logger: logger}
}

// SaveState replaces the latest state and appends a history row.
func (r *Repository) SaveState(ctx context.Context, st *state.TimeframeState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO timeframe_states (symbol, timeframe, state, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (symbol, timeframe)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		st.Symbol, st.Timeframe, payload)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO timeframe_state_history (symbol, timeframe, state) VALUES ($1, $2, $3)`,
		st.Symbol, st.Timeframe, payload); err != nil {
		return fmt.Errorf("append state history: %w", err)
	}

	if r.cache != nil {
		r.cache.PutState(ctx, st)
	}
	return nil
}

// GetLatestState returns the latest state or (nil, nil) when absent.
func (r *Repository) GetLatestState(ctx context.Context, symbol, timeframe string) (*state.TimeframeState, error) {
	if r.cache != nil {
		if st, ok := r.cache.GetState(ctx, symbol, timeframe); ok {
			return st, nil
		}
	}

	var payload []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT state FROM timeframe_states WHERE symbol = $1 AND timeframe = $2`,
		symbol, timeframe).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest state: %w", err)
	}

	var st state.TimeframeState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	if r.cache != nil {
		r.cache.PutState(ctx, &st)
	}
	return &st, nil
}

// SaveConsensus replaces the latest consensus and appends a history row.
func (r *Repository) SaveConsensus(ctx context.Context, cr *state.ConsensusResult) error {
	payload, err := json.Marshal(cr)
	if err != nil {
		return fmt.Errorf("marshal consensus: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO consensus_results (symbol, result, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (symbol)
		 DO UPDATE SET result = EXCLUDED.result, updated_at = NOW()`,
		cr.Symbol, payload)
	if err != nil {
		return fmt.Errorf("save consensus: %w", err)
	}

	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO consensus_history (symbol, result) VALUES ($1, $2)`,
		cr.Symbol, payload); err != nil {
		return fmt.Errorf("append consensus history: %w", err)
	}
	return nil
}

// GetLatestConsensus returns the latest consensus or (nil, nil).
func (r *Repository) GetLatestConsensus(ctx context.Context, symbol string) (*state.ConsensusResult, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT result FROM consensus_results WHERE symbol = $1`, symbol).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest consensus: %w", err)
	}

	var cr state.ConsensusResult
	if err := json.Unmarshal(payload, &cr); err != nil {
		return nil, fmt.Errorf("unmarshal consensus: %w", err)
	}
	return &cr, nil
}

// CreateTradePlan inserts a new ANALYZED plan and returns its id.
func (r *Repository) CreateTradePlan(ctx context.Context, plan *state.TradePlan) (string, error) {
	id := plan.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO trade_plans
			(id, symbol, direction, entry_price, stop_loss, target_1, target_2,
			 win_probability, position_size_actual, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, plan.Symbol, plan.Direction, plan.EntryPrice, plan.StopLoss,
		plan.Target1, plan.Target2, plan.WinProbability, plan.PositionSizeActual,
		state.PlanAnalyzed)
	if err != nil {
		return "", fmt.Errorf("create trade plan: %w", err)
	}
	return id, nil
}

// GetTradePlan returns the plan or state.ErrPlanNotFound.
func (r *Repository) GetTradePlan(ctx context.Context, id string) (*state.TradePlan, error) {
	var (
		plan    state.TradePlan
		riskRaw []byte
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, symbol, direction, entry_price, stop_loss, target_1, target_2,
			win_probability, position_size_actual, status, risk,
			COALESCE(feedback, ''), created_at, updated_at
		 FROM trade_plans WHERE id = $1`, id).Scan(
		&plan.ID, &plan.Symbol, &plan.Direction, &plan.EntryPrice, &plan.StopLoss,
		&plan.Target1, &plan.Target2, &plan.WinProbability, &plan.PositionSizeActual,
		&plan.Status, &riskRaw, &plan.Feedback, &plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, state.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade plan: %w", err)
	}

	if len(riskRaw) > 0 {
		var risk state.RiskAnalysis
		if err := json.Unmarshal(riskRaw, &risk); err != nil {
			return nil, fmt.Errorf("unmarshal risk: %w", err)
		}
		plan.Risk = &risk
	}
	return &plan, nil
}

// UpdateRiskResult attaches a risk analysis to an existing plan.
func (r *Repository) UpdateRiskResult(ctx context.Context, id string, risk *state.RiskAnalysis) error {
	payload, err := json.Marshal(risk)
	if err != nil {
		return fmt.Errorf("marshal risk: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE trade_plans SET risk = $1, updated_at = NOW() WHERE id = $2`,
		payload, id)
	if err != nil {
		return fmt.Errorf("update risk result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return state.ErrPlanNotFound
	}
	return nil
}

// CloseTradePlan transitions ANALYZED -> CLOSED with outcome feedback.
func (r *Repository) CloseTradePlan(ctx context.Context, id string, feedback string) error {
	return r.transition(ctx, id, state.PlanClosed, feedback)
}

// ExpireTradePlan transitions ANALYZED -> EXPIRED.
func (r *Repository) ExpireTradePlan(ctx context.Context, id string) error {
	return r.transition(ctx, id, state.PlanExpired, "")
}

func (r *Repository) transition(ctx context.Context, id string, to state.PlanStatus, feedback string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE trade_plans
		 SET status = $1, feedback = NULLIF($2, ''), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		to, feedback, id, state.PlanAnalyzed)
	if err != nil {
		return fmt.Errorf("transition trade plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the plan does not exist or it already left ANALYZED.
		var status string
		err := r.db.Pool.QueryRow(ctx,
			`SELECT status FROM trade_plans WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return state.ErrPlanNotFound
		}
		if err != nil {
			return fmt.Errorf("transition trade plan: %w", err)
		}
		return state.ErrInvalidTransition
	}
	return nil
}

// StateHistory returns up to limit historical states, newest first.
func (r *Repository) StateHistory(ctx context.Context, symbol, timeframe string, limit int) ([]*state.TimeframeState, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT state FROM timeframe_state_history
		 WHERE symbol = $1 AND timeframe = $2
		 ORDER BY created_at DESC LIMIT $3`,
		symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("state history: %w", err)
	}
	defer rows.Close()

	var out []*state.TimeframeState
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var st state.TimeframeState
		if err := json.Unmarshal(payload, &st); err != nil {
			return nil, fmt.Errorf("unmarshal history row: %w", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// ExpireStalePlans expires ANALYZED plans older than maxAge and returns
// how many were touched.
func (r *Repository) ExpireStalePlans(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE trade_plans SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND created_at < NOW() - $3::interval`,
		state.PlanExpired, state.PlanAnalyzed, fmt.Sprintf("%f seconds", maxAge.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("expire stale plans: %w", err)
	}
	return tag.RowsAffected(), nil
}
