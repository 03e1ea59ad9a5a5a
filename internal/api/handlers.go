package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"priceaction-bot/internal/analysis"
	"priceaction-bot/internal/auth"
	"priceaction-bot/internal/risk"
	"priceaction-bot/internal/state"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "token_type": "Bearer"})
}

// handleGetStates returns the latest state for every configured
// timeframe of a symbol.
func (s *Server) handleGetStates(c *gin.Context) {
	symbol := c.Param("symbol")

	states := make(map[string]*state.TimeframeState)
	for _, tf := range s.reconciler.Timeframes() {
		st, err := s.store.GetLatestState(c.Request.Context(), symbol, tf)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if st != nil {
			states[tf] = st
		}
	}
	if len(states) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state for symbol"})
		return
	}
	c.JSON(http.StatusOK, states)
}

func (s *Server) handleGetState(c *gin.Context) {
	st, err := s.store.GetLatestState(c.Request.Context(), c.Param("symbol"), c.Param("timeframe"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state for symbol/timeframe"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleGetStateHistory returns historical states, newest first.
func (s *Server) handleGetStateHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	hist, err := s.store.StateHistory(c.Request.Context(), c.Param("symbol"), c.Param("timeframe"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (s *Server) handleGetConsensus(c *gin.Context) {
	cr, err := s.store.GetLatestConsensus(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cr == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no consensus for symbol"})
		return
	}
	c.JSON(http.StatusOK, cr)
}

// handleReconcile runs a full reconciliation on demand.
func (s *Server) handleReconcile(c *gin.Context) {
	symbol := c.Param("symbol")

	cr, err := s.reconciler.ReconcileSymbol(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cr)
}

type riskRequest struct {
	Symbol         string   `json:"symbol" binding:"required"`
	Direction      string   `json:"direction" binding:"required"`
	EntryPrice     float64  `json:"entry_price" binding:"required"`
	StopLoss       float64  `json:"stop_loss" binding:"required"`
	Target1        float64  `json:"target_1" binding:"required"`
	Target2        *float64 `json:"target_2"`
	WinProbability float64  `json:"win_probability"`
}

// riskInput derives the engine input, attaching ATR volatility when
// market data is available.
func (s *Server) riskInput(c *gin.Context, req riskRequest) risk.Input {
	in := risk.Input{
		Entry:          req.EntryPrice,
		Stop:           req.StopLoss,
		Target1:        req.Target1,
		Target2:        req.Target2,
		Direction:      state.Direction(req.Direction),
		WinProbability: req.WinProbability,
	}
	if s.market != nil {
		klines, err := s.market.GetKlines(c.Request.Context(), req.Symbol, "1h", 50)
		if err == nil {
			if atr := analysis.ATR(klines, analysis.DefaultATRPeriod); atr > 0 {
				in.ATR = atr
				in.HasVolatility = true
			}
		} else {
			s.logger.Warn().Err(err).Str("symbol", req.Symbol).Msg("volatility fetch failed")
		}
	}
	return in
}

// handleRiskCalculate analyzes a plan without persisting anything.
func (s *Server) handleRiskCalculate(c *gin.Context) {
	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysisResult, err := s.riskEngine.Analyze(s.riskInput(c, req))
	if err != nil {
		var planErr *risk.InvalidTradePlanError
		if errors.As(err, &planErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": planErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysisResult)
}

// handleCreatePlan persists a plan, analyzes it, and attaches the result.
func (s *Server) handleCreatePlan(c *gin.Context) {
	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysisResult, err := s.riskEngine.Analyze(s.riskInput(c, req))
	if err != nil {
		var planErr *risk.InvalidTradePlanError
		if errors.As(err, &planErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": planErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	plan := &state.TradePlan{
		Symbol:         req.Symbol,
		Direction:      state.Direction(req.Direction),
		EntryPrice:     req.EntryPrice,
		StopLoss:       req.StopLoss,
		Target1:        req.Target1,
		Target2:        req.Target2,
		WinProbability: req.WinProbability,
	}
	id, err := s.store.CreateTradePlan(c.Request.Context(), plan)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.UpdateRiskResult(c.Request.Context(), id, analysisResult); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.eventBus != nil {
		s.eventBus.PublishRiskAnalyzed(id, req.Symbol, string(analysisResult.RiskLevel), analysisResult.PositionSizeSuggested)
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "risk": analysisResult})
}

func (s *Server) handleGetPlan(c *gin.Context) {
	plan, err := s.store.GetTradePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, state.ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) handleClosePlan(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.transitionPlan(c, func() error {
		return s.store.CloseTradePlan(c.Request.Context(), c.Param("id"), req.Feedback)
	}); err != nil {
		return
	}
	if s.eventBus != nil {
		s.eventBus.PublishPlanClosed(c.Param("id"), string(state.PlanClosed), req.Feedback)
	}
	c.JSON(http.StatusOK, gin.H{"status": state.PlanClosed})
}

func (s *Server) handleExpirePlan(c *gin.Context) {
	if err := s.transitionPlan(c, func() error {
		return s.store.ExpireTradePlan(c.Request.Context(), c.Param("id"))
	}); err != nil {
		return
	}
	if s.eventBus != nil {
		s.eventBus.PublishPlanClosed(c.Param("id"), string(state.PlanExpired), "")
	}
	c.JSON(http.StatusOK, gin.H{"status": state.PlanExpired})
}

// transitionPlan maps transition errors onto HTTP statuses; it writes
// the response itself on failure.
func (s *Server) transitionPlan(c *gin.Context, fn func() error) error {
	err := fn()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
	case errors.Is(err, state.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "plan already closed or expired"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return err
}
