// Package state defines the reconciled trading state produced by the
// AI-output pipeline and the persistence contract it is stored through.
package state

import (
	"encoding/json"
	"time"
)

// MarketCycle classifies the dominant market regime on a timeframe.
type MarketCycle string

const (
	CycleBullTrend    MarketCycle = "BULL_TREND"
	CycleBearTrend    MarketCycle = "BEAR_TREND"
	CycleTradingRange MarketCycle = "TRADING_RANGE"
	CycleTransition   MarketCycle = "TRANSITION"
)

// MarketStructure classifies the most recent structural event.
type MarketStructure string

const (
	StructureBOS            MarketStructure = "BOS"
	StructureCHOCH          MarketStructure = "CHOCH"
	StructureLiquiditySweep MarketStructure = "LIQUIDITY_SWEEP"
	StructureRange          MarketStructure = "RANGE"
)

// NarrativeStatus tracks a pattern narrative through its lifecycle.
type NarrativeStatus string

const (
	NarrativeForming   NarrativeStatus = "FORMING"
	NarrativeTriggered NarrativeStatus = "TRIGGERED"
	NarrativeFailed    NarrativeStatus = "FAILED"
	NarrativeCompleted NarrativeStatus = "COMPLETED"
)

// Probability is the analyst's coarse probability label.
type Probability string

const (
	ProbabilityHigh   Probability = "High"
	ProbabilityMedium Probability = "Medium"
	ProbabilityLow    Probability = "Low"
)

// PlanState is the action plan's execution state.
type PlanState string

const (
	PlanWait        PlanState = "WAIT"
	PlanConditional PlanState = "CONDITIONAL"
	PlanEnterNow    PlanState = "ENTER_NOW"
	PlanManageExit  PlanState = "MANAGE_EXIT"
)

// Direction is the trade direction of an action plan or trade plan.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// OrderType is the suggested entry order type.
type OrderType string

const (
	OrderStopMarket OrderType = "STOP_MARKET"
	OrderLimit      OrderType = "LIMIT"
	OrderMarket     OrderType = "MARKET"
)

// PositionHint is the analyst's coarse position sizing suggestion.
type PositionHint string

const (
	PositionNormal     PositionHint = "NORMAL"
	PositionHalf       PositionHint = "HALF"
	PositionAggressive PositionHint = "AGGRESSIVE"
)

// KeyLevels holds the price levels attached to a narrative.
// Zero means the analyst (and the inferencer) provided no value.
type KeyLevels struct {
	EntryTrigger      float64 `json:"entry_trigger,omitempty"`
	InvalidationLevel float64 `json:"invalidation_level,omitempty"`
	ProfitTarget1     float64 `json:"profit_target_1,omitempty"`
	ProfitTarget2     float64 `json:"profit_target_2,omitempty"`
}

// ActiveNarrative is the primary pattern narrative for a timeframe.
type ActiveNarrative struct {
	PatternName      string          `json:"pattern_name"`
	PatternQuality   int             `json:"pattern_quality"` // 1-5
	Status           NarrativeStatus `json:"status"`
	Probability      Probability     `json:"probability"`
	ProbabilityValue float64         `json:"probability_value"` // 0.0-1.0
	RiskReward       float64         `json:"risk_reward"`
	KeyLevels        KeyLevels       `json:"key_levels"`
	Comment          string          `json:"comment"`
	VolumeComment    string          `json:"volume_comment"`
}

// AlternativeNarrative is the analyst's secondary scenario.
type AlternativeNarrative struct {
	PatternName      string `json:"pattern_name"`
	TriggerCondition string `json:"trigger_condition"`
}

// ActionPlan is the executable plan derived from the narrative.
type ActionPlan struct {
	State             PlanState    `json:"state"`
	Direction         Direction    `json:"direction"`
	OrderType         OrderType    `json:"orderType"`
	EntryPrice        float64      `json:"entryPrice"`
	StopLoss          float64      `json:"stopLoss"`
	TargetPrice       float64      `json:"targetPrice"`
	WinRateEst        float64      `json:"winRateEst"` // 0-1
	SuggestedPosition PositionHint `json:"suggestedPosition"`
	Reason            string       `json:"reason"`
}

// TimeframeState is the reconciled state for one (symbol, timeframe) pair.
// Persisted states always carry a non-empty MarketCycle, narrative Status
// and plan State; the inferencer fills defaults when the analyst text
// provides none.
type TimeframeState struct {
	Symbol               string               `json:"symbol"`
	Timeframe            string               `json:"timeframe"`
	MarketCycle          MarketCycle          `json:"marketCycle"`
	MarketStructure      MarketStructure      `json:"marketStructure"`
	SignalConfidence     int                  `json:"signalConfidence"` // 0-100
	ActiveNarrative      ActiveNarrative      `json:"activeNarrative"`
	AlternativeNarrative AlternativeNarrative `json:"alternativeNarrative"`
	ActionPlan           ActionPlan           `json:"actionPlan"`
	MultiTimeframe       json.RawMessage      `json:"multi_timeframe_analysis,omitempty"`
	AnalysisText         string               `json:"analysisText"`
	LastUpdated          time.Time            `json:"lastUpdated"`
}

// ConsensusDirection is the weighted-majority lean across timeframes.
type ConsensusDirection string

const (
	ConsensusBullish ConsensusDirection = "BULLISH"
	ConsensusBearish ConsensusDirection = "BEARISH"
	ConsensusNeutral ConsensusDirection = "NEUTRAL"
)

// ConsensusResult is the per-symbol verdict derived from all timeframe
// states. Aligned and Conflicting partition the input timeframes.
type ConsensusResult struct {
	Symbol         string             `json:"symbol"`
	Direction      ConsensusDirection `json:"direction"`
	Confidence     float64            `json:"confidence"` // 0.0-1.0
	Aligned        []string           `json:"aligned"`
	Conflicting    []string           `json:"conflicting"`
	BullishScore   float64            `json:"bullish_score"`
	BearishScore   float64            `json:"bearish_score"`
	Recommendation string             `json:"recommendation"`
	CreatedAt      time.Time          `json:"created_at"`
}

// PlanStatus is the lifecycle state of a trade plan.
// Valid transitions: ANALYZED -> CLOSED, ANALYZED -> EXPIRED.
type PlanStatus string

const (
	PlanAnalyzed PlanStatus = "ANALYZED"
	PlanClosed   PlanStatus = "CLOSED"
	PlanExpired  PlanStatus = "EXPIRED"
)

// TradePlan is a user- or system-supplied trade to be risk-analyzed.
type TradePlan struct {
	ID                 string        `json:"id"`
	Symbol             string        `json:"symbol"`
	Direction          Direction     `json:"direction"`
	EntryPrice         float64       `json:"entry_price"`
	StopLoss           float64       `json:"stop_loss"`
	Target1            float64       `json:"target_1"`
	Target2            *float64      `json:"target_2,omitempty"`
	WinProbability     float64       `json:"win_probability"` // 0-1
	PositionSizeActual float64       `json:"position_size_actual"`
	Status             PlanStatus    `json:"status"`
	Risk               *RiskAnalysis `json:"risk,omitempty"`
	Feedback           string        `json:"feedback,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// RiskLevel bands the overall riskiness of a plan.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// RMultipleStage is one stage of the staged exit schedule.
type RMultipleStage struct {
	Level        float64 `json:"level"`         // profit in R multiples
	ClosePercent float64 `json:"close_percent"` // % of position to close
	StopAction   string  `json:"stop_action"`
}

// RiskAnalysis is the risk engine's deterministic output for a trade plan.
// SharpeRatioEstimate and MaxDrawdownEstimate are internal estimates, not
// exchange-verifiable figures. When VolatilityOK is false the
// volatility-dependent fields are zero.
type RiskAnalysis struct {
	RiskRewardExpected    float64          `json:"risk_reward_expected"`
	PositionSizeSuggested float64          `json:"position_size_suggested"` // % of account
	KellyFraction         float64          `json:"kelly_fraction"`
	KellyFractionAdjusted float64          `json:"kelly_fraction_adjusted"`
	SharpeRatioEstimate   float64          `json:"sharpe_ratio_estimate"`
	MaxDrawdownEstimate   float64          `json:"max_drawdown_estimate"`
	ExpectedValue         float64          `json:"expected_value"`
	MaxLoss               float64          `json:"max_loss"`
	RMultiplePlan         []RMultipleStage `json:"r_multiple_plan"`
	RiskLevel             RiskLevel        `json:"risk_level"`
	VolatilityOK          bool             `json:"volatility_ok"`
}
