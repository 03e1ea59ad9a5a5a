package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"priceaction-bot/internal/ai/llm"
	"priceaction-bot/internal/binance"
)

// DefaultKlineLimit is how many candles per timeframe the analyst sees.
const DefaultKlineLimit = 50

// MarketData supplies klines and last prices for prompt building and
// volatility.
type MarketData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// LLMAnalyst composes market data into a prompt and returns the raw LLM
// completion. It implements Analyst.
type LLMAnalyst struct {
	client     *llm.Client
	market     MarketData
	timeframes []string
	klineLimit int
	logger     zerolog.Logger
}

// NewLLMAnalyst creates an LLMAnalyst.
func NewLLMAnalyst(client *llm.Client, market MarketData, timeframes []string, klineLimit int, logger zerolog.Logger) *LLMAnalyst {
	if len(timeframes) == 0 {
		timeframes = DefaultTimeframes
	}
	if klineLimit <= 0 {
		klineLimit = DefaultKlineLimit
	}
	return &LLMAnalyst{
		client:     client,
		market:     market,
		timeframes: timeframes,
		klineLimit: klineLimit,
		logger:     logger,
	}
}

// Analyze fetches klines for every timeframe, builds the prompt, and
// returns the completion text. A missing price is tolerated; missing
// klines for every timeframe are not.
func (a *LLMAnalyst) Analyze(ctx context.Context, symbol string) (string, error) {
	klinesByTF := make(map[string][]binance.Kline, len(a.timeframes))
	fetched := 0
	for _, tf := range a.timeframes {
		klines, err := a.market.GetKlines(ctx, symbol, tf, a.klineLimit)
		if err != nil {
			a.logger.Warn().Err(err).Str("symbol", symbol).Str("timeframe", tf).Msg("kline fetch failed")
			continue
		}
		klinesByTF[tf] = klines
		fetched++
	}
	if fetched == 0 {
		return "", fmt.Errorf("no kline data available for %s", symbol)
	}

	price, err := a.market.GetPrice(ctx, symbol)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("price fetch failed")
		price = 0
	}

	prompt := llm.BuildAnalysisPrompt(symbol, price, klinesByTF, a.timeframes)
	return a.client.CompleteWithRetry(ctx, llm.AnalystSystemPrompt, prompt)
}
