package llm

import (
	"fmt"
	"strings"

	"priceaction-bot/internal/binance"
)

// AnalystSystemPrompt instructs the model to emit one multiplexed JSON
// payload covering all timeframes between the documented delimiters.
const AnalystSystemPrompt = `You are a disciplined price-action analyst. You read raw candlestick data and produce a structured market read per timeframe.

Rules:
- Analyze each provided timeframe independently, then describe how they relate.
- Never invent price levels that are not supported by the data.
- After your written analysis, output exactly one JSON object between the markers ---JSON_DATA_START--- and ---JSON_DATA_END---.
- The JSON object must contain one key per timeframe ("15m", "1h", "1d") and may contain a shared "multi_timeframe_analysis" object.

Each timeframe object must follow this schema:
{
  "marketCycle": "BULL_TREND | BEAR_TREND | TRADING_RANGE | TRANSITION",
  "marketStructure": "BOS | CHOCH | LIQUIDITY_SWEEP | RANGE",
  "signalConfidence": 0-100,
  "activeNarrative": {
    "pattern_name": "...",
    "pattern_quality": 1-5,
    "status": "FORMING | TRIGGERED | FAILED | COMPLETED",
    "probability": "High | Medium | Low",
    "probability_value": 0.0-1.0,
    "risk_reward": 0.0,
    "key_levels": {
      "entry_trigger": 0.0,
      "invalidation_level": 0.0,
      "profit_target_1": 0.0,
      "profit_target_2": 0.0
    },
    "comment": "...",
    "volume_comment": "..."
  },
  "alternativeNarrative": {"pattern_name": "...", "trigger_condition": "..."},
  "actionPlan": {
    "state": "WAIT | CONDITIONAL | ENTER_NOW | MANAGE_EXIT",
    "direction": "LONG | SHORT | NEUTRAL",
    "orderType": "STOP_MARKET | LIMIT | MARKET",
    "entryPrice": 0.0,
    "stopLoss": 0.0,
    "targetPrice": 0.0,
    "winRateEst": 0.0-1.0,
    "suggestedPosition": "NORMAL | HALF | AGGRESSIVE",
    "reason": "..."
  }
}`

// BuildAnalysisPrompt renders the market context for one symbol: the
// current price plus recent klines for every timeframe, oldest first.
func BuildAnalysisPrompt(symbol string, currentPrice float64, klinesByTimeframe map[string][]binance.Kline, timeframes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", symbol)
	if currentPrice > 0 {
		fmt.Fprintf(&b, "Current price: %s\n", formatPrice(currentPrice))
	}
	b.WriteString("\n")

	for _, tf := range timeframes {
		klines := klinesByTimeframe[tf]
		fmt.Fprintf(&b, "=== %s candles (%d, oldest first) ===\n", tf, len(klines))
		b.WriteString("openTime,open,high,low,close,volume\n")
		for _, k := range klines {
			fmt.Fprintf(&b, "%d,%s,%s,%s,%s,%s\n",
				k.OpenTime,
				formatPrice(k.Open), formatPrice(k.High), formatPrice(k.Low), formatPrice(k.Close),
				formatPrice(k.Volume))
		}
		b.WriteString("\n")
	}

	b.WriteString("Analyze all timeframes and emit the JSON payload as instructed.\n")
	return b.String()
}

func formatPrice(v float64) string {
	s := fmt.Sprintf("%.8f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
