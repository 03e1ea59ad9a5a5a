package parser

import "strings"

// keywordRule maps a set of trigger keywords to a field value. Rules in
// a table are evaluated in order and the first match wins, so more
// specific signals must come before weaker ones.
type keywordRule struct {
	Value    string
	Keywords []string
}

func firstMatch(text string, rules []keywordRule, fallback string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Value
			}
		}
	}
	return fallback
}

var cycleRules = []keywordRule{
	{Value: "BULL_TREND", Keywords: []string{"bull trend", "bullish trend", "uptrend", "bull market"}},
	{Value: "BEAR_TREND", Keywords: []string{"bear trend", "bearish trend", "downtrend", "bear market"}},
	{Value: "TRANSITION", Keywords: []string{"transition", "regime change", "trend change"}},
	{Value: "TRADING_RANGE", Keywords: []string{"trading range", "range-bound", "ranging", "sideways", "consolidat"}},
}

var structureRules = []keywordRule{
	{Value: "LIQUIDITY_SWEEP", Keywords: []string{"liquidity sweep", "sweep", "stop hunt", "stop-hunt"}},
	{Value: "CHOCH", Keywords: []string{"choch", "change of character"}},
	{Value: "BOS", Keywords: []string{"bos", "break of structure", "structure break"}},
}

// TRIGGERED before FORMING: a triggered narrative usually still mentions
// how it formed.
var statusRules = []keywordRule{
	{Value: "TRIGGERED", Keywords: []string{"triggered", "breakout confirmed", "entry hit", "activated"}},
	{Value: "FAILED", Keywords: []string{"failed", "invalidated", "broke down", "pattern failure"}},
	{Value: "COMPLETED", Keywords: []string{"completed", "target reached", "played out"}},
	{Value: "FORMING", Keywords: []string{"forming", "developing", "building", "setting up"}},
}

var directionRules = []keywordRule{
	{Value: "LONG", Keywords: []string{"long", "buy", "bullish bias", "upside"}},
	{Value: "SHORT", Keywords: []string{"short", "sell", "bearish bias", "downside"}},
	{Value: "NEUTRAL", Keywords: []string{"neutral", "no trade", "stay flat", "wait and see"}},
}

var planStateRules = []keywordRule{
	{Value: "ENTER_NOW", Keywords: []string{"enter now", "immediate entry", "enter at market", "take the trade"}},
	{Value: "CONDITIONAL", Keywords: []string{"conditional", "if price", "on a break", "on confirmation", "wait for confirmation"}},
	{Value: "WAIT", Keywords: []string{"wait", "patience", "no entry", "stand aside"}},
}

var probabilityRules = []keywordRule{
	{Value: "High", Keywords: []string{"high probability", "high confidence", "strong setup", "very likely"}},
	{Value: "Low", Keywords: []string{"low probability", "low confidence", "weak setup", "unlikely"}},
	{Value: "Medium", Keywords: []string{"medium probability", "moderate", "decent setup"}},
}
