package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"priceaction-bot/internal/state"
)

// Price-plausibility window for numeric tokens found in prose. Values
// outside it are percentages, counts, or typos, not price levels.
const (
	minPlausiblePrice = 100
	maxPlausiblePrice = 10_000_000
)

// Percentage offsets used when only a single anchor price is found.
const (
	singleAnchorStopPct   = 0.02
	singleAnchorTargetPct = 0.04
)

var priceTokenRe = regexp.MustCompile(`\d[\d,]*\.?\d*`)

// Complete fills the fields of st that structured extraction left empty,
// using lexical heuristics over the prose. It never overwrites a
// populated field and never fails; every rule falls through to a
// documented default. Inferred values are best-effort and should be
// treated as lower-confidence than extracted ones.
func Complete(prose string, st state.TimeframeState) state.TimeframeState {
	if st.MarketCycle == "" {
		st.MarketCycle = state.MarketCycle(firstMatch(prose, cycleRules, string(state.CycleTradingRange)))
	}
	if st.MarketStructure == "" {
		st.MarketStructure = state.MarketStructure(firstMatch(prose, structureRules, string(state.StructureRange)))
	}
	if st.ActiveNarrative.Status == "" {
		st.ActiveNarrative.Status = state.NarrativeStatus(firstMatch(prose, statusRules, string(state.NarrativeForming)))
	}
	if st.ActiveNarrative.Probability == "" {
		st.ActiveNarrative.Probability = state.Probability(firstMatch(prose, probabilityRules, string(state.ProbabilityMedium)))
	}
	if st.ActionPlan.Direction == "" {
		st.ActionPlan.Direction = state.Direction(firstMatch(prose, directionRules, string(state.DirectionNeutral)))
	}
	if st.ActionPlan.State == "" {
		st.ActionPlan.State = state.PlanState(firstMatch(prose, planStateRules, string(state.PlanWait)))
	}
	if st.SignalConfidence == 0 {
		st.SignalConfidence = confidenceBand(st.ActiveNarrative.ProbabilityValue)
	}
	if emptyKeyLevels(st.ActiveNarrative.KeyLevels) {
		st.ActiveNarrative.KeyLevels = inferKeyLevels(prose)
	}
	return st
}

// confidenceBand maps probability_value to a coarse 0-100 confidence.
func confidenceBand(pv float64) int {
	switch {
	case pv >= 0.8:
		return 80
	case pv >= 0.6:
		return 60
	case pv >= 0.4:
		return 40
	default:
		return 50
	}
}

func emptyKeyLevels(kl state.KeyLevels) bool {
	return kl.EntryTrigger == 0 && kl.InvalidationLevel == 0 &&
		kl.ProfitTarget1 == 0 && kl.ProfitTarget2 == 0
}

// inferKeyLevels extracts price-plausible numbers from prose and maps
// them onto key levels. Two or more distinct prices: lowest is the
// entry, with invalidation just below it and the target just above the
// highest. Exactly one price: fixed percentage offsets around the
// anchor. None: levels stay unset.
func inferKeyLevels(prose string) state.KeyLevels {
	prices := extractPrices(prose)
	switch len(prices) {
	case 0:
		return state.KeyLevels{}
	case 1:
		anchor := prices[0]
		return state.KeyLevels{
			EntryTrigger:      anchor,
			InvalidationLevel: anchor * (1 - singleAnchorStopPct),
			ProfitTarget1:     anchor * (1 + singleAnchorTargetPct),
		}
	default:
		lowest := prices[0]
		highest := prices[len(prices)-1]
		return state.KeyLevels{
			EntryTrigger:      lowest,
			InvalidationLevel: lowest * 0.99,
			ProfitTarget1:     highest * 1.01,
		}
	}
}

// extractPrices returns the deduplicated, ascending list of numeric
// tokens within the plausible price window. Thousands separators are
// stripped before parsing.
func extractPrices(prose string) []float64 {
	tokens := priceTokenRe.FindAllString(prose, -1)
	seen := make(map[float64]bool, len(tokens))
	var prices []float64
	for _, tok := range tokens {
		tok = strings.ReplaceAll(tok, ",", "")
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		if v < minPlausiblePrice || v > maxPlausiblePrice {
			continue
		}
		if !seen[v] {
			seen[v] = true
			prices = append(prices, v)
		}
	}
	sort.Float64s(prices)
	return prices
}
