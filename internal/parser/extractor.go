package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Delimiters of the documented analyst protocol. The analyst is
// instructed to emit its JSON payload between these markers, but the
// extractor never assumes it did.
const (
	JSONStartDelimiter = "---JSON_DATA_START---"
	JSONEndDelimiter   = "---JSON_DATA_END---"
)

// Extraction strategy names, in attempt order.
const (
	StrategyDirect     = "direct"
	StrategyDelimiters = "delimiters"
	StrategyFencedCode = "fenced_code"
	StrategyBraceMatch = "brace_match"
)

// Result is a successful extraction: the selected JSON payload, the
// prose surrounding it, and which strategy produced it.
type Result struct {
	Payload  json.RawMessage
	Prose    string
	Strategy string
}

// ExtractionError reports that no strategy yielded valid JSON. Span
// retains the best candidate span for diagnostics.
type ExtractionError struct {
	Reason string
	Span   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// Extract locates a JSON payload in sanitized text. Strategies are
// attempted strictest-first and the first success wins:
//  1. the whole text parses as JSON
//  2. the span between the documented protocol delimiters
//  3. the contents of the first fenced code block
//  4. the first brace-delimited span found by bracket-depth counting
//
// Extract is pure and never panics; failure is always a tagged
// *ExtractionError.
func Extract(text string) (*Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ExtractionError{Reason: "empty input"}
	}

	// Strategy 1: the whole response is the payload.
	if isJSONValue(trimmed) {
		return &Result{Payload: json.RawMessage(trimmed), Prose: "", Strategy: StrategyDirect}, nil
	}

	// Strategy 2: documented delimiter protocol. Prose is everything
	// before the start delimiter.
	var lastSpan string
	if start := strings.Index(text, JSONStartDelimiter); start >= 0 {
		rest := text[start+len(JSONStartDelimiter):]
		end := strings.Index(rest, JSONEndDelimiter)
		if end < 0 {
			end = len(rest)
		}
		span := stripFenceArtifacts(rest[:end])
		lastSpan = span
		if isJSONValue(span) {
			return &Result{
				Payload:  json.RawMessage(span),
				Prose:    strings.TrimSpace(text[:start]),
				Strategy: StrategyDelimiters,
			}, nil
		}
	}

	// Strategy 3: first fenced code block, with or without a language tag.
	if m := fencedBlockRe.FindStringSubmatchIndex(text); m != nil {
		span := strings.TrimSpace(text[m[2]:m[3]])
		if lastSpan == "" {
			lastSpan = span
		}
		if isJSONValue(span) {
			return &Result{
				Payload:  json.RawMessage(span),
				Prose:    strings.TrimSpace(text[:m[0]]),
				Strategy: StrategyFencedCode,
			}, nil
		}
	}

	// Strategy 4: brace-depth matching from the first '{'.
	if span, start, ok := matchBraceSpan(text); ok {
		if lastSpan == "" {
			lastSpan = span
		}
		span = stripFenceArtifacts(span)
		if isJSONValue(span) {
			return &Result{
				Payload:  json.RawMessage(span),
				Prose:    strings.TrimSpace(text[:start]),
				Strategy: StrategyBraceMatch,
			}, nil
		}
	}

	if lastSpan == "" {
		return nil, &ExtractionError{Reason: "no JSON payload found"}
	}
	return nil, &ExtractionError{Reason: "candidate span is not valid JSON", Span: lastSpan}
}

// matchBraceSpan finds the first '{' and its matching '}' by depth
// counting, without regex backtracking.
func matchBraceSpan(s string) (span string, start int, ok bool) {
	start = strings.Index(s, "{")
	if start == -1 {
		return "", -1, false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), start, true
			}
		}
	}
	return "", -1, false
}

// isJSONValue reports whether s is a complete JSON object or array.
func isJSONValue(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s[0] != '{' && s[0] != '[' {
		return false
	}
	return gjson.Valid(s)
}

// TimeframeSlices splits a multiplexed payload into its per-timeframe
// objects. Missing timeframes are simply absent from the result. The
// shared multi_timeframe_analysis block, when present, is returned
// separately so callers can copy it into every timeframe state.
func TimeframeSlices(payload json.RawMessage, timeframes []string) (map[string]json.RawMessage, json.RawMessage) {
	slices := make(map[string]json.RawMessage, len(timeframes))
	for _, tf := range timeframes {
		if v := gjson.GetBytes(payload, tf); v.Exists() && v.IsObject() {
			slices[tf] = json.RawMessage(v.Raw)
		}
	}
	var shared json.RawMessage
	if v := gjson.GetBytes(payload, "multi_timeframe_analysis"); v.Exists() {
		shared = json.RawMessage(v.Raw)
	}
	// A single-timeframe payload has the state fields at the top level.
	if len(slices) == 0 && len(timeframes) == 1 {
		slices[timeframes[0]] = payload
	}
	return slices, shared
}
