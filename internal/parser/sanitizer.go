// Package parser turns raw LLM completion text into typed timeframe
// states. It runs in three stages: Sanitize normalizes the text,
// Extract locates a JSON payload, and Infer fills whatever fields the
// payload left empty from the surrounding prose.
package parser

import (
	"regexp"
	"strings"
)

var fenceOpenRe = regexp.MustCompile("^```[a-zA-Z]*\\s*")
var fenceCloseRe = regexp.MustCompile("\\s*```\\s*$")

// Sanitize replaces ASCII control characters (0x00-0x1F, 0x7F) with a
// single space and strips leading/trailing markdown code-fence markers.
// It never fails; empty input yields an empty string.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < 0x20 || c == 0x7F {
			b.WriteByte(' ')
		} else {
			b.WriteByte(c)
		}
	}
	out := strings.TrimSpace(b.String())
	out = fenceOpenRe.ReplaceAllString(out, "")
	out = fenceCloseRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// stripFenceArtifacts removes residual code-fence markers from a span
// selected by one of the extraction strategies.
func stripFenceArtifacts(span string) string {
	span = strings.TrimSpace(span)
	span = fenceOpenRe.ReplaceAllString(span, "")
	span = fenceCloseRe.ReplaceAllString(span, "")
	return strings.TrimSpace(span)
}
