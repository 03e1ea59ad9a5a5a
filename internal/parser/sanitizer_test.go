package parser

import "testing"

// TestSanitizeControlChars tests control character replacement
func TestSanitizeControlChars(t *testing.T) {
	in := "line1\x00with\x1Fcontrol\x7Fchars"
	got := Sanitize(in)
	want := "line1 with control chars"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

// TestSanitizeStripsFences tests markdown fence removal
func TestSanitizeStripsFences(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	got := Sanitize(in)
	want := "{\"a\": 1}"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

// TestSanitizeEmpty tests that empty input stays empty
func TestSanitizeEmpty(t *testing.T) {
	if got := Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

// TestSanitizePlainTextUnchanged tests that ordinary prose passes through
func TestSanitizePlainTextUnchanged(t *testing.T) {
	in := "BTC is forming a bull flag above 42000."
	if got := Sanitize(in); got != in {
		t.Errorf("Sanitize() = %q, want %q", got, in)
	}
}
