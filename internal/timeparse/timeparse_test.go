package timeparse

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad test time %q: %v", s, err)
	}
	return tm
}

func TestParseStructuredPassthrough(t *testing.T) {
	got, ok := Parse("2025-07-17T10:00:00Z", Options{})
	if !ok {
		t.Fatal("expected structured timestamp to parse")
	}
	if got != "2025-07-17T10:00:00Z" {
		t.Errorf("got %q, want %q", got, "2025-07-17T10:00:00Z")
	}

	got, ok = Parse("2025-07-17", Options{})
	if !ok {
		t.Fatal("expected date-only timestamp to parse")
	}
	if got != "2025-07-17T00:00:00Z" {
		t.Errorf("got %q, want %q", got, "2025-07-17T00:00:00Z")
	}
}

func TestParseTomorrowCopiesFallbackTime(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")
	fb := mustTime(t, "2025-01-01T09:30:00Z")

	got, ok := Parse("tomorrow", Options{Reference: &ref, Fallback: &fb})
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "2025-07-18T09:30:00Z" {
		t.Errorf("got %q, want %q", got, "2025-07-18T09:30:00Z")
	}
}

func TestParseDiacriticInsensitive(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")

	accented, ok1 := Parse("mañana", Options{Reference: &ref})
	plain, ok2 := Parse("manana", Options{Reference: &ref})
	if !ok1 || !ok2 {
		t.Fatal("expected both spellings to match")
	}
	if accented != plain {
		t.Errorf("mañana %q != manana %q", accented, plain)
	}
	if accented != "2025-07-18T00:00:00Z" {
		t.Errorf("got %q, want midnight tomorrow", accented)
	}
}

func TestParseRelativeKeywords(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")

	tests := []struct {
		text string
		want string
	}{
		{"today", "2025-07-17T00:00:00Z"},
		{"hoy", "2025-07-17T00:00:00Z"},
		{"heute", "2025-07-17T00:00:00Z"},
		{"aujourd'hui", "2025-07-17T00:00:00Z"},
		{"आज", "2025-07-17T00:00:00Z"},
		{"demain", "2025-07-18T00:00:00Z"},
		{"domani", "2025-07-18T00:00:00Z"},
		{"कल", "2025-07-18T00:00:00Z"},
		{"day after tomorrow", "2025-07-19T00:00:00Z"},
		{"pasado mañana", "2025-07-19T00:00:00Z"},
		{"übermorgen", "2025-07-19T00:00:00Z"},
		{"dopodomani", "2025-07-19T00:00:00Z"},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.text, Options{Reference: &ref})
		if !ok {
			t.Errorf("%q: expected a match", tt.text)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseInNDays(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")

	tests := []struct {
		text string
		want string
	}{
		{"in 3 days", "2025-07-20T00:00:00Z"},
		{"en 5 dias", "2025-07-22T00:00:00Z"},
		{"dentro de 2 dias", "2025-07-19T00:00:00Z"},
		{"2 days from now", "2025-07-19T00:00:00Z"},
		{"4 days later", "2025-07-21T00:00:00Z"},
		{"in 10 din", "2025-07-27T00:00:00Z"},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.text, Options{Reference: &ref})
		if !ok {
			t.Errorf("%q: expected a match", tt.text)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseWeekdayStrictlyFuture(t *testing.T) {
	// 2025-07-21 is a Monday.
	monday := mustTime(t, "2025-07-21T08:00:00Z")

	got, ok := Parse("monday", Options{Reference: &monday})
	if !ok {
		t.Fatal("expected a match")
	}
	// Never the same day: the following Monday, 7 days out.
	if got != "2025-07-28T00:00:00Z" {
		t.Errorf("got %q, want %q", got, "2025-07-28T00:00:00Z")
	}

	got, ok = Parse("viernes", Options{Reference: &monday})
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "2025-07-25T00:00:00Z" {
		t.Errorf("got %q, want %q", got, "2025-07-25T00:00:00Z")
	}
}

func TestParseExplicitTimes(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")

	tests := []struct {
		text string
		want string
	}{
		{"tomorrow at 3pm", "2025-07-18T15:00:00Z"},
		{"tomorrow 3:30pm", "2025-07-18T15:30:00Z"},
		{"tomorrow at 12am", "2025-07-18T00:00:00Z"},
		{"tomorrow at 12pm", "2025-07-18T12:00:00Z"},
		{"manana a las 15 horas", "2025-07-18T15:00:00Z"},
		{"tomorrow at 9", "2025-07-18T09:00:00Z"},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.text, Options{Reference: &ref})
		if !ok {
			t.Errorf("%q: expected a match", tt.text)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}

// Devanagari keywords carry combining vowel signs, anusvara, and virama;
// normalization must leave them intact or none of these forms can match.
func TestParseDevanagariForms(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")

	got, ok := Parse("परसों", Options{Reference: &ref})
	if !ok {
		t.Fatal("expected परसों to match")
	}
	if got != "2025-07-19T00:00:00Z" {
		t.Errorf("got %q, want %q", got, "2025-07-19T00:00:00Z")
	}

	// 2025-07-21 is a Monday.
	monday := mustTime(t, "2025-07-21T08:00:00Z")
	tests := []struct {
		text string
		want string
	}{
		{"मंगलवार", "2025-07-22T00:00:00Z"},
		{"बुधवार", "2025-07-23T00:00:00Z"},
		{"गुरुवार", "2025-07-24T00:00:00Z"},
		{"शुक्रवार", "2025-07-25T00:00:00Z"},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.text, Options{Reference: &monday})
		if !ok {
			t.Errorf("%q: expected a match", tt.text)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseHindiPeriods(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")

	tests := []struct {
		text string
		want string
	}{
		{"कल सुबह 9", "2025-07-18T09:00:00Z"},  // morning keeps hour
		{"कल दोपहर 2", "2025-07-18T14:00:00Z"}, // afternoon shifts +12
		{"कल दोपहर 12", "2025-07-18T12:00:00Z"},
		{"कल शाम 12", "2025-07-18T18:00:00Z"}, // evening maps 12 to 18
		{"कल शाम 7", "2025-07-18T19:00:00Z"},
		{"कल रात 9", "2025-07-18T21:00:00Z"},  // night shifts [6,12) by +12
		{"कल रात 12", "2025-07-18T00:00:00Z"}, // midnight
		{"कल रात 2", "2025-07-18T02:00:00Z"},  // small hours unchanged
	}
	for _, tt := range tests {
		got, ok := Parse(tt.text, Options{Reference: &ref})
		if !ok {
			t.Errorf("%q: expected a match", tt.text)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseFallbackBehavior(t *testing.T) {
	fb := mustTime(t, "2025-01-01T09:30:00Z")

	// Nothing matches, fallback supplied: return the fallback whole.
	got, ok := Parse("gibberish text", Options{Fallback: &fb})
	if !ok {
		t.Fatal("expected fallback to apply")
	}
	if got != "2025-01-01T09:30:00Z" {
		t.Errorf("got %q, want fallback", got)
	}

	// Nothing matches, no fallback: miss.
	if _, ok := Parse("gibberish text", Options{}); ok {
		t.Error("expected a miss without fallback")
	}

	// Empty input: miss.
	if _, ok := Parse("", Options{}); ok {
		t.Error("expected a miss for empty input")
	}
}

func TestParseTimeOnlyAnchorsOnFallbackDate(t *testing.T) {
	ref := mustTime(t, "2025-07-17T00:00:00Z")
	fb := mustTime(t, "2025-08-01T00:00:00Z")

	got, ok := Parse("at 5pm", Options{Reference: &ref, Fallback: &fb})
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "2025-08-01T17:00:00Z" {
		t.Errorf("got %q, want %q", got, "2025-08-01T17:00:00Z")
	}
}
