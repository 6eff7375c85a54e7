package dialogue

import (
	"strings"
	"testing"
	"time"
)

func TestParseSpokenTimeRelative(t *testing.T) {
	// Monday, October 20 2025.
	ref := time.Date(2025, time.October, 20, 9, 0, 0, 0, time.UTC)

	got := ParseSpokenTime("tomorrow at 2pm", ref)
	if !strings.Contains(got, "Tuesday, October 21") {
		t.Fatalf("expected next-day date in %q", got)
	}
	if !strings.Contains(got, "2:00 PM") {
		t.Fatalf("expected 2:00 PM in %q", got)
	}
}

func TestParseSpokenTimeExplicitDate(t *testing.T) {
	ref := time.Date(2025, time.October, 20, 9, 0, 0, 0, time.UTC)

	got := ParseSpokenTime("October 25th at 10:30", ref)
	if !strings.Contains(got, "October 25") {
		t.Fatalf("expected October 25 in %q", got)
	}
	if !strings.Contains(got, "10:30") {
		t.Fatalf("expected 10:30 in %q", got)
	}
}

func TestParseSpokenTimeUnparseableFallsBack(t *testing.T) {
	ref := time.Date(2025, time.October, 20, 9, 0, 0, 0, time.UTC)

	utterance := "whenever the doctor is around"
	if got := ParseSpokenTime(utterance, ref); got != utterance {
		t.Fatalf("expected verbatim fallback, got %q", got)
	}
	if got := ParseSpokenTime("  ", ref); got != "" {
		t.Fatalf("expected empty result for blank input, got %q", got)
	}
}
