package contract

import (
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("a", MaxSummaryRunes)
	if got := Summarize(short); got != short {
		t.Fatalf("Summarize() changed a %d-rune string", MaxSummaryRunes)
	}

	long := strings.Repeat("b", MaxSummaryRunes+1)
	got := Summarize(long)
	if len([]rune(got)) != MaxSummaryRunes {
		t.Fatalf("Summarize() length = %d, want %d", len([]rune(got)), MaxSummaryRunes)
	}
	if !strings.HasSuffix(got, "...") || strings.Count(got, "b") != MaxSummaryRunes-3 {
		t.Fatalf("unexpected summary: %q", got)
	}

	multi := strings.Repeat("ก", MaxSummaryRunes+10)
	if n := len([]rune(Summarize(multi))); n != MaxSummaryRunes {
		t.Fatalf("Summarize() rune length = %d, want %d", n, MaxSummaryRunes)
	}
}

func TestAgentDerivedNames(t *testing.T) {
	t.Parallel()

	a := Agent{Key: "log", Name: "airtable_logger_agent"}
	if a.Category() != "Log" {
		t.Fatalf("Category() = %q, want Log", a.Category())
	}
	if a.MatchKeyword() != "log" {
		t.Fatalf("MatchKeyword() = %q, want log", a.MatchKeyword())
	}
	if a.DisplayName() != "airtable_logger_agent" {
		t.Fatalf("DisplayName() = %q", a.DisplayName())
	}

	b := Agent{Key: "PM", Keyword: " Project "}
	if b.Category() != "Pm" {
		t.Fatalf("Category() = %q, want Pm", b.Category())
	}
	if b.MatchKeyword() != "project" {
		t.Fatalf("MatchKeyword() = %q, want project", b.MatchKeyword())
	}
	if b.DisplayName() != "PM" {
		t.Fatalf("DisplayName() = %q, want PM", b.DisplayName())
	}
}

func TestClassificationMatched(t *testing.T) {
	t.Parallel()

	if (Classification{Agent: Unclassified}).Matched() {
		t.Fatal("unclassified must not match")
	}
	if !(Classification{Agent: "travel_agent", Confidence: 0.6}).Matched() {
		t.Fatal("travel_agent must match")
	}
}
