package research

import (
	"strings"
	"testing"
)

func TestParseDecisionAnswerDropsFeedback(t *testing.T) {
	raw := `{"action":"answer","title":"Answering","reasoning":"evidence suffices","feedback":"should be ignored"}`
	d, err := parseDecision(raw)
	if err != nil {
		t.Fatalf("parseDecision: %v", err)
	}
	if d.Kind != DecisionAnswer {
		t.Fatalf("expected answer kind, got %q", d.Kind)
	}
	if d.Feedback != "" {
		t.Fatalf("answer decision must not carry feedback, got %q", d.Feedback)
	}
	if d.Title != "Answering" || d.Reasoning != "evidence suffices" {
		t.Fatalf("fields lost: %+v", d)
	}
}

func TestParseDecisionContinueKeepsFeedback(t *testing.T) {
	raw := "Here's my decision:\n```json\n{\"action\":\"continue\",\"title\":\"Digging deeper\",\"reasoning\":\"missing dates\",\"feedback\":\"find the exact release date\"}\n```"
	d, err := parseDecision(raw)
	if err != nil {
		t.Fatalf("parseDecision: %v", err)
	}
	if d.Kind != DecisionContinue || d.Feedback != "find the exact release date" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionRejectsUnknownAction(t *testing.T) {
	if _, err := parseDecision(`{"action":"retreat"}`); err == nil || !strings.Contains(err.Error(), "retreat") {
		t.Fatalf("expected unknown action error, got %v", err)
	}
	if _, err := parseDecision("no json at all"); err == nil {
		t.Fatalf("expected extraction error for prose reply")
	}
}

func TestParsePlanValidation(t *testing.T) {
	p, err := parsePlan(`{"plan":"start broad","queries":[" a ","","b","c","d","e","f"]}`, 1, 5)
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if p.Rationale != "start broad" {
		t.Fatalf("rationale lost: %+v", p)
	}
	if len(p.Queries) != 5 {
		t.Fatalf("expected queries capped at 5, got %d: %v", len(p.Queries), p.Queries)
	}
	if p.Queries[0] != "a" {
		t.Fatalf("queries must be trimmed: %v", p.Queries)
	}

	if _, err := parsePlan(`{"plan":"empty","queries":["  ",""]}`, 1, 5); err == nil {
		t.Fatalf("expected error for plan with no usable queries")
	}
}

func TestParsePlanEnforcesConfiguredBounds(t *testing.T) {
	if _, err := parsePlan(`{"plan":"thin","queries":["only one"]}`, 3, 5); err == nil {
		t.Fatalf("expected error for plan below the query minimum")
	}

	p, err := parsePlan(`{"plan":"wide","queries":["a","b","c","d"]}`, 2, 3)
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if len(p.Queries) != 3 {
		t.Fatalf("expected queries capped at 3, got %d: %v", len(p.Queries), p.Queries)
	}
}
