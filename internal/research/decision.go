package research

import (
	"encoding/json"
	"fmt"

	"github.com/jamesnation/deepsearch/internal/helpers"
)

// parseDecision decodes and validates the evaluator's JSON reply. The
// variants are enforced here: an "answer" decision never carries feedback,
// a "continue" decision keeps whatever guidance the model produced.
func parseDecision(raw string) (Decision, error) {
	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("decision response: %w", err)
	}

	var wire struct {
		Action    string `json:"action"`
		Title     string `json:"title"`
		Reasoning string `json:"reasoning"`
		Feedback  string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return Decision{}, fmt.Errorf("decision response is not valid JSON: %w", err)
	}

	switch DecisionKind(wire.Action) {
	case DecisionAnswer:
		return Decision{
			Kind:      DecisionAnswer,
			Title:     wire.Title,
			Reasoning: wire.Reasoning,
		}, nil
	case DecisionContinue:
		return Decision{
			Kind:      DecisionContinue,
			Title:     wire.Title,
			Reasoning: wire.Reasoning,
			Feedback:  wire.Feedback,
		}, nil
	default:
		return Decision{}, fmt.Errorf("unknown decision action %q", wire.Action)
	}
}
