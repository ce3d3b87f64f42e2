package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jamesnation/deepsearch/internal/helpers"
)

// parsePlan decodes and validates the planner's JSON reply against the
// configured query bounds. Blank queries are dropped; anything past the
// maximum is cut rather than rejected, a model occasionally overshooting is
// not worth failing a run.
func parsePlan(raw string, minQueries, maxQueries int) (Plan, error) {
	if minQueries < 1 {
		minQueries = 1
	}
	if maxQueries < minQueries {
		maxQueries = minQueries
	}
	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return Plan{}, fmt.Errorf("plan response: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return Plan{}, fmt.Errorf("plan response is not valid JSON: %w", err)
	}

	queries := plan.Queries[:0]
	for _, q := range plan.Queries {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	plan.Queries = queries

	if len(plan.Queries) == 0 {
		return Plan{}, fmt.Errorf("plan contains no usable queries")
	}
	if len(plan.Queries) < minQueries {
		return Plan{}, fmt.Errorf("plan has %d usable queries, want at least %d", len(plan.Queries), minQueries)
	}
	if len(plan.Queries) > maxQueries {
		plan.Queries = plan.Queries[:maxQueries]
	}
	return plan, nil
}
