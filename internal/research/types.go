package research

import (
	"context"

	fetchmodels "github.com/jamesnation/deepsearch/tools/web_fetch/models"
	searchmodels "github.com/jamesnation/deepsearch/tools/web_search/models"
)

// Turn is one prior conversation message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EvidenceItem is one web source folded into the research context: raw
// extracted text plus a condensed, query-relevant summary.
type EvidenceItem struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Date          string `json:"date"`
	ExtractedText string `json:"extracted_text"`
	Summary       string `json:"summary"`
}

// SearchRecord is one planned query and its resolved evidence.
type SearchRecord struct {
	Query   string         `json:"query"`
	Results []EvidenceItem `json:"results"`
}

// UsageRecord is one inference call's token accounting.
type UsageRecord struct {
	Source           string `json:"source"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// Plan is the rationale and query set produced for one loop iteration.
type Plan struct {
	Rationale string   `json:"plan"`
	Queries   []string `json:"queries"`
}

// DecisionKind discriminates the evaluator's verdict.
type DecisionKind string

const (
	// DecisionAnswer means the gathered evidence suffices.
	DecisionAnswer DecisionKind = "answer"
	// DecisionContinue means another search iteration is needed.
	DecisionContinue DecisionKind = "continue"
)

// Decision is the evaluator's verdict. Feedback is only meaningful for
// DecisionContinue; an answer decision cannot carry refinement guidance.
type Decision struct {
	Kind      DecisionKind
	Title     string
	Reasoning string
	Feedback  string
}

// Result is what a completed research run returns.
type Result struct {
	Answer      string         `json:"answer"`
	Steps       int            `json:"steps"`
	TotalTokens int64          `json:"total_tokens"`
	Sources     []SourceRef    `json:"sources"`
	Usage       []UsageRecord  `json:"usage"`
	History     []SearchRecord `json:"-"`
	Degraded    bool           `json:"degraded"`
}

// SourceRef is a deduplicated citation entry for display.
type SourceRef struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// LLM is the slice of the provider interface the controller needs.
type LLM interface {
	GenerateWithTokens(ctx context.Context, prompt string, model string) (string, int64, int64, error)
}

// Searcher issues one web search query.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]searchmodels.Result, error)
}

// Fetcher extracts the readable text of one URL.
type Fetcher interface {
	Exec(ctx context.Context, url string) (fetchmodels.Result, error)
}
