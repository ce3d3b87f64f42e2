package research

import (
	"context"

	"github.com/jamesnation/deepsearch/internal/cache"
	searchmodels "github.com/jamesnation/deepsearch/tools/web_search/models"
)

// summarizeOp names the memoized operation in cache keys.
const summarizeOp = "summarize-url"

// summarize condenses one extracted page against the query that surfaced it.
// The result is memoized per (query, url) pair so repeat visits across
// iterations and across requests skip the LLM entirely. When summarization
// fails the extracted text stands in for the summary; a worse summary beats
// a lost source.
func (c *Controller) summarize(ctx context.Context, rc *Context, query string, meta searchmodels.Result, extracted string) string {
	prompt := buildSummaryPrompt(rc.FormattedConversation(), query, meta, extracted)
	compute := func(ctx context.Context) (string, error) {
		return c.generate(ctx, rc, PhaseSummarization, prompt)
	}

	summary, err := c.memo.GetOrCompute(ctx, cache.Key(summarizeOp, query, meta.URL), c.cacheTTL, compute)
	if err != nil {
		c.logger.Printf("summarize %s failed, using extracted text: %v", meta.URL, err)
		return extracted
	}
	return summary
}
