package research

import (
	"fmt"
	"strings"
	"sync"
)

// Context owns all loop-scoped research state. It is created once per
// request, mutated by the controller goroutine, and discarded when the
// request completes. The usage log is the one exception to single-writer
// access: summarization fans out, so its goroutines report usage
// concurrently and the log carries its own lock.
type Context struct {
	question   string
	priorTurns []Turn

	step          int
	searchHistory []SearchRecord
	lastFeedback  string

	usageMu  sync.Mutex
	usageLog []UsageRecord
}

// NewContext creates a fresh research context for one question.
func NewContext(question string, priorTurns []Turn) *Context {
	return &Context{question: question, priorTurns: priorTurns}
}

// Question returns the original user question.
func (c *Context) Question() string { return c.question }

// PriorTurns returns the supplied conversation history.
func (c *Context) PriorTurns() []Turn { return c.priorTurns }

// Step returns the current loop step. It never decreases.
func (c *Context) Step() int { return c.step }

// IncrementStep advances the loop counter by one.
func (c *Context) IncrementStep() { c.step++ }

// ShouldStop reports whether the step ceiling has been reached.
func (c *Context) ShouldStop(maxSteps int) bool { return c.step >= maxSteps }

// ReportSearch appends one resolved query to the history. Insertion order is
// chronological and is never reordered.
func (c *Context) ReportSearch(record SearchRecord) {
	c.searchHistory = append(c.searchHistory, record)
}

// SearchHistory returns the accumulated records in insertion order.
func (c *Context) SearchHistory() []SearchRecord { return c.searchHistory }

// SetFeedback stores the evaluator's refinement guidance for the next plan,
// overwriting whatever the previous iteration left.
func (c *Context) SetFeedback(feedback string) { c.lastFeedback = feedback }

// LastFeedback returns the evaluator guidance from the previous iteration,
// or the empty string on the first pass.
func (c *Context) LastFeedback() string { return c.lastFeedback }

// ReportUsage appends one inference call's token counts to the usage log.
// Safe for concurrent callers.
func (c *Context) ReportUsage(source string, promptTokens, completionTokens int64) {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	c.usageLog = append(c.usageLog, UsageRecord{
		Source:           source,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	})
}

// UsageLog returns a snapshot of the usage records.
func (c *Context) UsageLog() []UsageRecord {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	out := make([]UsageRecord, len(c.usageLog))
	copy(out, c.usageLog)
	return out
}

// TotalTokens sums the usage log.
func (c *Context) TotalTokens() int64 {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	var total int64
	for _, u := range c.usageLog {
		total += u.TotalTokens
	}
	return total
}

// FormattedConversation renders the prior turns for prompt inclusion.
func (c *Context) FormattedConversation() string {
	if len(c.priorTurns) == 0 {
		return "No previous conversation."
	}
	parts := make([]string, 0, len(c.priorTurns))
	for _, turn := range c.priorTurns {
		parts = append(parts, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return strings.Join(parts, "\n\n")
}

// FormattedContext renders the canonical evidence block used verbatim in
// every subsequent prompt. The output is deterministic: insertion order
// everywhere, no maps involved.
func (c *Context) FormattedContext() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Conversation History:\n\n%s\n\n", c.FormattedConversation())
	fmt.Fprintf(&b, "## User Question: %q\n\n", c.question)
	fmt.Fprintf(&b, "## Current Step: %d\n\n", c.step)

	b.WriteString("## Search History:\n\n")
	if len(c.searchHistory) == 0 {
		b.WriteString("No searches performed yet.\n")
	}
	for _, record := range c.searchHistory {
		fmt.Fprintf(&b, "### Query: %q\n\n", record.Query)
		for _, item := range record.Results {
			fmt.Fprintf(&b, "#### %s - %s\n\n", item.Date, item.Title)
			fmt.Fprintf(&b, "%s\n\n", item.URL)
			if item.Snippet != "" {
				fmt.Fprintf(&b, "%s\n\n", item.Snippet)
			}
			fmt.Fprintf(&b, "<summary>\n%s\n</summary>\n\n", item.Summary)
		}
	}

	if c.lastFeedback != "" {
		fmt.Fprintf(&b, "## Previous Evaluation Feedback:\n\n%s\n", c.lastFeedback)
	}

	return b.String()
}
