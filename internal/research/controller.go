// Package research implements the iterative research loop: plan queries,
// search and extract sources, summarize them into the context, then decide
// whether to answer or keep digging.
package research

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jamesnation/deepsearch/config"
	"github.com/jamesnation/deepsearch/internal/cache"
	"github.com/jamesnation/deepsearch/internal/ratelimit"
	"github.com/jamesnation/deepsearch/utils"
)

const (
	defaultMaxSteps         = 10
	defaultResultsPerQuery  = 5
	defaultMaxSourcesPerHop = 8
	defaultMinQueries       = 1
	defaultMaxQueries       = 5
)

// Controller orchestrates one research run per Run call. It is safe for
// concurrent use; all per-run state lives in the Context it creates.
type Controller struct {
	llm      LLM
	searcher Searcher
	fetcher  Fetcher
	limiter  *ratelimit.Limiter
	memo     *cache.Cache
	metrics  *Metrics
	logger   *log.Logger

	routing          config.LLMRoutingConfig
	maxSteps         int
	minQueries       int
	maxQueries       int
	resultsPerQuery  int
	maxSourcesPerHop int
	cacheTTL         time.Duration
}

// New creates a controller. The limiter, cache and metrics may be nil, in
// which case the corresponding concern is skipped. A nil logger gets a
// prefixed default.
func New(cfg *config.Config, llm LLM, searcher Searcher, fetcher Fetcher, limiter *ratelimit.Limiter, memo *cache.Cache, metrics *Metrics, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	}
	c := &Controller{
		llm:              llm,
		searcher:         searcher,
		fetcher:          fetcher,
		limiter:          limiter,
		memo:             memo,
		metrics:          metrics,
		logger:           logger,
		routing:          cfg.LLM.Routing,
		maxSteps:         cfg.Research.MaxSteps,
		minQueries:       cfg.Research.MinQueries,
		maxQueries:       cfg.Research.MaxQueries,
		resultsPerQuery:  cfg.Search.ResultsPerQuery,
		maxSourcesPerHop: cfg.Search.MaxSourcesPerHop,
		cacheTTL:         cfg.Cache.TTL,
	}
	if c.maxSteps <= 0 {
		c.maxSteps = defaultMaxSteps
	}
	if c.minQueries <= 0 {
		c.minQueries = defaultMinQueries
	}
	if c.maxQueries <= 0 {
		c.maxQueries = defaultMaxQueries
	}
	if c.maxQueries < c.minQueries {
		c.maxQueries = c.minQueries
	}
	if c.resultsPerQuery <= 0 {
		c.resultsPerQuery = defaultResultsPerQuery
	}
	if c.maxSourcesPerHop <= 0 {
		c.maxSourcesPerHop = defaultMaxSourcesPerHop
	}
	return c
}

// Run executes the research loop for one question. It always returns a
// usable Result: when the loop itself fails, the answer degrades to an
// apology that names the question and Degraded is set.
func (c *Controller) Run(ctx context.Context, question string, history []Turn, sink Sink) Result {
	rc := NewContext(question, history)

	c.logger.Printf("starting research for %q (%d history messages)", question, len(history))

	answer, err := c.loop(ctx, rc, sink)
	result := Result{
		Answer:      answer,
		Steps:       rc.Step(),
		TotalTokens: rc.TotalTokens(),
		Sources:     collectCitations(rc.SearchHistory()),
		Usage:       rc.UsageLog(),
		History:     rc.SearchHistory(),
	}
	if err != nil {
		c.logger.Printf("research loop failed: %v", err)
		c.metrics.observeRun("degraded")
		result.Answer = degradedAnswer(question, err)
		result.Degraded = true
		return result
	}

	c.metrics.observeRun("ok")
	c.logger.Printf("research finished after %d steps, %d tokens, %d sources",
		result.Steps, result.TotalTokens, len(result.Sources))
	return result
}

// loop runs plan / gather / decide iterations until the evaluator answers or
// the step ceiling forces a best-effort answer.
func (c *Controller) loop(ctx context.Context, rc *Context, sink Sink) (string, error) {
	for !rc.ShouldStop(c.maxSteps) {
		c.logger.Printf("step %d: planning queries", rc.Step()+1)

		plan, err := c.plan(ctx, rc)
		if err != nil {
			return "", err
		}
		publish(sink, Event{Type: EventPlanReady, Plan: &PlanEvent{
			Step:        rc.Step() + 1,
			QueryCount:  len(plan.Queries),
			PlanSummary: utils.Truncate(plan.Rationale, 100),
		}})

		records, candidates, err := c.gather(ctx, rc, plan)
		if err != nil {
			return "", err
		}
		for _, record := range records {
			rc.ReportSearch(record)
		}
		publish(sink, Event{Type: EventSourcesFound, Sources: &SourcesEvent{
			Label:   fmt.Sprintf("Found %d sources", len(candidates)),
			Count:   len(candidates),
			Sources: sourceRefs(candidates),
		}})

		decision, err := c.decide(ctx, rc)
		if err != nil {
			return "", err
		}
		publish(sink, Event{Type: EventTokenUsage, TokenUsage: &TokenUsageEvent{TotalTokens: rc.TotalTokens()}})

		rc.IncrementStep()
		if decision.Kind == DecisionAnswer {
			c.logger.Printf("step %d: evaluator chose to answer (%s)", rc.Step(), decision.Title)
			return c.answer(ctx, rc, false)
		}

		c.logger.Printf("step %d: continuing research (%s)", rc.Step(), decision.Title)
		rc.SetFeedback(decision.Feedback)
	}

	c.logger.Printf("step ceiling reached, generating best-effort answer")
	return c.answer(ctx, rc, true)
}

func (c *Controller) plan(ctx context.Context, rc *Context) (Plan, error) {
	raw, err := c.generate(ctx, rc, PhasePlanning, buildPlanPrompt(rc, c.minQueries, c.maxQueries))
	if err != nil {
		return Plan{}, err
	}
	return parsePlan(raw, c.minQueries, c.maxQueries)
}

func (c *Controller) decide(ctx context.Context, rc *Context) (Decision, error) {
	raw, err := c.generate(ctx, rc, PhaseEvaluation, buildDecisionPrompt(rc))
	if err != nil {
		return Decision{}, err
	}
	return parseDecision(raw)
}

// gather runs the plan's queries concurrently, dedupes the hits across
// queries, then extracts and summarizes the survivors concurrently. A failed
// query or source degrades that entry only; gather errors only when every
// query failed, because then the iteration produced nothing to reason over.
func (c *Controller) gather(ctx context.Context, rc *Context, plan Plan) ([]SearchRecord, []sourceCandidate, error) {
	perQuery := make([]querySources, len(plan.Queries))
	searchErrs := make([]error, len(plan.Queries))

	var wg sync.WaitGroup
	for i, q := range plan.Queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			c.metrics.observeSearch()
			hits, err := c.searcher.Discover(ctx, q, c.resultsPerQuery)
			if err != nil {
				c.logger.Printf("search %q failed: %v", q, err)
				searchErrs[i] = err
				perQuery[i] = querySources{Query: q}
				return
			}
			perQuery[i] = querySources{Query: q, Results: hits}
		}(i, q)
	}
	wg.Wait()

	failed := 0
	var firstErr error
	for _, err := range searchErrs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(plan.Queries) {
		return nil, nil, fmt.Errorf("all %d searches failed: %w", failed, firstErr)
	}

	candidates := dedupSources(perQuery, c.maxSourcesPerHop)

	items := make([]EvidenceItem, len(candidates))
	var fetchWG sync.WaitGroup
	for i, cand := range candidates {
		fetchWG.Add(1)
		go func(i int, cand sourceCandidate) {
			defer fetchWG.Done()
			items[i] = c.resolveSource(ctx, rc, cand)
		}(i, cand)
	}
	fetchWG.Wait()

	// Regroup by query in plan order. Queries that failed or produced no
	// surviving sources still get a record so the history stays honest.
	byQuery := make(map[string][]EvidenceItem, len(plan.Queries))
	for i, cand := range candidates {
		byQuery[cand.Query] = append(byQuery[cand.Query], items[i])
	}
	records := make([]SearchRecord, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		records = append(records, SearchRecord{Query: q, Results: byQuery[q]})
	}
	return records, candidates, nil
}

// resolveSource extracts one URL and condenses it against its query. Both
// steps degrade instead of failing: a broken extraction becomes an error
// marker, a failed summarization falls back to the extracted text.
func (c *Controller) resolveSource(ctx context.Context, rc *Context, cand sourceCandidate) EvidenceItem {
	item := EvidenceItem{
		URL:     cand.Result.URL,
		Title:   cand.Result.Title,
		Snippet: cand.Result.Snippet,
		Date:    cand.Result.Date,
	}
	if item.Date == "" {
		item.Date = time.Now().Format("2006-01-02")
	}

	fetched, err := c.fetcher.Exec(ctx, cand.Result.URL)
	c.metrics.observeFetch(err != nil)
	if err != nil {
		c.logger.Printf("fetch %s failed: %v", cand.Result.URL, err)
		item.ExtractedText = fmt.Sprintf("Error: %v", err)
		item.Summary = item.ExtractedText
		return item
	}
	item.ExtractedText = fetched.Text
	if item.Title == "" {
		item.Title = fetched.Title
	}

	item.Summary = c.summarize(ctx, rc, cand.Query, cand.Result, fetched.Text)
	return item
}

// generate is the single funnel for LLM calls: rate limit, invoke, record,
// account. Every phase goes through here so the budget covers all of them.
func (c *Controller) generate(ctx context.Context, rc *Context, phase, prompt string) (string, error) {
	if c.limiter != nil {
		if !c.limiter.Wait(ctx) {
			return "", fmt.Errorf("%s: llm rate limit exceeded", phase)
		}
	}

	out, promptTokens, completionTokens, err := c.llm.GenerateWithTokens(ctx, prompt, c.routing.ModelFor(phase))
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", phase, err)
	}

	if c.limiter != nil {
		c.limiter.Record(ctx)
	}
	rc.ReportUsage(phase, promptTokens, completionTokens)
	c.metrics.observeLLM(phase, promptTokens, completionTokens)
	return out, nil
}
