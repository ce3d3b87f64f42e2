package research

import (
	searchmodels "github.com/jamesnation/deepsearch/tools/web_search/models"
)

// querySources pairs a planned query with its raw search results.
type querySources struct {
	Query   string
	Results []searchmodels.Result
}

// dedupSources flattens per-query search results into one list, dropping
// repeated URLs across queries and keeping at most limit entries. First
// occurrence wins, so ordering follows the plan's query order and each
// engine's own ranking within a query. The surviving items remember which
// query surfaced them, which keys the summarization cache.
func dedupSources(perQuery []querySources, limit int) []sourceCandidate {
	seen := make(map[string]struct{})
	var out []sourceCandidate
	for _, qs := range perQuery {
		for _, r := range qs.Results {
			if r.URL == "" {
				continue
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, sourceCandidate{Query: qs.Query, Result: r})
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// sourceCandidate is one deduplicated search hit awaiting extraction.
type sourceCandidate struct {
	Query  string
	Result searchmodels.Result
}

// sourceRefs projects candidates into display citations.
func sourceRefs(candidates []sourceCandidate) []SourceRef {
	refs := make([]SourceRef, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, SourceRef{
			Title:   c.Result.Title,
			URL:     c.Result.URL,
			Snippet: c.Result.Snippet,
		})
	}
	return refs
}

// collectCitations walks the full search history and returns every distinct
// source that contributed evidence, in first-seen order.
func collectCitations(history []SearchRecord) []SourceRef {
	seen := make(map[string]struct{})
	var refs []SourceRef
	for _, record := range history {
		for _, item := range record.Results {
			if item.URL == "" {
				continue
			}
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			refs = append(refs, SourceRef{Title: item.Title, URL: item.URL, Snippet: item.Snippet})
		}
	}
	return refs
}
