package research

import (
	"fmt"
	"testing"

	searchmodels "github.com/jamesnation/deepsearch/tools/web_search/models"
)

func TestDedupSourcesAcrossQueries(t *testing.T) {
	perQuery := []querySources{
		{Query: "q1", Results: []searchmodels.Result{
			{URL: "https://a.example", Title: "A"},
			{URL: "https://b.example", Title: "B"},
		}},
		{Query: "q2", Results: []searchmodels.Result{
			{URL: "https://b.example", Title: "B again"},
			{URL: "https://c.example", Title: "C"},
		}},
	}

	got := dedupSources(perQuery, 8)
	if len(got) != 3 {
		t.Fatalf("expected 3 unique sources, got %d: %+v", len(got), got)
	}
	if got[0].Result.URL != "https://a.example" || got[1].Result.URL != "https://b.example" || got[2].Result.URL != "https://c.example" {
		t.Fatalf("first occurrence order not preserved: %+v", got)
	}
	// the duplicate keeps its first query's attribution
	if got[1].Query != "q1" || got[1].Result.Title != "B" {
		t.Fatalf("duplicate must keep first occurrence: %+v", got[1])
	}
	if got[2].Query != "q2" {
		t.Fatalf("attribution lost: %+v", got[2])
	}
}

func TestDedupSourcesEnforcesLimit(t *testing.T) {
	var results []searchmodels.Result
	for i := 0; i < 20; i++ {
		results = append(results, searchmodels.Result{URL: fmt.Sprintf("https://example.com/%d", i)})
	}
	got := dedupSources([]querySources{{Query: "q", Results: results}}, 8)
	if len(got) != 8 {
		t.Fatalf("expected cap of 8, got %d", len(got))
	}
	if got[7].Result.URL != "https://example.com/7" {
		t.Fatalf("cap must keep the highest ranked hits: %+v", got[7])
	}
}

func TestDedupSourcesSkipsEmptyURLs(t *testing.T) {
	got := dedupSources([]querySources{{Query: "q", Results: []searchmodels.Result{
		{URL: "", Title: "broken"},
		{URL: "https://ok.example", Title: "ok"},
	}}}, 8)
	if len(got) != 1 || got[0].Result.URL != "https://ok.example" {
		t.Fatalf("empty URLs must be dropped: %+v", got)
	}
}

func TestCollectCitationsDedupsAcrossIterations(t *testing.T) {
	history := []SearchRecord{
		{Query: "q1", Results: []EvidenceItem{
			{URL: "https://a.example", Title: "A", Snippet: "sa"},
		}},
		{Query: "q2", Results: []EvidenceItem{
			{URL: "https://a.example", Title: "A dup"},
			{URL: "https://b.example", Title: "B"},
		}},
	}
	refs := collectCitations(history)
	if len(refs) != 2 {
		t.Fatalf("expected 2 citations, got %d: %+v", len(refs), refs)
	}
	if refs[0].Title != "A" || refs[1].Title != "B" {
		t.Fatalf("citation order or dedup wrong: %+v", refs)
	}
}
