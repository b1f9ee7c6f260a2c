package search

import (
	"math"
	"slices"
	"testing"

	"sift/internal/index"
	"sift/internal/query"
	"sift/internal/segment"
)

// recipeDocs is the shared corpus for the query tests in this package.
// Term spread is deliberate: "garlic" is heavy in one doc, "tomatoes"
// appears in three, "olive oil" is adjacent in three bodies, and
// "roast"/"roasted" share a prefix across two docs.
var recipeDocs = []struct {
	id, title, body string
}{
	{"tomato-soup", "Tomato Soup", "Simmer ripe tomatoes with garlic and basil"},
	{"garlic-bread", "Garlic Bread", "Roasted garlic butter on warm bread with extra garlic and more garlic"},
	{"basil-pesto", "Basil Pesto", "Blend basil leaves with olive oil and parmesan"},
	{"roast-chicken", "Roast Chicken", "Rub the chicken with olive oil and roast until golden"},
	{"minestrone", "Minestrone", "A hearty vegetable soup with beans, pasta and tomatoes"},
	{"bruschetta", "Bruschetta", "Grilled bread with chopped tomatoes, basil and olive oil"},
}

func recipeIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New(index.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("New index error: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	for _, d := range recipeDocs {
		if err := idx.Index(d.id, map[string]any{"title": d.title, "body": d.body}); err != nil {
			t.Fatalf("Index %s error: %v", d.id, err)
		}
	}
	return idx
}

// searcherFor snapshots the index and wraps it in a searcher, both torn
// down when the test ends.
func searcherFor(t *testing.T, idx *index.Index) *Searcher {
	t.Helper()
	snapshot, err := idx.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	t.Cleanup(func() { snapshot.Close() })

	s := New(snapshot)
	t.Cleanup(func() { s.Close() })
	return s
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func TestTermQuery_MatchesAcrossFields(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	// garlic-bread holds the term three times in a field of twelve,
	// tomato-soup once in a field of seven.
	want := []string{"garlic-bread", "tomato-soup"}
	if got := resultIDs(results); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("garlic-bread should outscore tomato-soup: %f <= %f",
			results[0].Score, results[1].Score)
	}
}

func TestTermQuery_FieldScoped(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	// "soup" lives in one title and one other body.
	titleHits, err := s.RunQuery(&query.TermQuery{Field: "title", Term: "soup"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(titleHits); !slices.Equal(got, []string{"tomato-soup"}) {
		t.Errorf("title search: expected [tomato-soup], got %v", got)
	}

	bodyHits, err := s.RunQuery(&query.TermQuery{Field: "body", Term: "soup"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(bodyHits); !slices.Equal(got, []string{"minestrone"}) {
		t.Errorf("body search: expected [minestrone], got %v", got)
	}
}

func TestTermQuery_InputIsAnalyzed(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	base, err := s.RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	// Uppercase and trailing punctuation normalize to the same index term.
	for _, input := range []string{"GARLIC", "Garlic", "garlic,"} {
		results, err := s.RunQuery(&query.TermQuery{Term: input})
		if err != nil {
			t.Fatalf("RunQuery(%q) error: %v", input, err)
		}
		if !slices.Equal(resultIDs(results), resultIDs(base)) {
			t.Errorf("input %q: expected %v, got %v", input, resultIDs(base), resultIDs(results))
		}
	}
}

func TestTermQuery_EqualScoresOrderByDocID(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.TermQuery{Term: "tomatoes"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	// minestrone and bruschetta have identical stats for "tomatoes"
	// (tf=1, same body length), so the ID decides their order.
	want := []string{"tomato-soup", "bruschetta", "minestrone"}
	if got := resultIDs(results); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if results[1].Score != results[2].Score {
		t.Errorf("expected equal scores for bruschetta and minestrone: %f vs %f",
			results[1].Score, results[2].Score)
	}
}

func TestTermQuery_NoMatch(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.TermQuery{Term: "saffron"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", resultIDs(results))
	}
}

func TestTermQuery_EmptyTermNoResults(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	for _, input := range []string{"", "...", "  "} {
		results, err := s.RunQuery(&query.TermQuery{Term: input})
		if err != nil {
			t.Fatalf("RunQuery(%q) error: %v", input, err)
		}
		if len(results) != 0 {
			t.Errorf("term %q: expected no results, got %v", input, resultIDs(results))
		}
	}
}

func TestTermQuery_UnknownFieldNoResults(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.TermQuery{Field: "ingredients", Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for unknown field, got %v", resultIDs(results))
	}
}

func TestTermQuery_DeletedDocsDropped(t *testing.T) {
	idx := recipeIndex(t)
	if err := idx.Delete("garlic-bread"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	s := searcherFor(t, idx)

	results, err := s.RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(results); !slices.Equal(got, []string{"tomato-soup"}) {
		t.Errorf("expected [tomato-soup], got %v", got)
	}
}

func TestTermQuery_ReindexSupersedesOldVersion(t *testing.T) {
	idx := recipeIndex(t)
	err := idx.Index("tomato-soup", map[string]any{
		"title": "Tomato Soup",
		"body":  "Simmer ripe tomatoes with basil",
	})
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	s := searcherFor(t, idx)

	results, err := s.RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(results); !slices.Equal(got, []string{"garlic-bread"}) {
		t.Errorf("expected [garlic-bread] after reindex, got %v", got)
	}
}

func TestTermQuery_MatchedTermsReported(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	for _, r := range results {
		if !slices.Equal(r.MatchedTerms, []string{"garlic"}) {
			t.Errorf("%s: expected matched terms [garlic], got %v", r.DocID, r.MatchedTerms)
		}
	}
}

func TestTermQuery_IDFieldMatchesVerbatim(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	// The reserved ID field skips the analyzer, so the hyphenated ID
	// matches as a single term.
	results, err := s.RunQuery(&query.TermQuery{Field: segment.IDField, Term: "garlic-bread"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(results); !slices.Equal(got, []string{"garlic-bread"}) {
		t.Errorf("expected [garlic-bread], got %v", got)
	}
}

func TestTermQuery_FlushedSegmentMatchesBuilder(t *testing.T) {
	idx := recipeIndex(t)
	before, err := searcherFor(t, idx).RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	after, err := searcherFor(t, idx).RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	if !slices.Equal(resultIDs(before), resultIDs(after)) {
		t.Fatalf("flush changed results: %v vs %v", resultIDs(before), resultIDs(after))
	}
	for i := range before {
		if math.Abs(before[i].Score-after[i].Score) > 1e-9 {
			t.Errorf("%s: score changed across flush: %f vs %f",
				before[i].DocID, before[i].Score, after[i].Score)
		}
	}
}
