package search

import (
	"slices"
	"testing"

	"sift/internal/query"
)

func TestPhraseQuery_MatchesAdjacentTerms(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "olive oil"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	got := resultIDs(results)
	slices.Sort(got)
	want := []string{"basil-pesto", "bruschetta", "roast-chicken"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, r := range results {
		if r.Score <= 0 {
			t.Errorf("%s: expected positive score, got %f", r.DocID, r.Score)
		}
	}
}

func TestPhraseQuery_OrderMatters(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "oil olive"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for reversed phrase, got %v", resultIDs(results))
	}
}

func TestPhraseQuery_NoGapAllowed(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	// tomato-soup has "garlic and basil": both terms present, one word apart.
	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "garlic basil"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for gapped phrase, got %v", resultIDs(results))
	}
}

func TestPhraseQuery_InputIsAnalyzed(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	base, err := s.RunQuery(&query.PhraseQuery{Phrase: "olive oil"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	shouted, err := s.RunQuery(&query.PhraseQuery{Phrase: "Olive OIL!"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if !slices.Equal(resultIDs(shouted), resultIDs(base)) {
		t.Errorf("expected %v, got %v", resultIDs(base), resultIDs(shouted))
	}
}

func TestPhraseQuery_FieldScoped(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	titleHits, err := s.RunQuery(&query.PhraseQuery{Field: "title", Phrase: "tomato soup"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(titleHits); !slices.Equal(got, []string{"tomato-soup"}) {
		t.Errorf("title search: expected [tomato-soup], got %v", got)
	}

	bodyHits, err := s.RunQuery(&query.PhraseQuery{Field: "body", Phrase: "tomato soup"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(bodyHits) != 0 {
		t.Errorf("body search: expected no results, got %v", resultIDs(bodyHits))
	}
}

func TestPhraseQuery_SingleTermFallsBackToTerm(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	phrase, err := s.RunQuery(&query.PhraseQuery{Phrase: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	term, err := s.RunQuery(&query.TermQuery{Term: "garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	if !slices.Equal(resultIDs(phrase), resultIDs(term)) {
		t.Fatalf("expected %v, got %v", resultIDs(term), resultIDs(phrase))
	}
	for i := range phrase {
		if phrase[i].Score != term[i].Score {
			t.Errorf("%s: phrase score %f differs from term score %f",
				phrase[i].DocID, phrase[i].Score, term[i].Score)
		}
	}
}

func TestPhraseQuery_MissingTermNoMatch(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "olive saffron"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", resultIDs(results))
	}
}

func TestPhraseQuery_EmptyPhraseNoResults(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	for _, input := range []string{"", "..."} {
		results, err := s.RunQuery(&query.PhraseQuery{Phrase: input})
		if err != nil {
			t.Fatalf("RunQuery(%q) error: %v", input, err)
		}
		if len(results) != 0 {
			t.Errorf("phrase %q: expected no results, got %v", input, resultIDs(results))
		}
	}
}

func TestPhraseQuery_RepeatedTermNeedsAdjacency(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	// garlic-bread holds "garlic" three times, never twice in a row.
	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "garlic garlic"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", resultIDs(results))
	}
}

func TestPhraseQuery_ThreeTermPhrase(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "blend basil leaves"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if got := resultIDs(results); !slices.Equal(got, []string{"basil-pesto"}) {
		t.Errorf("expected [basil-pesto], got %v", got)
	}
}

func TestPhraseQuery_DoesNotSpanFields(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	// garlic-bread's title ends with "Bread" and its body starts with
	// "Roasted"; the phrase must not bridge them.
	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "bread roasted"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", resultIDs(results))
	}
}

func TestPhraseQuery_MatchedTermsListPhraseTerms(t *testing.T) {
	s := searcherFor(t, recipeIndex(t))

	results, err := s.RunQuery(&query.PhraseQuery{Phrase: "olive oil"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}
	for _, r := range results {
		for _, term := range []string{"olive", "oil"} {
			if !slices.Contains(r.MatchedTerms, term) {
				t.Errorf("%s: matched terms %v missing %q", r.DocID, r.MatchedTerms, term)
			}
		}
	}
}

func TestPhraseQuery_FlushedSegmentMatchesBuilder(t *testing.T) {
	idx := recipeIndex(t)
	before, err := searcherFor(t, idx).RunQuery(&query.PhraseQuery{Phrase: "olive oil"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	after, err := searcherFor(t, idx).RunQuery(&query.PhraseQuery{Phrase: "olive oil"})
	if err != nil {
		t.Fatalf("RunQuery error: %v", err)
	}

	if !slices.Equal(resultIDs(before), resultIDs(after)) {
		t.Errorf("flush changed results: %v vs %v", resultIDs(before), resultIDs(after))
	}
}
