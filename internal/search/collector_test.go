package search

import "testing"

func TestTopCollector_KeepsBestK(t *testing.T) {
	c := newTopCollector(3)
	for _, r := range []Result{
		{DocID: "doc1", Score: 0.2},
		{DocID: "doc2", Score: 0.9},
		{DocID: "doc3", Score: 0.5},
		{DocID: "doc4", Score: 0.7},
		{DocID: "doc5", Score: 0.1},
	} {
		c.collect(r)
	}

	results := c.results()
	want := []string{"doc2", "doc4", "doc3"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, id := range want {
		if results[i].DocID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].DocID)
		}
	}
}

func TestTopCollector_UnderCapacity(t *testing.T) {
	c := newTopCollector(10)
	c.collect(Result{DocID: "doc1", Score: 0.4})
	c.collect(Result{DocID: "doc2", Score: 0.8})

	results := c.results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocID != "doc2" || results[1].DocID != "doc1" {
		t.Errorf("expected [doc2 doc1], got [%s %s]", results[0].DocID, results[1].DocID)
	}
}

func TestTopCollector_ZeroK(t *testing.T) {
	c := newTopCollector(0)
	c.collect(Result{DocID: "doc1", Score: 1.0})

	if results := c.results(); len(results) != 0 {
		t.Errorf("expected no results with k=0, got %d", len(results))
	}
}

func TestTopCollector_EqualScoresOrderByDocID(t *testing.T) {
	c := newTopCollector(2)
	c.collect(Result{DocID: "doc3", Score: 0.5})
	c.collect(Result{DocID: "doc1", Score: 0.5})
	c.collect(Result{DocID: "doc2", Score: 0.5})

	results := c.results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocID != "doc1" || results[1].DocID != "doc2" {
		t.Errorf("expected [doc1 doc2], got [%s %s]", results[0].DocID, results[1].DocID)
	}
}
