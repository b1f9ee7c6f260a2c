package search

import "testing"

func TestSortByScore(t *testing.T) {
	results := []Result{
		{DocID: "doc1", Score: 0.5},
		{DocID: "doc2", Score: 2.0},
		{DocID: "doc3", Score: 1.0},
	}

	sortByScore(results)

	want := []string{"doc2", "doc3", "doc1"}
	for i, id := range want {
		if results[i].DocID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].DocID)
		}
	}
}

func TestSortByScore_Empty(t *testing.T) {
	var results []Result
	sortByScore(results)
	if len(results) != 0 {
		t.Errorf("expected empty slice to stay empty")
	}
}
