package search

import (
	"errors"
	"testing"
)

// fakeScorer replays a fixed list of scored documents through the Scorer
// contract. failPos, when non-negative, makes any advance into that
// position fail with failErr while staying put, so retries fail again.
type fakeScorer struct {
	docs    []int
	scores  []float64
	pos     int
	failPos int
	failErr error
}

func newFakeScorer(docs []int, scores []float64) *fakeScorer {
	return &fakeScorer{docs: docs, scores: scores, pos: -1, failPos: -1}
}

// primedFakeScorer returns a fake already positioned on its first document.
func primedFakeScorer(t *testing.T, docs []int, scores []float64) *fakeScorer {
	t.Helper()
	f := newFakeScorer(docs, scores)
	if _, err := f.NextDoc(); err != nil {
		t.Fatalf("NextDoc error: %v", err)
	}
	return f
}

func (f *fakeScorer) DocID() int {
	if f.pos < 0 {
		return -1
	}
	if f.pos >= len(f.docs) {
		return NoMoreDocs
	}
	return f.docs[f.pos]
}

func (f *fakeScorer) NextDoc() (int, error) {
	if f.failPos >= 0 && f.pos+1 == f.failPos {
		return 0, f.failErr
	}
	if f.pos < len(f.docs) {
		f.pos++
	}
	return f.DocID(), nil
}

func (f *fakeScorer) Advance(target int) (int, error) {
	for f.DocID() < target {
		if _, err := f.NextDoc(); err != nil {
			return 0, err
		}
	}
	return f.DocID(), nil
}

func (f *fakeScorer) Score() (float64, error) {
	return f.scores[f.pos], nil
}

// checkHeap verifies every live parent is on a document no later than its
// children.
func checkHeap(t *testing.T, q *scorerQueue) {
	t.Helper()
	for i := 0; i < q.size; i++ {
		for _, c := range []int{2*i + 1, 2*i + 2} {
			if c < q.size && q.scorers[c].DocID() < q.scorers[i].DocID() {
				t.Fatalf("heap violated: parent %d at doc %d, child %d at doc %d",
					i, q.scorers[i].DocID(), c, q.scorers[c].DocID())
			}
		}
	}
}

func TestScorerQueue_HeapifyOrdersRoot(t *testing.T) {
	scorers := []Scorer{
		primedFakeScorer(t, []int{9}, []float64{1}),
		primedFakeScorer(t, []int{3}, []float64{1}),
		primedFakeScorer(t, []int{7}, []float64{1}),
		primedFakeScorer(t, []int{1}, []float64{1}),
		primedFakeScorer(t, []int{5}, []float64{1}),
	}

	q := newScorerQueue(scorers)

	if got := q.top().DocID(); got != 1 {
		t.Errorf("expected root at doc 1, got %d", got)
	}
	checkHeap(t, q)
}

func TestScorerQueue_HeapifyDoesNotMoveScorers(t *testing.T) {
	a := primedFakeScorer(t, []int{4}, []float64{1})
	b := primedFakeScorer(t, []int{2}, []float64{1})

	newScorerQueue([]Scorer{a, b})

	if a.DocID() != 4 || b.DocID() != 2 {
		t.Error("heapify must reorder scorers without advancing them")
	}
}

func TestScorerQueue_SiftDownLeftWinsTies(t *testing.T) {
	root := primedFakeScorer(t, []int{5}, []float64{1})
	left := primedFakeScorer(t, []int{2}, []float64{1})
	right := primedFakeScorer(t, []int{2}, []float64{1})

	q := newScorerQueue([]Scorer{root, left, right})

	if q.scorers[0] != left {
		t.Error("expected left child to win the tie for the root slot")
	}
	checkHeap(t, q)
}

func TestScorerQueue_RemoveRootShrinks(t *testing.T) {
	scorers := []Scorer{
		primedFakeScorer(t, []int{1}, []float64{1}),
		primedFakeScorer(t, []int{3}, []float64{1}),
		primedFakeScorer(t, []int{2}, []float64{1}),
	}
	q := newScorerQueue(scorers)

	q.removeRoot()

	if q.size != 2 {
		t.Fatalf("expected size 2 after removeRoot, got %d", q.size)
	}
	if q.scorers[2] != nil {
		t.Error("dead slot should be cleared")
	}
	if got := q.top().DocID(); got != 2 {
		t.Errorf("expected new root at doc 2, got %d", got)
	}
	checkHeap(t, q)
}

func TestScorerQueue_RemoveLastScorer(t *testing.T) {
	q := newScorerQueue([]Scorer{primedFakeScorer(t, []int{1}, []float64{1})})

	q.removeRoot()

	if q.size != 0 {
		t.Errorf("expected empty queue, got size %d", q.size)
	}
}

func TestScorerQueue_MatchingVisitsAllOnDoc(t *testing.T) {
	scorers := []Scorer{
		primedFakeScorer(t, []int{1}, []float64{1}),
		primedFakeScorer(t, []int{1}, []float64{1}),
		primedFakeScorer(t, []int{2}, []float64{1}),
		primedFakeScorer(t, []int{1}, []float64{1}),
	}
	q := newScorerQueue(scorers)

	var visited int
	err := q.matching(0, 1, func(Scorer) error {
		visited++
		return nil
	})
	if err != nil {
		t.Fatalf("matching error: %v", err)
	}
	if visited != 3 {
		t.Errorf("expected 3 scorers visited on doc 1, got %d", visited)
	}
}

func TestScorerQueue_MatchingPrunesSubtrees(t *testing.T) {
	// Hand-built layout: the node at index 1 sits on a later document, so
	// its whole subtree is skipped even where deeper nodes look relevant.
	q := &scorerQueue{
		scorers: []Scorer{
			primedFakeScorer(t, []int{1}, []float64{1}),
			primedFakeScorer(t, []int{2}, []float64{1}),
			primedFakeScorer(t, []int{1}, []float64{1}),
			primedFakeScorer(t, []int{1}, []float64{1}),
		},
		size: 4,
	}

	var visited int
	if err := q.matching(0, 1, func(Scorer) error {
		visited++
		return nil
	}); err != nil {
		t.Fatalf("matching error: %v", err)
	}
	if visited != 2 {
		t.Errorf("expected pruning to visit 2 scorers, got %d", visited)
	}
}

func TestScorerQueue_MatchingStopsOnError(t *testing.T) {
	scorers := []Scorer{
		primedFakeScorer(t, []int{1}, []float64{1}),
		primedFakeScorer(t, []int{1}, []float64{1}),
		primedFakeScorer(t, []int{1}, []float64{1}),
	}
	q := newScorerQueue(scorers)

	wantErr := errors.New("visit failed")
	var visited int
	err := q.matching(0, 1, func(Scorer) error {
		visited++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected visit error, got %v", err)
	}
	if visited != 1 {
		t.Errorf("expected walk to stop after first error, visited %d", visited)
	}
}
