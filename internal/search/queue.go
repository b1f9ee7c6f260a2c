package search

// scorerQueue is a binary min-heap of scorers ordered by current document
// number. Only scorers[:size] are live; slots past size are dead and never
// read. The heap stores positioned scorers, so the root is always the
// scorer on the smallest document.
type scorerQueue struct {
	scorers []Scorer
	size    int
}

func newScorerQueue(scorers []Scorer) *scorerQueue {
	q := &scorerQueue{
		scorers: append([]Scorer(nil), scorers...),
		size:    len(scorers),
	}
	for i := q.size/2 - 1; i >= 0; i-- {
		q.siftDown(i)
	}
	return q
}

func (q *scorerQueue) top() Scorer { return q.scorers[0] }

// siftDown restores the heap property for the subtree rooted at i,
// assuming both child subtrees already satisfy it. The left child wins
// ties, keeping sibling order deterministic.
func (q *scorerQueue) siftDown(i int) {
	for {
		smallest := i
		if l := 2*i + 1; l < q.size && q.scorers[l].DocID() < q.scorers[smallest].DocID() {
			smallest = l
		}
		if r := 2*i + 2; r < q.size && q.scorers[r].DocID() < q.scorers[smallest].DocID() {
			smallest = r
		}
		if smallest == i {
			return
		}
		q.scorers[i], q.scorers[smallest] = q.scorers[smallest], q.scorers[i]
		i = smallest
	}
}

// removeRoot drops the exhausted root scorer by moving the last live
// scorer into its place and shrinking the heap.
func (q *scorerQueue) removeRoot() {
	q.size--
	q.scorers[0] = q.scorers[q.size]
	q.scorers[q.size] = nil
	if q.size > 1 {
		q.siftDown(0)
	}
}

// matching visits every scorer positioned on doc within the subtree rooted
// at i. Scorers on the current document form a connected subtree under the
// root: a parent on a later document would violate the heap property, so
// any subtree rooted elsewhere holds no matches and is pruned whole.
func (q *scorerQueue) matching(i, doc int, visit func(Scorer) error) error {
	if i >= q.size || q.scorers[i].DocID() != doc {
		return nil
	}
	if err := visit(q.scorers[i]); err != nil {
		return err
	}
	if err := q.matching(2*i+1, doc, visit); err != nil {
		return err
	}
	return q.matching(2*i+2, doc, visit)
}
