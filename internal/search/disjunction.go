package search

// DisjunctionMaxScorer merges positioned sub-scorers into one ascending
// document stream. A document matching several sub-scorers appears once,
// scored as the best sub-score plus tieBreaker times the sum of the rest:
// 0 keeps only the best match, 1 sums every match.
type DisjunctionMaxScorer struct {
	queue      *scorerQueue
	tieBreaker float64
	doc        int
}

// NewDisjunctionMaxScorer builds the merge over sub-scorers already
// positioned on their first document. Sub-scorers with no documents must
// be left out by the caller; an empty set is a valid merge that exhausts
// on the first advance.
func NewDisjunctionMaxScorer(scorers []Scorer, tieBreaker float64) *DisjunctionMaxScorer {
	return &DisjunctionMaxScorer{
		queue:      newScorerQueue(scorers),
		tieBreaker: tieBreaker,
		doc:        -1,
	}
}

func (s *DisjunctionMaxScorer) DocID() int { return s.doc }

// NextDoc advances every sub-scorer still sitting on the current document
// and adopts the smallest position among the survivors. A failing
// sub-scorer stays in the queue; dropping it would silently narrow the
// union.
func (s *DisjunctionMaxScorer) NextDoc() (int, error) {
	for s.queue.size > 0 && s.queue.top().DocID() == s.doc {
		d, err := s.queue.top().NextDoc()
		if err != nil {
			return 0, err
		}
		if d == NoMoreDocs {
			s.queue.removeRoot()
		} else {
			s.queue.siftDown(0)
		}
	}
	if s.queue.size == 0 {
		s.doc = NoMoreDocs
	} else {
		s.doc = s.queue.top().DocID()
	}
	return s.doc, nil
}

// Advance moves to the first merged document at or past target.
func (s *DisjunctionMaxScorer) Advance(target int) (int, error) {
	for s.queue.size > 0 && s.queue.top().DocID() < target {
		d, err := s.queue.top().Advance(target)
		if err != nil {
			return 0, err
		}
		if d == NoMoreDocs {
			s.queue.removeRoot()
		} else {
			s.queue.siftDown(0)
		}
	}
	if s.queue.size == 0 {
		s.doc = NoMoreDocs
	} else {
		s.doc = s.queue.top().DocID()
	}
	return s.doc, nil
}

// Score combines the sub-scores of every scorer on the current document.
// The walk relies on the heap being valid for this position, which holds
// between advances because every mutation ends in a sift or a removal.
func (s *DisjunctionMaxScorer) Score() (float64, error) {
	var sum, best float64
	first := true
	err := s.queue.matching(0, s.doc, func(sub Scorer) error {
		sc, err := sub.Score()
		if err != nil {
			return err
		}
		sum += sc
		if first || sc > best {
			best = sc
			first = false
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return best + (sum-best)*s.tieBreaker, nil
}

// reportTerms visits only the sub-scorers on the current document, the
// same subtree the score walk covers.
func (s *DisjunctionMaxScorer) reportTerms(doc int, add func(string)) {
	s.queue.matching(0, doc, func(sub Scorer) error {
		forwardTerms(sub, doc, add)
		return nil
	})
}
