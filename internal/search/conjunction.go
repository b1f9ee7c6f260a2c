package search

// conjunctionScorer matches the documents present in every sub-scorer,
// scored as the sum of the sub-scores.
type conjunctionScorer struct {
	scorers []Scorer
	doc     int
}

// newConjunctionScorer takes sub-scorers already positioned on their first
// document.
func newConjunctionScorer(scorers []Scorer) *conjunctionScorer {
	return &conjunctionScorer{scorers: scorers, doc: -1}
}

func (s *conjunctionScorer) DocID() int { return s.doc }

func (s *conjunctionScorer) NextDoc() (int, error) {
	if s.doc == NoMoreDocs {
		return NoMoreDocs, nil
	}
	if s.doc == -1 {
		return s.align(s.maxCurrent())
	}
	d, err := s.scorers[0].NextDoc()
	if err != nil {
		return 0, err
	}
	return s.align(d)
}

func (s *conjunctionScorer) Advance(target int) (int, error) {
	if s.doc >= target {
		return s.doc, nil
	}
	return s.align(target)
}

func (s *conjunctionScorer) maxCurrent() int {
	doc := s.scorers[0].DocID()
	for _, sc := range s.scorers[1:] {
		if d := sc.DocID(); d > doc {
			doc = d
		}
	}
	return doc
}

// align leapfrogs the sub-scorers to the first document they all share at
// or past candidate. Whenever one overshoots, the candidate jumps to its
// position and the scan restarts.
func (s *conjunctionScorer) align(candidate int) (int, error) {
	for candidate != NoMoreDocs {
		agreed := true
		for _, sc := range s.scorers {
			d := sc.DocID()
			if d < candidate {
				var err error
				d, err = sc.Advance(candidate)
				if err != nil {
					return 0, err
				}
			}
			if d > candidate {
				candidate = d
				agreed = false
				break
			}
		}
		if agreed {
			break
		}
	}
	s.doc = candidate
	return candidate, nil
}

func (s *conjunctionScorer) Score() (float64, error) {
	var sum float64
	for _, sc := range s.scorers {
		sub, err := sc.Score()
		if err != nil {
			return 0, err
		}
		sum += sub
	}
	return sum, nil
}

func (s *conjunctionScorer) reportTerms(doc int, add func(string)) {
	for _, sc := range s.scorers {
		forwardTerms(sc, doc, add)
	}
}
