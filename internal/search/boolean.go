package search

// reqExclScorer iterates the required scorer, skipping any document the
// exclusion iterator also lands on. Scores come from the required scorer
// alone.
type reqExclScorer struct {
	req  Scorer
	excl DocIterator
	doc  int
}

func newReqExclScorer(req Scorer, excl DocIterator) *reqExclScorer {
	return &reqExclScorer{req: req, excl: excl, doc: -1}
}

func (s *reqExclScorer) DocID() int { return s.doc }

func (s *reqExclScorer) NextDoc() (int, error) {
	if s.doc == NoMoreDocs {
		return NoMoreDocs, nil
	}
	if s.doc == -1 {
		return s.toNonExcluded(s.req.DocID())
	}
	d, err := s.req.NextDoc()
	if err != nil {
		return 0, err
	}
	return s.toNonExcluded(d)
}

func (s *reqExclScorer) Advance(target int) (int, error) {
	if s.doc >= target {
		return s.doc, nil
	}
	d, err := s.req.Advance(target)
	if err != nil {
		return 0, err
	}
	return s.toNonExcluded(d)
}

// toNonExcluded walks the required stream from d until a document the
// exclusion iterator does not match. The exclusion iterator only ever
// advances, so each side is scanned at most once overall.
func (s *reqExclScorer) toNonExcluded(d int) (int, error) {
	for d != NoMoreDocs {
		ex := s.excl.DocID()
		if ex < d {
			var err error
			ex, err = s.excl.Advance(d)
			if err != nil {
				return 0, err
			}
		}
		if ex != d {
			break
		}
		var err error
		d, err = s.req.NextDoc()
		if err != nil {
			return 0, err
		}
	}
	s.doc = d
	return d, nil
}

func (s *reqExclScorer) Score() (float64, error) {
	return s.req.Score()
}

func (s *reqExclScorer) reportTerms(doc int, add func(string)) {
	forwardTerms(s.req, doc, add)
}

// reqOptScorer follows the required scorer's document stream and folds the
// optional scorer's score in whenever it matches the same document.
type reqOptScorer struct {
	req Scorer
	opt Scorer
	doc int
}

func newReqOptScorer(req, opt Scorer) *reqOptScorer {
	return &reqOptScorer{req: req, opt: opt, doc: -1}
}

func (s *reqOptScorer) DocID() int { return s.doc }

func (s *reqOptScorer) NextDoc() (int, error) {
	if s.doc == NoMoreDocs {
		return NoMoreDocs, nil
	}
	if s.doc == -1 {
		s.doc = s.req.DocID()
		return s.doc, nil
	}
	d, err := s.req.NextDoc()
	if err != nil {
		return 0, err
	}
	s.doc = d
	return d, nil
}

func (s *reqOptScorer) Advance(target int) (int, error) {
	if s.doc >= target {
		return s.doc, nil
	}
	d, err := s.req.Advance(target)
	if err != nil {
		return 0, err
	}
	s.doc = d
	return d, nil
}

// Score adds the optional score when the optional stream holds the current
// document. Advancing the optional scorer here is safe and keeps Score
// idempotent: it never moves past the current document on a repeat call.
func (s *reqOptScorer) Score() (float64, error) {
	score, err := s.req.Score()
	if err != nil {
		return 0, err
	}
	if s.opt.DocID() < s.doc {
		if _, err := s.opt.Advance(s.doc); err != nil {
			return 0, err
		}
	}
	if s.opt.DocID() == s.doc {
		opt, err := s.opt.Score()
		if err != nil {
			return 0, err
		}
		score += opt
	}
	return score, nil
}

// reportTerms includes the optional side only when it sits on the current
// document, which Score has already advanced it to when it matches.
func (s *reqOptScorer) reportTerms(doc int, add func(string)) {
	forwardTerms(s.req, doc, add)
	if s.opt.DocID() == doc {
		forwardTerms(s.opt, doc, add)
	}
}
