package search

import "slices"

// phraseScorer matches documents where the phrase terms occur at adjacent,
// in-order positions in one field. The term scorers are aligned like a
// conjunction; each shared document is kept only when the position lists
// line up.
type phraseScorer struct {
	conj   *conjunctionScorer
	terms  []*termScorer
	weight *termWeight
	reader Reader
	field  string
	doc    int
}

func newPhraseScorer(terms []*termScorer, weight *termWeight, reader Reader, field string) *phraseScorer {
	scorers := make([]Scorer, len(terms))
	for i, t := range terms {
		scorers[i] = t
	}
	return &phraseScorer{
		conj:   newConjunctionScorer(scorers),
		terms:  terms,
		weight: weight,
		reader: reader,
		field:  field,
		doc:    -1,
	}
}

func (s *phraseScorer) DocID() int { return s.doc }

func (s *phraseScorer) NextDoc() (int, error) {
	if s.doc == NoMoreDocs {
		return NoMoreDocs, nil
	}
	d, err := s.conj.NextDoc()
	if err != nil {
		return 0, err
	}
	return s.toPhraseMatch(d)
}

func (s *phraseScorer) Advance(target int) (int, error) {
	if s.doc >= target {
		return s.doc, nil
	}
	d, err := s.conj.Advance(target)
	if err != nil {
		return 0, err
	}
	return s.toPhraseMatch(d)
}

func (s *phraseScorer) toPhraseMatch(d int) (int, error) {
	for d != NoMoreDocs && !s.adjacent() {
		var err error
		d, err = s.conj.NextDoc()
		if err != nil {
			return 0, err
		}
	}
	s.doc = d
	return d, nil
}

func (s *phraseScorer) adjacent() bool {
	positions := make([][]uint64, len(s.terms))
	for i, t := range s.terms {
		positions[i] = t.positions()
	}
	return phraseMatch(positions)
}

func (s *phraseScorer) Score() (float64, error) {
	fieldLen := float64(s.reader.FieldLength(s.field, uint64(s.doc)))
	return s.weight.score(1, fieldLen), nil
}

func (s *phraseScorer) reportTerms(doc int, add func(string)) {
	if s.doc != doc {
		return
	}
	for _, t := range s.terms {
		t.reportTerms(doc, add)
	}
}

// phraseMatch reports whether some start position in the first list is
// followed by consecutive positions in each later list.
func phraseMatch(positions [][]uint64) bool {
	if len(positions) == 0 {
		return false
	}
starts:
	for _, start := range positions[0] {
		for i, rest := range positions[1:] {
			if !slices.Contains(rest, start+uint64(i)+1) {
				continue starts
			}
		}
		return true
	}
	return false
}
