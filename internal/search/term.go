package search

import "sift/internal/segment"

// termScorer walks one term's postings within a single reader and field.
type termScorer struct {
	it     *segment.PostingsIterator
	weight *termWeight
	reader Reader
	term   string
	field  string
	doc    int
}

func newTermScorer(postings []segment.Posting, weight *termWeight, reader Reader, term, field string) *termScorer {
	return &termScorer{
		it:     segment.NewPostingsIterator(postings),
		weight: weight,
		reader: reader,
		term:   term,
		field:  field,
		doc:    -1,
	}
}

func (s *termScorer) DocID() int { return s.doc }

func (s *termScorer) NextDoc() (int, error) {
	if s.it.Next() {
		s.doc = int(s.it.Doc())
	} else {
		s.doc = NoMoreDocs
	}
	return s.doc, nil
}

func (s *termScorer) Advance(target int) (int, error) {
	if s.doc >= target {
		return s.doc, nil
	}
	if s.it.SeekTo(uint64(target)) {
		s.doc = int(s.it.Doc())
	} else {
		s.doc = NoMoreDocs
	}
	return s.doc, nil
}

func (s *termScorer) Score() (float64, error) {
	tf := float64(s.it.Freq())
	fieldLen := float64(s.reader.FieldLength(s.field, uint64(s.doc)))
	return s.weight.score(tf, fieldLen), nil
}

// positions returns the term's token positions in the current document.
func (s *termScorer) positions() []uint64 {
	return s.it.Positions()
}

func (s *termScorer) reportTerms(doc int, add func(string)) {
	if s.doc == doc {
		add(s.term)
	}
}
