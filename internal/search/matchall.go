package search

// matchAllScorer yields every live document of one reader with a constant
// score of 1.
type matchAllScorer struct {
	reader Reader
	maxDoc int
	doc    int
}

func newMatchAllScorer(reader Reader) *matchAllScorer {
	return &matchAllScorer{reader: reader, maxDoc: int(reader.MaxDoc()), doc: -1}
}

func (s *matchAllScorer) DocID() int { return s.doc }

func (s *matchAllScorer) NextDoc() (int, error) {
	return s.skipDeleted(s.doc + 1)
}

func (s *matchAllScorer) Advance(target int) (int, error) {
	if s.doc >= target {
		return s.doc, nil
	}
	return s.skipDeleted(target)
}

func (s *matchAllScorer) skipDeleted(d int) (int, error) {
	for d < s.maxDoc && s.reader.IsDeleted(uint64(d)) {
		d++
	}
	if d >= s.maxDoc {
		s.doc = NoMoreDocs
	} else {
		s.doc = d
	}
	return s.doc, nil
}

func (s *matchAllScorer) Score() (float64, error) { return 1, nil }

// fieldValueScorer yields every live document, scored by the document's
// numeric value for one field. Documents without a parsable value score
// zero.
type fieldValueScorer struct {
	all    *matchAllScorer
	values []float64
}

func newFieldValueScorer(reader Reader, values []float64) *fieldValueScorer {
	return &fieldValueScorer{all: newMatchAllScorer(reader), values: values}
}

func (s *fieldValueScorer) DocID() int { return s.all.DocID() }

func (s *fieldValueScorer) NextDoc() (int, error) { return s.all.NextDoc() }

func (s *fieldValueScorer) Advance(target int) (int, error) { return s.all.Advance(target) }

func (s *fieldValueScorer) Score() (float64, error) {
	return s.values[s.all.DocID()], nil
}
