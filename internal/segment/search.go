package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/couchbase/vellum"
	"github.com/couchbase/vellum/levenshtein"
	"github.com/couchbase/vellum/regexp"
)

// dict returns the term dictionary for a field, loading it on first use.
func (s *Segment) dict(field string) (*vellum.FST, error) {
	s.fstMu.RLock()
	fst, ok := s.fstCache[field]
	s.fstMu.RUnlock()
	if ok {
		return fst, nil
	}

	s.fstMu.Lock()
	defer s.fstMu.Unlock()
	if fst, ok := s.fstCache[field]; ok {
		return fst, nil
	}

	fst, err := s.loadDict(field)
	if err != nil {
		return nil, err
	}
	s.fstCache[field] = fst
	return fst, nil
}

// loadDict maps a field's term dictionary, an 8-byte length prefix
// followed by the vellum data.
func (s *Segment) loadDict(field string) (*vellum.FST, error) {
	fm, ok := s.fieldMeta[field]
	if !ok {
		return nil, fmt.Errorf("no such field: %s", field)
	}

	n := binary.BigEndian.Uint64(s.mapped[fm.DictOffset:])
	at := fm.DictOffset + 8

	fst, err := vellum.Load(s.mapped[at : at+n])
	if err != nil {
		return nil, fmt.Errorf("term dictionary for %s: %w", field, err)
	}
	return fst, nil
}

// Postings returns the posting list for a term in a field, with deleted
// docNums filtered out. A missing field or term yields nil, not an error.
func (s *Segment) Postings(term, field string, deleted *roaring.Bitmap) ([]Posting, error) {
	fm, ok := s.fieldMeta[field]
	if !ok {
		return nil, nil
	}

	fst, err := s.dict(field)
	if err != nil {
		return nil, err
	}
	val, exists, err := fst.Get([]byte(term))
	if err != nil || !exists {
		return nil, err
	}

	if IsOneHit(val) {
		doc := DecodeOneHit(val)
		if deleted != nil && deleted.Contains(uint32(doc)) {
			return nil, nil
		}
		return []Posting{{DocNum: doc, Frequency: 1, Positions: []uint64{0}}}, nil
	}

	postings, err := DecodePostings(s.mapped[fm.PostingsOffset+val:])
	if err != nil {
		return nil, err
	}
	return pruneDeleted(postings, deleted), nil
}

// pruneDeleted filters deleted docNums out of a posting list in place.
func pruneDeleted(postings []Posting, deleted *roaring.Bitmap) []Posting {
	if deleted == nil || deleted.IsEmpty() {
		return postings
	}
	kept := postings[:0]
	for _, p := range postings {
		if !deleted.Contains(uint32(p.DocNum)) {
			kept = append(kept, p)
		}
	}
	return kept
}

// drain walks a vellum iterator to completion, treating ErrIteratorDone
// as the normal end.
func drain(it *vellum.FSTIterator, err error) ([]string, error) {
	if err == vellum.ErrIteratorDone {
		return nil, nil
	}

	var terms []string
	for err == nil {
		term, _ := it.Current()
		terms = append(terms, string(term))
		err = it.Next()
	}
	if err != vellum.ErrIteratorDone {
		return nil, err
	}
	return terms, nil
}

// acceptedTerms returns every term in a field the automaton accepts.
func (s *Segment) acceptedTerms(field string, aut vellum.Automaton) ([]string, error) {
	if _, ok := s.fieldMeta[field]; !ok {
		return nil, nil
	}
	fst, err := s.dict(field)
	if err != nil {
		return nil, err
	}
	return drain(fst.Search(aut, nil, nil))
}

// MatchingTerms returns the terms in a field matching a regex pattern.
func (s *Segment) MatchingTerms(pattern, field string) ([]string, error) {
	aut, err := regexp.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return s.acceptedTerms(field, aut)
}

// FuzzyTerms returns the terms in a field within plain Levenshtein edit
// distance of term. Transpositions count as two edits, matching the
// in-memory builder's distance.
func (s *Segment) FuzzyTerms(term string, fuzziness uint8, field string) ([]string, error) {
	lb, err := levenshtein.NewLevenshteinAutomatonBuilder(fuzziness, false)
	if err != nil {
		return nil, fmt.Errorf("levenshtein builder: %w", err)
	}
	aut, err := lb.BuildDfa(term, fuzziness)
	if err != nil {
		return nil, fmt.Errorf("fuzzy automaton for %q: %w", term, err)
	}
	return s.acceptedTerms(field, aut)
}

// PrefixTerms returns the terms in a field starting with prefix, via a
// range scan bounded by the next string past the prefix.
func (s *Segment) PrefixTerms(prefix, field string) ([]string, error) {
	if _, ok := s.fieldMeta[field]; !ok {
		return nil, nil
	}
	fst, err := s.dict(field)
	if err != nil {
		return nil, err
	}

	from := []byte(prefix)
	return drain(fst.Iterator(from, afterPrefix(from)))
}

// TermRange returns the terms in a field within [lower, upper], both
// bounds inclusive. An empty bound leaves that side open.
func (s *Segment) TermRange(lower, upper, field string) ([]string, error) {
	if _, ok := s.fieldMeta[field]; !ok {
		return nil, nil
	}
	fst, err := s.dict(field)
	if err != nil {
		return nil, err
	}

	var from, to []byte
	if lower != "" {
		from = []byte(lower)
	}
	if upper != "" {
		to = afterKey([]byte(upper))
	}
	return drain(fst.Iterator(from, to))
}

// Terms returns every term in a field, sorted.
func (s *Segment) Terms(field string) ([]string, error) {
	return s.TermRange("", "", field)
}
