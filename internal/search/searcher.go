package search

import (
	"sift/internal/fieldcache"
	"sift/internal/index"
	"sift/internal/query"
)

// Result is a scored hit. MatchedTerms lists the index terms that matched
// the document, expansion results included. TopSearch attaches the stored
// document in Doc; the unbounded searches leave it nil.
type Result struct {
	DocID        string
	Score        float64
	Doc          map[string]any
	MatchedTerms []string

	reader Reader
	docNum uint64
}

// Searcher evaluates queries against one index snapshot.
type Searcher struct {
	snapshot *index.IndexSnapshot
	cache    *fieldcache.Cache
}

// New creates a searcher with its own field value cache.
func New(snapshot *index.IndexSnapshot) *Searcher {
	return NewWithCache(snapshot, fieldcache.New())
}

// NewWithCache creates a searcher sharing a long-lived field value cache,
// so sealed segments keep their decoded columns across snapshots.
func NewWithCache(snapshot *index.IndexSnapshot, cache *fieldcache.Cache) *Searcher {
	return &Searcher{snapshot: snapshot, cache: cache}
}

// Close releases searcher resources. The snapshot stays open; closing it
// is the caller's job.
func (s *Searcher) Close() error { return nil }

// readers returns the snapshot's read surfaces newest first, so the
// freshest version of a re-added document wins deduplication.
func (s *Searcher) readers() []Reader {
	segments := s.snapshot.Segments()
	readers := make([]Reader, 0, len(segments)+1)
	if bv := s.snapshot.BuilderView(); bv != nil {
		readers = append(readers, bv)
	}
	for i := len(segments) - 1; i >= 0; i-- {
		readers = append(readers, segments[i])
	}
	return readers
}

// RunQuery evaluates a parsed query across every reader and returns hits
// sorted by score descending.
func (s *Searcher) RunQuery(q query.Query) ([]Result, error) {
	var results []Result
	if err := s.evaluate(q, func(r Result) { results = append(results, r) }); err != nil {
		return nil, err
	}
	sortByScore(results)
	return results, nil
}

// RunQueryString parses and evaluates a query string.
func (s *Searcher) RunQueryString(queryString string) ([]Result, error) {
	q, err := query.ParseString(queryString)
	if err != nil {
		return nil, err
	}
	return s.RunQuery(q)
}

// Query parses and evaluates a query string.
func (s *Searcher) Query(queryString string) ([]Result, error) {
	return s.RunQueryString(queryString)
}

// TopSearch evaluates a query string and keeps the k best hits, stored
// documents attached. A negative k keeps everything.
func (s *Searcher) TopSearch(queryString string, k int) ([]Result, error) {
	q, err := query.ParseString(queryString)
	if err != nil {
		return nil, err
	}

	var results []Result
	if k < 0 {
		if results, err = s.RunQuery(q); err != nil {
			return nil, err
		}
	} else {
		col := newTopCollector(k)
		if err := s.evaluate(q, col.collect); err != nil {
			return nil, err
		}
		results = col.results()
	}

	if err := attachDocs(results); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluate compiles the query once and streams every deduplicated hit to
// emit, in reader order.
func (s *Searcher) evaluate(q query.Query, emit func(Result)) error {
	if q == nil {
		return nil
	}
	if err := validate(q); err != nil {
		return err
	}

	readers := s.readers()
	c := newCompiler(s.snapshot, readers, s.cache)

	seen := make(map[string]bool)
	for ri, r := range readers {
		sc, err := c.compile(q, ri)
		if err != nil {
			return err
		}
		if err := collect(sc, r, seen, emit); err != nil {
			return err
		}
	}
	return nil
}

// collect drains a primed scorer, keeping the first version seen of every
// external ID. Readers run newest first, so duplicates from older segments
// are skipped.
func collect(sc Scorer, r Reader, seen map[string]bool, emit func(Result)) error {
	if sc == nil {
		return nil
	}
	reporter, _ := sc.(termReporter)
	for d := sc.DocID(); d != NoMoreDocs; {
		score, err := sc.Score()
		if err != nil {
			return err
		}
		if extID, ok := r.ExternalID(uint64(d)); ok && !seen[extID] {
			seen[extID] = true
			res := Result{DocID: extID, Score: score, reader: r, docNum: uint64(d)}
			if reporter != nil {
				reporter.reportTerms(d, func(term string) {
					for _, t := range res.MatchedTerms {
						if t == term {
							return
						}
					}
					res.MatchedTerms = append(res.MatchedTerms, term)
				})
			}
			emit(res)
		}
		d, err = sc.NextDoc()
		if err != nil {
			return err
		}
	}
	return nil
}

// attachDocs fills each hit's stored document from the reader that
// produced it.
func attachDocs(results []Result) error {
	for i := range results {
		if results[i].reader == nil {
			continue
		}
		doc, err := results[i].reader.LoadDoc(results[i].docNum)
		if err != nil {
			return err
		}
		results[i].Doc = doc
	}
	return nil
}

// Search finds documents containing a term, in one field or all fields.
func (s *Searcher) Search(term, field string) ([]Result, error) {
	if term == "" {
		return nil, nil
	}
	return s.RunQuery(&query.TermQuery{Term: term, Field: field})
}

// AndSearch finds documents containing every term.
func (s *Searcher) AndSearch(terms []string, field string) ([]Result, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	clauses := make([]query.Query, len(terms))
	for i, t := range terms {
		clauses[i] = &query.TermQuery{Term: t, Field: field}
	}
	return s.RunQuery(&query.BoolQuery{Must: clauses})
}

// OrSearch finds documents containing any of the terms.
func (s *Searcher) OrSearch(terms []string, field string) ([]Result, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	clauses := make([]query.Query, len(terms))
	for i, t := range terms {
		clauses[i] = &query.TermQuery{Term: t, Field: field}
	}
	return s.RunQuery(&query.BoolQuery{Should: clauses})
}

// PhraseSearch finds documents containing the exact phrase.
func (s *Searcher) PhraseSearch(phrase, field string) ([]Result, error) {
	return s.RunQuery(&query.PhraseQuery{Phrase: phrase, Field: field})
}

// PrefixSearch finds documents containing a term with the given prefix.
func (s *Searcher) PrefixSearch(prefix, field string) ([]Result, error) {
	if prefix == "" {
		return nil, nil
	}
	return s.RunQuery(&query.PrefixQuery{Prefix: prefix, Field: field})
}

// RegexSearch finds documents containing a term matching the pattern.
func (s *Searcher) RegexSearch(pattern, field string) ([]Result, error) {
	return s.RunQuery(&query.RegexQuery{Pattern: pattern, Field: field})
}

// FuzzySearch finds documents containing a term within the edit distance.
func (s *Searcher) FuzzySearch(term string, fuzziness uint8, field string) ([]Result, error) {
	return s.RunQuery(&query.FuzzyQuery{Term: term, Fuzziness: fuzziness, Field: field})
}

// RangeSearch finds documents with a term inside [lower, upper]. Empty
// bounds are open.
func (s *Searcher) RangeSearch(lower, upper, field string) ([]Result, error) {
	return s.RunQuery(&query.RangeQuery{Field: field, Lower: lower, Upper: upper})
}

// DisMaxSearch merges sub-queries keeping the best score per document,
// softened by the tie breaker.
func (s *Searcher) DisMaxSearch(queries []query.Query, tieBreaker float64) ([]Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	return s.RunQuery(&query.DisMaxQuery{Queries: queries, TieBreaker: tieBreaker})
}
