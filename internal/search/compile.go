package search

import (
	"fmt"
	"sort"

	"sift/internal/datetools"
	"sift/internal/fieldcache"
	"sift/internal/index"
	"sift/internal/query"
	"sift/internal/segment"
)

// compiler turns a parsed query into one scorer tree per reader. Term
// statistics are gathered across every reader up front, so a document
// scores the same no matter which segment holds it.
type compiler struct {
	snapshot *index.IndexSnapshot
	readers  []Reader
	cache    *fieldcache.Cache
	fields   []string
	entries  map[termFieldKey]*termEntry
}

type termFieldKey struct {
	term  string
	field string
}

// termEntry holds one term's postings per reader plus its document
// frequency summed over all of them.
type termEntry struct {
	perReader [][]segment.Posting
	df        uint64
}

func newCompiler(snapshot *index.IndexSnapshot, readers []Reader, cache *fieldcache.Cache) *compiler {
	var fields []string
	for _, f := range snapshot.Fields() {
		if f != segment.IDField {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return &compiler{
		snapshot: snapshot,
		readers:  readers,
		cache:    cache,
		fields:   fields,
		entries:  make(map[termFieldKey]*termEntry),
	}
}

// lookup fetches a term's postings from every reader once, memoized for
// the lifetime of the query.
func (c *compiler) lookup(term, field string) (*termEntry, error) {
	key := termFieldKey{term: term, field: field}
	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	e := &termEntry{perReader: make([][]segment.Posting, len(c.readers))}
	for i, r := range c.readers {
		postings, err := r.Postings(term, field)
		if err != nil {
			return nil, err
		}
		e.perReader[i] = postings
		e.df += uint64(len(postings))
	}
	c.entries[key] = e
	return e, nil
}

func (c *compiler) weight(df uint64, field string) *termWeight {
	return newTermWeight(c.snapshot.ScoringMode(), df, c.snapshot.TotalDocs(), c.snapshot.AvgFieldLength(field))
}

// searchFields resolves an empty field to every indexed field except the
// reserved ID field.
func (c *compiler) searchFields(field string) []string {
	if field != "" {
		return []string{field}
	}
	return c.fields
}

// queryTerm normalizes a query term the way the field was indexed. The ID
// field stores terms verbatim; everything else goes through the analyzer.
func (c *compiler) queryTerm(term, field string) string {
	if field == segment.IDField {
		return term
	}
	tokens := c.snapshot.Analyzer().Analyze(term)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0].Term
}

// prime positions a freshly built scorer on its first document. Scorers
// with no documents come back nil so parents can leave them out.
func prime(sc Scorer, err error) (Scorer, error) {
	if err != nil || sc == nil {
		return nil, err
	}
	d, err := sc.NextDoc()
	if err != nil {
		return nil, err
	}
	if d == NoMoreDocs {
		return nil, nil
	}
	return sc, nil
}

// compile builds the scorer tree for one reader, positioned on its first
// document, or nil when nothing in this reader matches.
func (c *compiler) compile(q query.Query, ri int) (Scorer, error) {
	switch q := q.(type) {
	case *query.TermQuery:
		return c.compileTerm(q.Term, q.Field, ri)
	case *query.PhraseQuery:
		return c.compilePhrase(q.Phrase, q.Field, ri)
	case *query.PrefixQuery:
		return c.compileMultiTerm(q.Field, ri, func(r Reader, f string) ([]string, error) {
			return r.PrefixTerms(q.Prefix, f)
		})
	case *query.RegexQuery:
		return c.compileMultiTerm(q.Field, ri, func(r Reader, f string) ([]string, error) {
			return r.MatchingTerms(q.Pattern, f)
		})
	case *query.FuzzyQuery:
		return c.compileMultiTerm(q.Field, ri, func(r Reader, f string) ([]string, error) {
			return r.FuzzyTerms(q.Term, q.Fuzziness, f)
		})
	case *query.RangeQuery:
		return c.compileRange(q, ri)
	case *query.BoolQuery:
		return c.compileBool(q, ri)
	case *query.DisMaxQuery:
		return c.compileDisMax(q, ri)
	case *query.MatchAllQuery:
		return prime(newMatchAllScorer(c.readers[ri]), nil)
	case *query.MatchNoneQuery:
		return nil, nil
	case *query.FieldScoreQuery:
		return c.compileFieldScore(q.Field, ri)
	default:
		return nil, fmt.Errorf("unsupported query type %T", q)
	}
}

func (c *compiler) compileTerm(term, field string, ri int) (Scorer, error) {
	fields := c.searchFields(field)
	scorers := make([]Scorer, 0, len(fields))
	for _, f := range fields {
		sc, err := c.termScorerFor(c.queryTerm(term, f), f, ri)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			scorers = append(scorers, sc)
		}
	}
	return c.combineFields(scorers)
}

// termScorerFor builds a primed leaf scorer for an index term, or nil when
// the reader holds no postings for it.
func (c *compiler) termScorerFor(term, field string, ri int) (Scorer, error) {
	if term == "" {
		return nil, nil
	}
	entry, err := c.lookup(term, field)
	if err != nil {
		return nil, err
	}
	postings := entry.perReader[ri]
	if len(postings) == 0 {
		return nil, nil
	}
	return prime(newTermScorer(postings, c.weight(entry.df, field), c.readers[ri], term, field), nil)
}

// combineFields merges the per-field scorers of one clause. The best field
// wins, softened by the configured tie breaker.
func (c *compiler) combineFields(scorers []Scorer) (Scorer, error) {
	switch len(scorers) {
	case 0:
		return nil, nil
	case 1:
		return scorers[0], nil
	}
	return prime(NewDisjunctionMaxScorer(scorers, c.snapshot.TieBreaker()), nil)
}

// combineOr merges scorers with summed scores: a disjunction whose tie
// breaker is 1 keeps every contribution.
func combineOr(scorers []Scorer) (Scorer, error) {
	switch len(scorers) {
	case 0:
		return nil, nil
	case 1:
		return scorers[0], nil
	}
	return prime(NewDisjunctionMaxScorer(scorers, 1.0), nil)
}

// compileMultiTerm expands a term surface (prefix, regex, fuzzy, range)
// against the reader's dictionary and merges the expanded terms like an
// OR. Expanded terms are index terms already; they skip the analyzer.
func (c *compiler) compileMultiTerm(field string, ri int, expand func(Reader, string) ([]string, error)) (Scorer, error) {
	var perField []Scorer
	for _, f := range c.searchFields(field) {
		terms, err := expand(c.readers[ri], f)
		if err != nil {
			return nil, err
		}
		scorers := make([]Scorer, 0, len(terms))
		for _, term := range terms {
			sc, err := c.termScorerFor(term, f, ri)
			if err != nil {
				return nil, err
			}
			if sc != nil {
				scorers = append(scorers, sc)
			}
		}
		sc, err := combineOr(scorers)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			perField = append(perField, sc)
		}
	}
	return c.combineFields(perField)
}

func (c *compiler) compileRange(q *query.RangeQuery, ri int) (Scorer, error) {
	lower, upper := q.Lower, q.Upper
	if q.Field != "" {
		if res, ok := c.snapshot.DateResolution(q.Field); ok {
			var err error
			if lower, err = encodeDateBound(lower, res); err != nil {
				return nil, err
			}
			if upper, err = encodeDateBound(upper, res); err != nil {
				return nil, err
			}
		}
	}
	return c.compileMultiTerm(q.Field, ri, func(r Reader, f string) ([]string, error) {
		return r.TermRange(lower, upper, f)
	})
}

// encodeDateBound turns a range bound on a date-mapped field into the
// sortable form the field's values are indexed at. Empty bounds stay open;
// bounds already in encoded form pass through the encoded-form parser.
func encodeDateBound(bound string, res datetools.Resolution) (string, error) {
	if bound == "" {
		return "", nil
	}
	t, err := datetools.ParseInput(bound)
	if err != nil {
		if t, err = datetools.Parse(bound); err != nil {
			return "", fmt.Errorf("range bound %q: not a recognized date", bound)
		}
	}
	return datetools.Format(t, res), nil
}

func (c *compiler) compileBool(q *query.BoolQuery, ri int) (Scorer, error) {
	must, should, mustNot := normalizeBool(q)

	musts := make([]Scorer, 0, len(must))
	for _, clause := range must {
		sc, err := c.compile(clause, ri)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			return nil, nil
		}
		musts = append(musts, sc)
	}

	shoulds := make([]Scorer, 0, len(should))
	for _, clause := range should {
		sc, err := c.compile(clause, ri)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			shoulds = append(shoulds, sc)
		}
	}

	var positive Scorer
	var err error
	switch {
	case len(musts) > 0:
		positive = musts[0]
		if len(musts) > 1 {
			positive, err = prime(newConjunctionScorer(musts), nil)
			if err != nil {
				return nil, err
			}
		}
		if positive != nil && len(shoulds) > 0 {
			var opt Scorer
			opt, err = combineOr(shoulds)
			if err != nil {
				return nil, err
			}
			if opt != nil {
				positive, err = prime(newReqOptScorer(positive, opt), nil)
				if err != nil {
					return nil, err
				}
			}
		}
	case len(shoulds) > 0:
		positive, err = combineOr(shoulds)
		if err != nil {
			return nil, err
		}
	}
	if positive == nil {
		return nil, nil
	}

	if len(mustNot) > 0 {
		excls := make([]Scorer, 0, len(mustNot))
		for _, clause := range mustNot {
			sc, err := c.compile(clause, ri)
			if err != nil {
				return nil, err
			}
			if sc != nil {
				excls = append(excls, sc)
			}
		}
		excl, err := combineOr(excls)
		if err != nil {
			return nil, err
		}
		if excl != nil {
			return prime(newReqExclScorer(positive, excl), nil)
		}
	}
	return positive, nil
}

func (c *compiler) compileDisMax(q *query.DisMaxQuery, ri int) (Scorer, error) {
	scorers := make([]Scorer, 0, len(q.Queries))
	for _, sub := range q.Queries {
		sc, err := c.compile(sub, ri)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			scorers = append(scorers, sc)
		}
	}
	switch len(scorers) {
	case 0:
		return nil, nil
	case 1:
		return scorers[0], nil
	}
	return prime(NewDisjunctionMaxScorer(scorers, q.TieBreaker), nil)
}

func (c *compiler) compileFieldScore(field string, ri int) (Scorer, error) {
	values, err := c.cache.Floats(c.readers[ri], field, nil)
	if err != nil {
		return nil, err
	}
	return prime(newFieldValueScorer(c.readers[ri], values), nil)
}

func (c *compiler) compilePhrase(phrase, field string, ri int) (Scorer, error) {
	tokens := c.snapshot.Analyzer().Analyze(phrase)
	if len(tokens) == 0 {
		return nil, nil
	}
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	if len(terms) == 1 {
		return c.compileTerm(terms[0], field, ri)
	}

	var perField []Scorer
	for _, f := range c.searchFields(field) {
		sc, err := c.phraseScorerFor(terms, f, ri)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			perField = append(perField, sc)
		}
	}
	return c.combineFields(perField)
}

// phraseScorerFor builds a primed phrase scorer over one field, or nil
// when any phrase term is absent from the reader. The phrase scores with
// the rarest term's document frequency.
func (c *compiler) phraseScorerFor(terms []string, field string, ri int) (Scorer, error) {
	termScorers := make([]*termScorer, len(terms))
	var rarest uint64
	for i, term := range terms {
		entry, err := c.lookup(term, field)
		if err != nil {
			return nil, err
		}
		postings := entry.perReader[ri]
		if len(postings) == 0 {
			return nil, nil
		}
		if i == 0 || entry.df < rarest {
			rarest = entry.df
		}
		ts := newTermScorer(postings, c.weight(entry.df, field), c.readers[ri], term, field)
		if _, err := ts.NextDoc(); err != nil {
			return nil, err
		}
		termScorers[i] = ts
	}
	return prime(newPhraseScorer(termScorers, c.weight(rarest, field), c.readers[ri], field), nil)
}

// normalizeBool hoists clauses the parser nests as purely negative
// sub-queries, so `a AND NOT b` excludes b at this level instead of
// requiring an empty nested query.
func normalizeBool(q *query.BoolQuery) (must, should, mustNot []query.Query) {
	mustNot = append(mustNot, q.MustNot...)
	for _, clause := range q.Must {
		if neg, ok := pureNegative(clause); ok {
			mustNot = append(mustNot, neg...)
			continue
		}
		must = append(must, clause)
	}
	for _, clause := range q.Should {
		if neg, ok := pureNegative(clause); ok {
			mustNot = append(mustNot, neg...)
			continue
		}
		should = append(should, clause)
	}
	return must, should, mustNot
}

// pureNegative reports whether a query is a bool carrying only MustNot
// clauses, returning them for hoisting.
func pureNegative(q query.Query) ([]query.Query, bool) {
	bq, ok := q.(*query.BoolQuery)
	if !ok || len(bq.Must) > 0 || len(bq.Should) > 0 || len(bq.MustNot) == 0 {
		return nil, false
	}
	return bq.MustNot, true
}

// validate rejects query shapes that cannot match by construction, before
// any reader work happens.
func validate(q query.Query) error {
	switch q := q.(type) {
	case *query.BoolQuery:
		must, should, mustNot := normalizeBool(q)
		if len(must) == 0 && len(should) == 0 && len(mustNot) > 0 {
			return fmt.Errorf("query contains only excluded clauses")
		}
		for _, clause := range must {
			if err := validate(clause); err != nil {
				return err
			}
		}
		for _, clause := range should {
			if err := validate(clause); err != nil {
				return err
			}
		}
	case *query.DisMaxQuery:
		for _, sub := range q.Queries {
			if err := validate(sub); err != nil {
				return err
			}
		}
	}
	return nil
}
