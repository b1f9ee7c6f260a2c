package query

import (
	"fmt"
	"strings"
)

// Query is a node in a parsed query tree.
type Query interface {
	isQuery()
	String() string
}

// scoped prefixes body with "field:" when the query names a field.
func scoped(field, body string) string {
	if field == "" {
		return body
	}
	return field + ":" + body
}

// joinQueries renders sub-queries as a comma-separated list.
func joinQueries(queries []Query) string {
	parts := make([]string, len(queries))
	for i, q := range queries {
		parts[i] = q.String()
	}
	return strings.Join(parts, ", ")
}

// MatchAllQuery matches every live document.
type MatchAllQuery struct{}

func (q *MatchAllQuery) isQuery() {}

func (q *MatchAllQuery) String() string { return "matchall" }

// MatchNoneQuery matches nothing.
type MatchNoneQuery struct{}

func (q *MatchNoneQuery) isQuery() {}

func (q *MatchNoneQuery) String() string { return "matchnone" }

// TermQuery matches documents containing a single term.
type TermQuery struct {
	Field string
	Term  string
}

func (q *TermQuery) isQuery() {}

func (q *TermQuery) String() string {
	return "term(" + scoped(q.Field, q.Term) + ")"
}

// PhraseQuery matches documents containing the terms of Phrase in
// adjacent positions.
type PhraseQuery struct {
	Field  string
	Phrase string
}

func (q *PhraseQuery) isQuery() {}

func (q *PhraseQuery) String() string {
	return "phrase(" + scoped(q.Field, `"`+q.Phrase+`"`) + ")"
}

// PrefixQuery matches documents containing any term that starts with
// Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

func (q *PrefixQuery) isQuery() {}

func (q *PrefixQuery) String() string {
	return "prefix(" + scoped(q.Field, q.Prefix+"*") + ")"
}

// RegexQuery matches documents containing any term the pattern accepts.
type RegexQuery struct {
	Field   string
	Pattern string
}

func (q *RegexQuery) isQuery() {}

func (q *RegexQuery) String() string {
	return "regex(" + scoped(q.Field, "/"+q.Pattern+"/") + ")"
}

// FuzzyQuery matches documents containing any term within Fuzziness
// edits of Term.
type FuzzyQuery struct {
	Field     string
	Term      string
	Fuzziness uint8
}

func (q *FuzzyQuery) isQuery() {}

func (q *FuzzyQuery) String() string {
	return "fuzzy(" + scoped(q.Field, fmt.Sprintf("%s~%d", q.Term, q.Fuzziness)) + ")"
}

// RangeQuery matches documents containing any term within [Lower, Upper].
// An empty bound is open. Date fields compare on their encoded form, so
// bounds accept the same date inputs documents do.
type RangeQuery struct {
	Field string
	Lower string
	Upper string
}

func (q *RangeQuery) isQuery() {}

func (q *RangeQuery) String() string {
	lower, upper := q.Lower, q.Upper
	if lower == "" {
		lower = "*"
	}
	if upper == "" {
		upper = "*"
	}
	return "range(" + scoped(q.Field, "["+lower+" TO "+upper+"]") + ")"
}

// FieldScoreQuery matches every live document and scores it by the
// document's numeric value for Field, zero when absent.
type FieldScoreQuery struct {
	Field string
}

func (q *FieldScoreQuery) isQuery() {}

func (q *FieldScoreQuery) String() string { return "fieldscore(" + q.Field + ")" }

// BoolQuery combines sub-queries with boolean logic. Must clauses all
// have to match, Should clauses contribute score, MustNot clauses
// exclude.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	MustNot []Query
}

func (q *BoolQuery) isQuery() {}

func (q *BoolQuery) String() string {
	var parts []string
	if len(q.Must) > 0 {
		parts = append(parts, "AND("+joinQueries(q.Must)+")")
	}
	if len(q.Should) > 0 {
		parts = append(parts, "OR("+joinQueries(q.Should)+")")
	}
	if len(q.MustNot) > 0 {
		parts = append(parts, "NOT("+joinQueries(q.MustNot)+")")
	}
	if len(parts) == 0 {
		return "bool(empty)"
	}
	return "bool(" + strings.Join(parts, " ") + ")"
}

// DisMaxQuery scores each document by its best-matching sub-query, plus
// TieBreaker times the remaining matching sub-query scores.
type DisMaxQuery struct {
	Queries    []Query
	TieBreaker float64
}

func (q *DisMaxQuery) isQuery() {}

func (q *DisMaxQuery) String() string {
	return fmt.Sprintf("dismax(%s, tie=%g)", joinQueries(q.Queries), q.TieBreaker)
}
