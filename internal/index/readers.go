package index

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"sift/internal/segment"
)

// BuilderView adapts the in-memory builder to the same read surface sealed
// segments offer, so unflushed documents are searchable. The builder keeps
// growing underneath it; a view is only coherent for the duration of one
// search.
type BuilderView struct {
	b *segment.Builder
}

// NewBuilderView wraps a builder. Returns nil if the builder holds no docs.
func NewBuilderView(b *segment.Builder) *BuilderView {
	if b == nil || b.TotalDocs() == 0 {
		return nil
	}
	return &BuilderView{b: b}
}

// Key returns "" because builder contents change between searches and must
// never be cached.
func (v *BuilderView) Key() string { return "" }

// TotalDocs returns the number of live documents.
func (v *BuilderView) TotalDocs() uint64 { return v.b.NumDocs() }

// MaxDoc returns the docNum ceiling, deleted included.
func (v *BuilderView) MaxDoc() uint64 { return v.b.TotalDocs() }

// IsDeleted checks if a docNum is deleted.
func (v *BuilderView) IsDeleted(docNum uint64) bool { return v.b.IsDeleted(docNum) }

// Fields returns the indexed field names.
func (v *BuilderView) Fields() []string {
	fields := make([]string, 0, len(v.b.Fields))
	for name := range v.b.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// Postings returns the live postings for a term.
func (v *BuilderView) Postings(term, field string) ([]segment.Posting, error) {
	terms, ok := v.b.Fields[field]
	if !ok {
		return nil, nil
	}
	postings := terms[term]
	live := make([]segment.Posting, 0, len(postings))
	for _, p := range postings {
		if !v.b.IsDeleted(p.DocNum) {
			live = append(live, p)
		}
	}
	return live, nil
}

// terms returns the sorted terms of a field that pass the filter.
func (v *BuilderView) terms(field string, match func(string) bool) []string {
	fieldTerms, ok := v.b.Fields[field]
	if !ok {
		return nil
	}
	var out []string
	for term := range fieldTerms {
		if match(term) {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

// Terms returns all terms of a field in sorted order.
func (v *BuilderView) Terms(field string) ([]string, error) {
	return v.terms(field, func(string) bool { return true }), nil
}

// PrefixTerms returns the terms starting with prefix.
func (v *BuilderView) PrefixTerms(prefix, field string) ([]string, error) {
	return v.terms(field, func(t string) bool { return strings.HasPrefix(t, prefix) }), nil
}

// TermRange returns the terms within [lower, upper]. Empty bounds are open.
func (v *BuilderView) TermRange(lower, upper, field string) ([]string, error) {
	return v.terms(field, func(t string) bool {
		if lower != "" && t < lower {
			return false
		}
		if upper != "" && t > upper {
			return false
		}
		return true
	}), nil
}

// MatchingTerms returns the terms fully matching a regex pattern.
func (v *BuilderView) MatchingTerms(pattern, field string) ([]string, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return v.terms(field, re.MatchString), nil
}

// FuzzyTerms returns the terms within the given edit distance.
func (v *BuilderView) FuzzyTerms(term string, fuzziness uint8, field string) ([]string, error) {
	return v.terms(field, func(t string) bool {
		return levenshteinDistance(term, t) <= int(fuzziness)
	}), nil
}

// FieldLength returns the token count of a field in a document.
func (v *BuilderView) FieldLength(field string, docNum uint64) uint64 {
	return v.b.FieldLength(field, docNum)
}

// AvgFieldLength returns the average token count of a field.
func (v *BuilderView) AvgFieldLength(field string) float64 {
	return v.b.AvgFieldLength(field)
}

// ExternalID returns the external ID for a docNum.
func (v *BuilderView) ExternalID(docNum uint64) (string, bool) {
	if docNum >= v.b.TotalDocs() {
		return "", false
	}
	return v.b.DocIDs[docNum], true
}

// LoadDoc returns the stored document for a docNum.
func (v *BuilderView) LoadDoc(docNum uint64) (map[string]any, error) {
	if docNum >= v.b.TotalDocs() {
		return nil, fmt.Errorf("docNum %d out of range", docNum)
	}
	return v.b.Docs[docNum], nil
}

// levenshteinDistance computes the edit distance between two strings using
// two rolling rows.
func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
