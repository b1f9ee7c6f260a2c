package search

import "sift/internal/segment"

// Reader is the per-reader surface scorers pull from. Sealed segment
// snapshots and the in-memory builder view both satisfy it; scorer leaves
// never see anything below this boundary.
type Reader interface {
	// Key identifies the reader for caching. The builder view returns ""
	// because its contents change between snapshots.
	Key() string

	// MaxDoc returns the size of the reader's document number space,
	// deleted documents included.
	MaxDoc() uint64

	// IsDeleted reports whether a document number is deleted in this
	// snapshot.
	IsDeleted(docNum uint64) bool

	// Postings returns the postings for a term in a field, ascending by
	// document number.
	Postings(term, field string) ([]segment.Posting, error)

	// Terms returns every term in a field, sorted.
	Terms(field string) ([]string, error)

	// PrefixTerms returns the terms in a field starting with prefix.
	PrefixTerms(prefix, field string) ([]string, error)

	// TermRange returns the terms in a field within [lower, upper], both
	// inclusive. An empty bound is open.
	TermRange(lower, upper, field string) ([]string, error)

	// MatchingTerms returns the terms in a field fully matching a regex
	// pattern.
	MatchingTerms(pattern, field string) ([]string, error)

	// FuzzyTerms returns the terms in a field within edit distance of
	// term.
	FuzzyTerms(term string, fuzziness uint8, field string) ([]string, error)

	// FieldLength returns the token count of a field in a document.
	FieldLength(field string, docNum uint64) uint64

	// ExternalID resolves a document number to its external ID.
	ExternalID(docNum uint64) (string, bool)

	// LoadDoc returns the stored document for a document number.
	LoadDoc(docNum uint64) (map[string]any, error)
}
