package index

import (
	"github.com/RoaringBitmap/roaring"

	"sift/internal/analysis"
	"sift/internal/datetools"
	"sift/internal/segment"
)

// SegmentSnapshot is a sealed segment paired with the deletion bitmap that
// was current when the snapshot was taken.
type SegmentSnapshot struct {
	seg  *segment.Segment
	dead *roaring.Bitmap
}

// Segment exposes the sealed segment behind this view.
func (s *SegmentSnapshot) Segment() *segment.Segment { return s.seg }

// Deleted exposes the deletion bitmap captured with this view.
func (s *SegmentSnapshot) Deleted() *roaring.Bitmap { return s.dead }

// ID reports the sealed segment's ID.
func (s *SegmentSnapshot) ID() string { return s.seg.ID() }

// Key returns a stable cache key. Deletions do not change the docNum to
// value mapping, so the segment ID is sufficient.
func (s *SegmentSnapshot) Key() string { return s.seg.ID() }

// TotalDocs counts the documents still live in this view.
func (s *SegmentSnapshot) TotalDocs() uint64 {
	n := s.seg.NumDocs()
	if s.dead != nil {
		n -= s.dead.GetCardinality()
	}
	return n
}

// MaxDoc returns the docNum ceiling, deleted included.
func (s *SegmentSnapshot) MaxDoc() uint64 { return s.seg.NumDocs() }

// IsDeleted checks if a docNum is deleted.
func (s *SegmentSnapshot) IsDeleted(docNum uint64) bool {
	return s.dead != nil && s.dead.Contains(uint32(docNum))
}

// Fields returns the indexed field names.
func (s *SegmentSnapshot) Fields() []string { return s.seg.Fields() }

// Postings returns the live postings for a term.
func (s *SegmentSnapshot) Postings(term, field string) ([]segment.Posting, error) {
	return s.seg.Postings(term, field, s.dead)
}

// Terms returns all terms of a field in sorted order.
func (s *SegmentSnapshot) Terms(field string) ([]string, error) {
	return s.seg.Terms(field)
}

// PrefixTerms returns the terms starting with prefix.
func (s *SegmentSnapshot) PrefixTerms(prefix, field string) ([]string, error) {
	return s.seg.PrefixTerms(prefix, field)
}

// TermRange returns the terms within [lower, upper]. Empty bounds are open.
func (s *SegmentSnapshot) TermRange(lower, upper, field string) ([]string, error) {
	return s.seg.TermRange(lower, upper, field)
}

// MatchingTerms returns the terms fully matching a regex pattern.
func (s *SegmentSnapshot) MatchingTerms(pattern, field string) ([]string, error) {
	return s.seg.MatchingTerms(pattern, field)
}

// FuzzyTerms returns the terms within the given edit distance.
func (s *SegmentSnapshot) FuzzyTerms(term string, fuzziness uint8, field string) ([]string, error) {
	return s.seg.FuzzyTerms(term, fuzziness, field)
}

// FieldLength returns the token count of a field in a document.
func (s *SegmentSnapshot) FieldLength(field string, docNum uint64) uint64 {
	return s.seg.FieldLength(field, docNum)
}

// AvgFieldLength returns the average token count of a field.
func (s *SegmentSnapshot) AvgFieldLength(field string) float64 {
	return s.seg.AvgFieldLength(field)
}

// ExternalID returns the external ID for a docNum.
func (s *SegmentSnapshot) ExternalID(docNum uint64) (string, bool) {
	return s.seg.ExternalID(docNum)
}

// LoadDoc returns the stored document for a docNum.
func (s *SegmentSnapshot) LoadDoc(docNum uint64) (map[string]any, error) {
	return s.seg.LoadDoc(docNum)
}

// IndexSnapshot is a point-in-time view of the index for searching.
type IndexSnapshot struct {
	views      []*SegmentSnapshot
	mem        *segment.Builder
	epoch      uint64
	analyzer   analysis.Analyzer
	scoring    ScoringMode
	tieBreaker float64
	dateFields map[string]datetools.Resolution
}

// Segments returns the sealed segment views.
func (s *IndexSnapshot) Segments() []*SegmentSnapshot { return s.views }

// BuilderView returns a read view over the unflushed builder, or nil when
// the builder holds no documents.
func (s *IndexSnapshot) BuilderView() *BuilderView { return NewBuilderView(s.mem) }

// Epoch returns the index epoch the snapshot was taken at.
func (s *IndexSnapshot) Epoch() uint64 { return s.epoch }

// Analyzer returns the analyzer documents were indexed with.
func (s *IndexSnapshot) Analyzer() analysis.Analyzer { return s.analyzer }

// ScoringMode reports how hits should be scored.
func (s *IndexSnapshot) ScoringMode() ScoringMode { return s.scoring }

// TieBreaker returns the disjunction tie breaker for this snapshot.
func (s *IndexSnapshot) TieBreaker() float64 { return s.tieBreaker }

// DateResolution returns the configured resolution for a date field.
func (s *IndexSnapshot) DateResolution(field string) (datetools.Resolution, bool) {
	res, ok := s.dateFields[field]
	return res, ok
}

// TotalDocs counts the live documents across the sealed views and the
// builder.
func (s *IndexSnapshot) TotalDocs() uint64 {
	n := uint64(0)
	for _, view := range s.views {
		n += view.TotalDocs()
	}
	if s.mem == nil {
		return n
	}
	return n + s.mem.NumDocs()
}

// AvgFieldLength returns the mean token count of a field across the whole
// snapshot, builder included.
func (s *IndexSnapshot) AvgFieldLength(field string) float64 {
	var tokens float64
	var docs uint64
	tally := func(avg float64, n uint64) {
		if avg > 0 && n > 0 {
			tokens += avg * float64(n)
			docs += n
		}
	}

	for _, view := range s.views {
		tally(view.AvgFieldLength(field), view.TotalDocs())
	}
	if s.mem != nil {
		tally(s.mem.AvgFieldLength(field), s.mem.NumDocs())
	}

	if docs == 0 {
		return 0
	}
	return tokens / float64(docs)
}

// Fields returns the union of indexed field names across the sealed views
// and the builder.
func (s *IndexSnapshot) Fields() []string {
	seen := make(map[string]bool)
	var fields []string
	add := func(names []string) {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				fields = append(fields, name)
			}
		}
	}
	for _, view := range s.views {
		add(view.Fields())
	}
	if bv := s.BuilderView(); bv != nil {
		add(bv.Fields())
	}
	return fields
}

// Close exists for symmetry with Index.Close. Snapshots borrow the
// index's segments and hold nothing of their own.
func (s *IndexSnapshot) Close() error {
	return nil
}
