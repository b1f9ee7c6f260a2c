package index

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"sift/internal/segment"
	"sift/internal/store"
)

// deletionsFor returns the effective tombstone set for a sealed segment,
// persisted deletions plus any still waiting in memory.
func (idx *Index) deletionsFor(segID string) (*roaring.Bitmap, error) {
	dead, err := idx.meta.GetDeletions(segID)
	if err != nil {
		return nil, err
	}
	if pend := idx.tombstones[segID]; pend != nil {
		dead.Or(pend)
	}
	return dead, nil
}

// sealedViews pairs every sealed segment with its effective deletions.
func (idx *Index) sealedViews() ([]*SegmentSnapshot, error) {
	views := make([]*SegmentSnapshot, len(idx.sealed))
	for i, seg := range idx.sealed {
		dead, err := idx.deletionsFor(seg.ID())
		if err != nil {
			return nil, err
		}
		views[i] = &SegmentSnapshot{seg: seg, dead: dead}
	}
	return views, nil
}

// segmentByID finds a sealed segment by its ID.
func (idx *Index) segmentByID(segID string) (*segment.Segment, error) {
	for _, seg := range idx.sealed {
		if seg.ID() == segID {
			return seg, nil
		}
	}
	return nil, fmt.Errorf("no such segment: %s", segID)
}

func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errIndexClosed
	}

	return idx.flushLocked()
}

// flushLocked seals the in-memory builder into an on-disk segment. The
// caller holds the write lock.
func (idx *Index) flushLocked() error {
	b := idx.mem
	if b.NumDocs() == 0 {
		return nil
	}

	seg, err := idx.sealBuilder(b)
	if err != nil {
		return err
	}

	epoch, err := idx.commit(append(segmentList(idx.sealed), seg.ID()), func(tx *store.Tx) error {
		if err := idx.carryTombstones(tx); err != nil {
			return err
		}
		if !b.Deleted.IsEmpty() {
			if err := tx.SetDeletions(seg.ID(), b.Deleted); err != nil {
				return err
			}
		}

		for docID := range idx.unmapped {
			if err := tx.DeleteDocMapping(docID); err != nil {
				return err
			}
		}
		for docNum, docID := range b.DocIDs {
			if b.IsDeleted(uint64(docNum)) {
				continue
			}
			if err := tx.SetDocMapping(docID, seg.ID(), uint64(docNum)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		discard(seg)
		return err
	}

	idx.sealed = append(idx.sealed, seg)
	idx.epoch = epoch
	idx.tombstones = make(map[string]*roaring.Bitmap)
	idx.unmapped = make(map[string]struct{})
	idx.mem = segment.NewBuilder(idx.analyzer, idx.dateFields)

	return nil
}

// carryTombstones folds deletions accumulated against sealed segments
// into their persisted bitmaps.
func (idx *Index) carryTombstones(tx *store.Tx) error {
	for segID, pend := range idx.tombstones {
		if pend == nil || pend.IsEmpty() {
			continue
		}
		dead, err := tx.GetDeletions(segID)
		if err != nil {
			return err
		}
		dead.Or(pend)
		if err := tx.SetDeletions(segID, dead); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot captures the current state of the index for searching.
// Writes after this call do not affect the snapshot.
func (idx *Index) Snapshot() (*IndexSnapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errIndexClosed
	}

	views, err := idx.sealedViews()
	if err != nil {
		return nil, err
	}

	return &IndexSnapshot{
		views:      views,
		mem:        idx.mem,
		epoch:      idx.epoch,
		analyzer:   idx.analyzer,
		scoring:    idx.scoring,
		tieBreaker: idx.tieBreaker,
		dateFields: idx.dateFields,
	}, nil
}

// Close releases segments and the metadata store. The index cannot be
// used afterwards.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true

	for _, seg := range idx.sealed {
		seg.Close()
	}
	idx.sealed = nil
	idx.mem = nil
	idx.tombstones = nil
	idx.unmapped = nil

	if idx.meta == nil {
		return nil
	}
	return idx.meta.Close()
}

// NumSegments returns how many on-disk segments the index holds.
func (idx *Index) NumSegments() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.sealed)
}

// PendingDocs returns the number of documents buffered in memory, not yet
// flushed to a segment.
func (idx *Index) PendingDocs() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.mem.NumDocs()
}

// Fields returns the distinct field names indexed anywhere in the index,
// builder included, sorted.
func (idx *Index) Fields() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]bool)
	for name := range idx.mem.Fields {
		seen[name] = true
	}
	for _, seg := range idx.sealed {
		for _, name := range seg.Fields() {
			seen[name] = true
		}
	}
	fields := make([]string, 0, len(seen))
	for name := range seen {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// SegmentInfo describes one on-disk segment.
type SegmentInfo struct {
	ID      string
	Path    string
	NumDocs uint64
	Size    int64
}

// Segments lists the on-disk segments in load order.
func (idx *Index) Segments() []SegmentInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]SegmentInfo, 0, len(idx.sealed))
	for _, seg := range idx.sealed {
		out = append(out, SegmentInfo{ID: seg.ID(), Path: seg.Path(), NumDocs: seg.NumDocs(), Size: seg.Size()})
	}
	return out
}

// SegmentStats summarizes one segment, deletions included.
type SegmentStats struct {
	NumDocs    uint64
	NumDeleted uint64
	Size       int64
	Fields     []string
}

// SegmentStats reports per-segment counters for inspection tools.
func (idx *Index) SegmentStats(segID string) (*SegmentStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seg, err := idx.segmentByID(segID)
	if err != nil {
		return nil, err
	}
	dead, err := idx.deletionsFor(segID)
	if err != nil {
		return nil, err
	}
	return &SegmentStats{
		NumDocs:    seg.NumDocs(),
		NumDeleted: dead.GetCardinality(),
		Size:       seg.Size(),
		Fields:     seg.Fields(),
	}, nil
}

// LoadDoc fetches a stored document by its position in a segment.
func (idx *Index) LoadDoc(segID string, docNum uint64) (map[string]any, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seg, err := idx.segmentByID(segID)
	if err != nil {
		return nil, err
	}
	return seg.LoadDoc(docNum)
}

type PostingEntry struct {
	SegmentID string
	DocNum    uint64
	Freq      uint64
	Positions []uint64
}

// DumpPostings collects the raw postings recorded for a field and term
// in every segment, deletions not applied.
func (idx *Index) DumpPostings(field, term string) ([]PostingEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []PostingEntry
	for _, seg := range idx.sealed {
		postings, err := seg.Postings(term, field, nil)
		if err != nil {
			continue
		}
		for _, p := range postings {
			out = append(out, PostingEntry{SegmentID: seg.ID(), DocNum: p.DocNum, Freq: p.Frequency, Positions: p.Positions})
		}
	}
	return out, nil
}

// DumpDeletions lists the document numbers currently marked deleted in
// a segment, pending deletions included.
func (idx *Index) DumpDeletions(segID string) ([]uint32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dead, err := idx.deletionsFor(segID)
	if err != nil {
		return nil, err
	}
	return dead.ToArray(), nil
}

// ForceMerge rewrites all on-disk segments into a single one.
func (idx *Index) ForceMerge() error {
	idx.mu.RLock()
	ids := segmentList(idx.sealed)
	idx.mu.RUnlock()

	if len(ids) < 2 {
		return nil
	}
	return idx.Merge(ids)
}
