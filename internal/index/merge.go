package index

import (
	"fmt"
	"os"

	"sift/internal/segment"
	"sift/internal/store"
)

// Merge rewrites the named segments into a single new one, dropping
// documents deleted since they were written. The replacement becomes
// visible atomically; the old segment files are removed afterwards.
func (idx *Index) Merge(segmentIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errIndexClosed
	}

	sources, err := idx.mergeSources(segmentIDs)
	if err != nil {
		return err
	}
	if len(sources) < 2 {
		return fmt.Errorf("merge requires at least two distinct segments")
	}

	merged := segment.NewBuilder(idx.analyzer, idx.dateFields)
	for _, src := range sources {
		if err := copyLiveDocs(merged, src); err != nil {
			return err
		}
	}

	seg, err := idx.sealBuilder(merged)
	if err != nil {
		return err
	}

	// Untouched segments keep their order; the replacement goes last.
	replaced := make(map[string]bool, len(sources))
	for _, src := range sources {
		replaced[src.ID()] = true
	}
	next := make([]*segment.Segment, 0, len(idx.sealed)-len(sources)+1)
	for _, s := range idx.sealed {
		if !replaced[s.ID()] {
			next = append(next, s)
		}
	}
	next = append(next, seg)

	epoch, err := idx.commit(segmentList(next), func(tx *store.Tx) error {
		for docNum, docID := range merged.DocIDs {
			if err := tx.SetDocMapping(docID, seg.ID(), uint64(docNum)); err != nil {
				return err
			}
		}
		for id := range replaced {
			if err := tx.DeleteDeletions(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		discard(seg)
		return err
	}

	idx.sealed = next
	idx.epoch = epoch

	for _, src := range sources {
		old := src.Segment()
		path := old.Path()
		old.Close()
		os.Remove(path)
		delete(idx.tombstones, src.ID())
	}

	return nil
}

// mergeSources resolves ids to loaded segments paired with their current
// deletions, in index order. Duplicate ids collapse; an id matching no
// loaded segment is an error.
func (idx *Index) mergeSources(ids []string) ([]*SegmentSnapshot, error) {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}

	sources := make([]*SegmentSnapshot, 0, len(pending))
	for _, seg := range idx.sealed {
		if !pending[seg.ID()] {
			continue
		}
		delete(pending, seg.ID())

		dead, err := idx.deletionsFor(seg.ID())
		if err != nil {
			return nil, err
		}
		sources = append(sources, &SegmentSnapshot{seg: seg, dead: dead})
	}

	for id := range pending {
		return nil, fmt.Errorf("unknown segment %q", id)
	}
	return sources, nil
}

// copyLiveDocs re-adds every surviving document from src to the builder.
func copyLiveDocs(dst *segment.Builder, src *SegmentSnapshot) error {
	seg := src.Segment()
	for docNum := uint64(0); docNum < seg.NumDocs(); docNum++ {
		if src.IsDeleted(docNum) {
			continue
		}

		doc, err := seg.LoadDoc(docNum)
		if err != nil {
			return fmt.Errorf("segment %s doc %d: %w", seg.ID(), docNum, err)
		}
		docID, ok := seg.ExternalID(docNum)
		if !ok {
			return fmt.Errorf("segment %s doc %d: missing external ID", seg.ID(), docNum)
		}
		if _, err := dst.Add(docID, doc); err != nil {
			return fmt.Errorf("re-add %q: %w", docID, err)
		}
	}
	return nil
}
