package index

import (
	"fmt"
	"os"

	"sift/internal/segment"
	"sift/internal/store"
)

// sealBuilder writes the builder to disk under the next epoch's name and
// opens the result for reading. The caller must commit metadata that
// references the new segment, and discard it if the commit fails.
func (idx *Index) sealBuilder(b *segment.Builder) (*segment.Segment, error) {
	current, err := idx.meta.GetEpoch()
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%012d", current+1)

	path, err := b.Build(idx.dir, name)
	if err != nil {
		return nil, err
	}

	seg, err := segment.Open(path, name)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return seg, nil
}

// commit runs stage inside a metadata transaction that advances the epoch
// and records segmentIDs as the new segment list. It returns the epoch
// that was written; on error nothing is persisted.
func (idx *Index) commit(segmentIDs []string, stage func(tx *store.Tx) error) (uint64, error) {
	var epoch uint64
	err := idx.meta.Update(func(tx *store.Tx) error {
		e, err := tx.IncrementEpoch()
		if err != nil {
			return err
		}
		epoch = e

		if stage != nil {
			if err := stage(tx); err != nil {
				return err
			}
		}
		return tx.SetSegments(segmentIDs)
	})
	if err != nil {
		return 0, err
	}
	return epoch, nil
}

// discard removes a sealed segment that never made it into a commit.
func discard(seg *segment.Segment) {
	path := seg.Path()
	seg.Close()
	os.Remove(path)
}

func segmentList(segs []*segment.Segment) []string {
	ids := make([]string, len(segs))
	for i, seg := range segs {
		ids[i] = seg.ID()
	}
	return ids
}
