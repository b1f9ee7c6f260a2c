package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"sift/internal/analysis"
	"sift/internal/datetools"
	"sift/internal/segment"
	"sift/internal/store"
)

// errIndexClosed is returned by every operation attempted after Close.
var errIndexClosed = errors.New("index is closed")

type ScoringMode int

const (
	ScoringTFIDF ScoringMode = iota
	ScoringBM25
)

func (m ScoringMode) String() string {
	if m == ScoringTFIDF {
		return "tfidf"
	}
	return "bm25"
}

// ParseScoringMode parses "tfidf" or "bm25".
func ParseScoringMode(s string) (ScoringMode, error) {
	switch s {
	case "tfidf":
		return ScoringTFIDF, nil
	case "bm25":
		return ScoringBM25, nil
	default:
		return 0, fmt.Errorf("unknown scoring mode %q", s)
	}
}

type Index struct {
	mu sync.RWMutex

	dir    string
	meta   *store.Metadata
	sealed []*segment.Segment
	mem    *segment.Builder
	epoch  uint64

	// tombstones holds deletions against sealed segments that have not
	// been persisted yet; unmapped holds doc IDs whose mapping rows must
	// go when the next flush commits.
	tombstones map[string]*roaring.Bitmap
	unmapped   map[string]struct{}

	analyzer   analysis.Analyzer
	flushLimit int
	scoring    ScoringMode
	tieBreaker float64
	dateFields map[string]datetools.Resolution

	closed bool
}

type Config struct {
	Dir            string
	FlushThreshold int
	Analyzer       analysis.Analyzer
	ScoringMode    ScoringMode

	// TieBreaker weights the non-best field scores when a bare term is
	// searched across several fields. 0 keeps only the best field.
	TieBreaker float64

	// DateFields maps field names to the resolution their values are
	// indexed at.
	DateFields map[string]datetools.Resolution
}

func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		FlushThreshold: 1000,
		Analyzer:       analysis.NewSimple(),
		ScoringMode:    ScoringBM25,
	}
}

// New creates or opens an index at the given directory. Settings persisted
// in the directory win over the passed config, so an existing index keeps
// the scoring setup and date fields it was created with.
func New(config Config) (*Index, error) {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := store.NewMetadata(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	config, err = reconcileSettings(db, config)
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &Index{
		dir:        config.Dir,
		meta:       db,
		mem:        segment.NewBuilder(config.Analyzer, config.DateFields),
		tombstones: make(map[string]*roaring.Bitmap),
		unmapped:   make(map[string]struct{}),
		analyzer:   config.Analyzer,
		flushLimit: config.FlushThreshold,
		scoring:    config.ScoringMode,
		tieBreaker: config.TieBreaker,
		dateFields: config.DateFields,
	}

	if err := idx.openSealed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load segments: %w", err)
	}

	idx.epoch, _ = db.GetEpoch()

	return idx, nil
}

// reconcileSettings loads persisted settings over the config, or persists
// the config on first open.
func reconcileSettings(meta *store.Metadata, config Config) (Config, error) {
	settings, found, err := meta.GetSettings()
	if err != nil {
		return config, fmt.Errorf("read settings: %w", err)
	}

	if !found {
		saved := store.Settings{
			ScoringMode: config.ScoringMode.String(),
			TieBreaker:  config.TieBreaker,
		}
		if len(config.DateFields) > 0 {
			saved.DateFields = make(map[string]string, len(config.DateFields))
			for field, res := range config.DateFields {
				saved.DateFields[field] = res.String()
			}
		}
		err := meta.Update(func(tx *store.Tx) error {
			return tx.SetSettings(saved)
		})
		if err != nil {
			return config, fmt.Errorf("persist settings: %w", err)
		}
		return config, nil
	}

	mode, err := ParseScoringMode(settings.ScoringMode)
	if err != nil {
		return config, fmt.Errorf("stored settings: %w", err)
	}
	config.ScoringMode = mode
	config.TieBreaker = settings.TieBreaker
	if len(settings.DateFields) > 0 {
		config.DateFields = make(map[string]datetools.Resolution, len(settings.DateFields))
		for field, name := range settings.DateFields {
			res, err := datetools.ParseResolution(name)
			if err != nil {
				return config, fmt.Errorf("stored settings field %q: %w", field, err)
			}
			config.DateFields[field] = res
		}
	} else {
		config.DateFields = nil
	}
	return config, nil
}

// openSealed maps every segment the metadata store lists, in list order.
func (idx *Index) openSealed() error {
	ids, err := idx.meta.GetSegments()
	if err != nil {
		return err
	}

	for _, id := range ids {
		seg, err := segment.Open(filepath.Join(idx.dir, id+".seg"), id)
		if err != nil {
			return fmt.Errorf("open segment %s: %w", id, err)
		}
		idx.sealed = append(idx.sealed, seg)
	}

	return nil
}

// Index indexes a document, superseding any previous version of the same
// ID. A rejected document leaves the index unchanged.
func (idx *Index) Index(docID string, doc map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errIndexClosed
	}

	if _, err := idx.mem.Add(docID, doc); err != nil {
		return err
	}
	idx.addTombstones([]string{docID})
	delete(idx.unmapped, docID)

	if idx.mem.NumDocs() < uint64(idx.flushLimit) {
		return nil
	}
	return idx.flushLocked()
}

func (idx *Index) Delete(docID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errIndexClosed
	}

	idx.mem.Delete(docID)
	idx.addTombstones([]string{docID})
	idx.unmapped[docID] = struct{}{}
	return nil
}

// addTombstones records, per sealed segment, which of the given doc IDs
// it still carries.
func (idx *Index) addTombstones(docIDs []string) {
	for _, seg := range idx.sealed {
		hits := seg.DocNumbers(docIDs)
		if hits.IsEmpty() {
			continue
		}
		bm := idx.tombstones[seg.ID()]
		if bm == nil {
			bm = roaring.New()
			idx.tombstones[seg.ID()] = bm
		}
		bm.Or(hits)
	}
}

// GetDoc fetches a live document by external ID, checking the in-memory
// builder first and then the sealed segments.
func (idx *Index) GetDoc(docID string) (map[string]any, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, false, errIndexClosed
	}

	if docNum, ok := idx.mem.DocNum(docID); ok {
		if idx.mem.IsDeleted(docNum) {
			return nil, false, nil
		}
		return idx.mem.Docs[docNum], true, nil
	}

	if segID, docNum, found, err := idx.meta.GetDocMapping(docID); err != nil {
		return nil, false, err
	} else if found {
		for _, seg := range idx.sealed {
			if seg.ID() != segID {
				continue
			}
			doc, live, err := idx.loadLive(seg, docNum)
			if err != nil || live {
				return doc, live, err
			}
		}
	}

	// Older indexes may predate doc mappings; scan newest segments first.
	for i := len(idx.sealed) - 1; i >= 0; i-- {
		seg := idx.sealed[i]
		docNum, ok := seg.DocNum(docID)
		if !ok {
			continue
		}
		doc, live, err := idx.loadLive(seg, docNum)
		if err != nil || live {
			return doc, live, err
		}
	}

	return nil, false, nil
}

func (idx *Index) loadLive(seg *segment.Segment, docNum uint64) (map[string]any, bool, error) {
	dead, err := idx.deletionsFor(seg.ID())
	if err != nil {
		return nil, false, err
	}
	if dead.Contains(uint32(docNum)) {
		return nil, false, nil
	}
	doc, err := seg.LoadDoc(docNum)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}
