package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/boltdb/bolt"
)

// Bucket layout: manifest holds the index-wide records (segment list,
// epoch, settings) under fixed keys; tombstones and docmap hold one entry
// per segment and per external document ID.
var (
	bucketManifest   = []byte("manifest")
	bucketTombstones = []byte("tombstones")
	bucketDocMap     = []byte("docmap")

	keySegments = []byte("segments")
	keyEpoch    = []byte("epoch")
	keySettings = []byte("settings")
)

// Settings is the persisted index configuration. An index directory is
// self-describing: reopening it restores the scoring setup and date field
// mappings it was created with.
type Settings struct {
	ScoringMode string            `json:"scoring_mode"`
	TieBreaker  float64           `json:"tie_breaker"`
	DateFields  map[string]string `json:"date_fields,omitempty"`
}

// Metadata is the durable record of what an index directory contains. It
// is the commit point for every index mutation: a segment exists once the
// manifest lists it, and a document is gone once its tombstone is written.
type Metadata struct {
	db *bolt.DB
}

// NewMetadata opens the metadata database in dir, creating it on first use.
func NewMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, "meta.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening metadata store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketManifest, bucketTombstones, bucketDocMap} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Metadata{db: db}, nil
}

// Close closes the underlying database.
func (m *Metadata) Close() error {
	return m.db.Close()
}

// GetSegments returns the committed segment IDs in manifest order.
func (m *Metadata) GetSegments() ([]string, error) {
	var ids []string
	err := m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketManifest).Get(keySegments)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ids)
	})
	return ids, err
}

// GetDeletions returns the deletion bitmap for a segment. A segment with
// no tombstones yields an empty bitmap, not an error.
func (m *Metadata) GetDeletions(segmentID string) (*roaring.Bitmap, error) {
	var bm *roaring.Bitmap
	err := m.db.View(func(tx *bolt.Tx) error {
		var err error
		bm, err = decodeBitmap(tx.Bucket(bucketTombstones).Get([]byte(segmentID)))
		return err
	})
	return bm, err
}

// GetDocMapping resolves an external ID to the segment and doc number the
// newest copy of the document lives in.
func (m *Metadata) GetDocMapping(externalID string) (segmentID string, docNum uint64, found bool, err error) {
	err = m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDocMap).Get([]byte(externalID))
		if data == nil {
			return nil
		}
		segmentID, docNum, err = decodeDocLocation(data)
		found = err == nil
		return err
	})
	return segmentID, docNum, found, err
}

// GetEpoch returns the current epoch, 0 for a fresh store.
func (m *Metadata) GetEpoch() (uint64, error) {
	var n uint64
	err := m.db.View(func(tx *bolt.Tx) error {
		n = readEpoch(tx.Bucket(bucketManifest))
		return nil
	})
	return n, err
}

// GetSettings returns the persisted index settings, if any were saved.
func (m *Metadata) GetSettings() (Settings, bool, error) {
	var settings Settings
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketManifest).Get(keySettings)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &settings)
	})
	return settings, found, err
}

// Update runs fn inside a single write transaction. Everything fn writes
// commits atomically or not at all.
func (m *Metadata) Update(fn func(*Tx) error) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// Tx is an open write transaction over the metadata store.
type Tx struct {
	tx *bolt.Tx
}

// SetSegments replaces the committed segment list.
func (t *Tx) SetSegments(segmentIDs []string) error {
	data, err := json.Marshal(segmentIDs)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketManifest).Put(keySegments, data)
}

// SetDeletions replaces the deletion bitmap for a segment.
func (t *Tx) SetDeletions(segmentID string, bm *roaring.Bitmap) error {
	data, err := bm.ToBytes()
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketTombstones).Put([]byte(segmentID), data)
}

// GetDeletions returns the deletion bitmap for a segment as of this
// transaction, empty when none is stored.
func (t *Tx) GetDeletions(segmentID string) (*roaring.Bitmap, error) {
	return decodeBitmap(t.tx.Bucket(bucketTombstones).Get([]byte(segmentID)))
}

// DeleteDeletions drops the deletion bitmap for a segment.
func (t *Tx) DeleteDeletions(segmentID string) error {
	return t.tx.Bucket(bucketTombstones).Delete([]byte(segmentID))
}

// SetDocMapping records where the current copy of an external ID lives.
func (t *Tx) SetDocMapping(externalID, segmentID string, docNum uint64) error {
	return t.tx.Bucket(bucketDocMap).Put([]byte(externalID), encodeDocLocation(segmentID, docNum))
}

// DeleteDocMapping removes the mapping for an external ID.
func (t *Tx) DeleteDocMapping(externalID string) error {
	return t.tx.Bucket(bucketDocMap).Delete([]byte(externalID))
}

// SetSettings persists the index settings.
func (t *Tx) SetSettings(settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketManifest).Put(keySettings, data)
}

// IncrementEpoch bumps the epoch and returns the new value.
func (t *Tx) IncrementEpoch() (uint64, error) {
	b := t.tx.Bucket(bucketManifest)
	epoch := readEpoch(b) + 1
	return epoch, b.Put(keyEpoch, binary.BigEndian.AppendUint64(nil, epoch))
}

func readEpoch(b *bolt.Bucket) uint64 {
	data := b.Get(keyEpoch)
	if data == nil {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func decodeBitmap(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if data == nil {
		return bm, nil
	}
	if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return bm, nil
}

// Doc locations are 8 bytes of big-endian doc number followed by the
// segment ID.
func encodeDocLocation(segmentID string, docNum uint64) []byte {
	buf := make([]byte, 8, 8+len(segmentID))
	binary.BigEndian.PutUint64(buf, docNum)
	return append(buf, segmentID...)
}

func decodeDocLocation(data []byte) (string, uint64, error) {
	if len(data) < 8 {
		return "", 0, fmt.Errorf("doc location record too short: %d bytes", len(data))
	}
	return string(data[8:]), binary.BigEndian.Uint64(data[:8]), nil
}
