package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/couchbase/vellum"
	"github.com/edsrzf/mmap-go"
	"github.com/golang/snappy"
)

// minSegmentSize is the smallest well-formed file: magic, version, doc
// count, and the two footer locator words.
const minSegmentSize = len(SegmentMagic) + 4 + 8 + 16

// Segment is an immutable, mmap-backed segment file.
type Segment struct {
	id     string
	path   string
	f      *os.File
	mapped mmap.MMap
	footer Footer

	fieldMeta map[string]*FieldMeta

	fstMu    sync.RWMutex
	fstCache map[string]*vellum.FST
}

// Open maps an existing segment file and parses its footer.
func Open(path, segmentID string) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap segment %s: %w", path, err)
	}

	s := &Segment{
		id:       segmentID,
		path:     path,
		f:        f,
		mapped:   mapped,
		fstCache: make(map[string]*vellum.FST),
	}
	if err := s.parseFooter(); err != nil {
		s.Close()
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	return s, nil
}

// parseFooter validates the header, decodes the JSON trailer, and indexes
// the per-field metadata by name.
func (s *Segment) parseFooter() error {
	if len(s.mapped) < minSegmentSize {
		return fmt.Errorf("truncated segment: %d bytes", len(s.mapped))
	}
	if !bytes.HasPrefix(s.mapped, []byte(SegmentMagic)) {
		return fmt.Errorf("bad magic")
	}

	tail := uint64(len(s.mapped))
	at := binary.BigEndian.Uint64(s.mapped[tail-16:])
	n := binary.BigEndian.Uint64(s.mapped[tail-8:])
	if at+n < at || at+n > tail-16 {
		return fmt.Errorf("footer out of bounds")
	}
	if err := json.Unmarshal(s.mapped[at:at+n], &s.footer); err != nil {
		return fmt.Errorf("decode footer: %w", err)
	}

	s.fieldMeta = make(map[string]*FieldMeta, len(s.footer.Fields))
	for i := range s.footer.Fields {
		s.fieldMeta[s.footer.Fields[i].Name] = &s.footer.Fields[i]
	}
	return nil
}

// ID returns the segment ID.
func (s *Segment) ID() string { return s.id }

// Path returns the segment file path.
func (s *Segment) Path() string { return s.path }

// NumDocs returns the number of documents in the segment, deleted included.
// DocNums run densely from 0 to NumDocs-1.
func (s *Segment) NumDocs() uint64 { return s.footer.NumDocs }

// Size returns the segment file size in bytes.
func (s *Segment) Size() int64 { return int64(len(s.mapped)) }

// ExternalID returns the external ID stored for a docNum.
func (s *Segment) ExternalID(docNum uint64) (string, bool) {
	if docNum >= s.footer.NumDocs {
		return "", false
	}
	return s.footer.DocIDs[docNum], true
}

// DocNum resolves an external ID to its docNum.
func (s *Segment) DocNum(externalID string) (uint64, bool) {
	fst, err := s.dict(IDField)
	if err != nil {
		return 0, false
	}
	val, exists, err := fst.Get([]byte(externalID))
	if err != nil || !exists || !IsOneHit(val) {
		return 0, false
	}
	return DecodeOneHit(val), true
}

// DocNumbers resolves external IDs to a bitmap of docNums. IDs the
// segment never saw are skipped.
func (s *Segment) DocNumbers(externalIDs []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range externalIDs {
		if docNum, ok := s.DocNum(id); ok {
			bm.Add(uint32(docNum))
		}
	}
	return bm
}

// Fields returns the indexed field names.
func (s *Segment) Fields() []string {
	names := make([]string, 0, len(s.footer.Fields))
	for _, fm := range s.footer.Fields {
		names = append(names, fm.Name)
	}
	return names
}

// FieldLength returns the token count of a field in a document.
func (s *Segment) FieldLength(field string, docNum uint64) uint64 {
	if lens := s.footer.FieldLengths[field]; docNum < uint64(len(lens)) {
		return lens[docNum]
	}
	return 0
}

// AvgFieldLength returns the average token count of a field.
func (s *Segment) AvgFieldLength(field string) float64 {
	fm, ok := s.fieldMeta[field]
	if !ok || fm.DocCount == 0 {
		return 0
	}
	return float64(fm.TotalTokens) / float64(fm.DocCount)
}

// LoadDoc returns the stored fields of a document.
func (s *Segment) LoadDoc(docNum uint64) (map[string]any, error) {
	if docNum >= s.footer.NumDocs {
		return nil, fmt.Errorf("docNum %d out of range", docNum)
	}
	docs, err := s.readChunk(docNum / ChunkSize)
	if err != nil {
		return nil, err
	}
	if n := int(docNum % ChunkSize); n < len(docs) {
		return docs[n], nil
	}
	return nil, fmt.Errorf("docNum %d missing from its chunk", docNum)
}

// readChunk decompresses and decodes one stored-field chunk.
func (s *Segment) readChunk(chunk uint64) ([]map[string]any, error) {
	if chunk >= uint64(len(s.footer.ChunkOffsets)) {
		return nil, fmt.Errorf("chunk %d out of range", chunk)
	}
	at := s.footer.ChunkOffsets[chunk]

	n := uint64(binary.BigEndian.Uint32(s.mapped[at:]))
	raw, err := snappy.Decode(nil, s.mapped[at+4:at+4+n])
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %d: %w", chunk, err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse chunk %d: %w", chunk, err)
	}
	return docs, nil
}

// Close releases the mapping and any loaded term dictionaries.
func (s *Segment) Close() error {
	s.fstMu.Lock()
	defer s.fstMu.Unlock()

	for _, fst := range s.fstCache {
		fst.Close()
	}
	s.fstCache = nil

	if s.mapped != nil {
		s.mapped.Unmap()
		s.mapped = nil
	}

	var err error
	if s.f != nil {
		err = s.f.Close()
		s.f = nil
	}
	return err
}
