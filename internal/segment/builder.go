package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RoaringBitmap/roaring"

	"sift/internal/analysis"
	"sift/internal/datetools"
)

// IDField is the reserved field holding external document IDs.
const IDField = "_id"

// Builder accumulates documents in memory before flushing to an immutable
// segment. DocNums are assigned densely in insertion order.
type Builder struct {
	Fields       map[string]map[string][]Posting // term postings per field
	FieldLengths map[string][]uint64             // per-field token counts by docNum
	Docs         []map[string]any                // original documents in docNum order
	DocIDs       []string                        // external IDs in docNum order
	Deleted      *roaring.Bitmap                 // docNums deleted or superseded

	added      uint64
	byID       map[string]uint64 // external ID -> latest docNum
	analyzer   analysis.Analyzer
	dateFields map[string]datetools.Resolution
}

// NewBuilder creates a segment builder. Fields named in dateFields have
// their values parsed as dates and indexed as sortable strings at the
// mapped resolution.
func NewBuilder(analyzer analysis.Analyzer, dateFields map[string]datetools.Resolution) *Builder {
	return &Builder{
		Fields:       make(map[string]map[string][]Posting),
		FieldLengths: make(map[string][]uint64),
		Deleted:      roaring.New(),
		byID:         make(map[string]uint64),
		analyzer:     analyzer,
		dateFields:   dateFields,
	}
}

// Add indexes a document and returns its docNum. Re-adding an external ID
// supersedes the live in-builder version. A failed Add leaves the builder
// untouched.
func (b *Builder) Add(externalID string, doc map[string]any) (uint64, error) {
	docNum := b.added

	tokensByField := make(map[string][]analysis.Token, len(doc))
	for field, value := range doc {
		tokens, err := b.tokenize(field, value)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		if tokens != nil {
			tokensByField[field] = tokens
		}
	}

	if prev, ok := b.byID[externalID]; ok {
		b.Deleted.Add(uint32(prev))
	}
	b.byID[externalID] = docNum

	b.added++
	b.Docs = append(b.Docs, doc)
	b.DocIDs = append(b.DocIDs, externalID)

	// The _id posting has exactly one hit; its position is meaningless.
	if b.Fields[IDField] == nil {
		b.Fields[IDField] = make(map[string][]Posting)
	}
	b.Fields[IDField][externalID] = []Posting{{DocNum: docNum, Frequency: 1, Positions: []uint64{0}}}

	for field, tokens := range tokensByField {
		b.record(field, docNum, tokens)
	}
	return docNum, nil
}

// tokenize turns one field value into tokens. Strings are analyzed, or
// date-encoded for mapped fields; numbers, bools and times become a single
// canonical token; other types are not indexed.
func (b *Builder) tokenize(field string, value any) ([]analysis.Token, error) {
	res, isDate := b.dateFields[field]

	switch v := value.(type) {
	case string:
		if !isDate {
			return b.analyzer.Analyze(v), nil
		}
		t, err := datetools.ParseInput(v)
		if err != nil {
			return nil, err
		}
		return []analysis.Token{{Term: datetools.Format(t, res)}}, nil
	case time.Time:
		if !isDate {
			res = datetools.Second
		}
		return []analysis.Token{{Term: datetools.Format(v, res)}}, nil
	case float64:
		return []analysis.Token{{Term: strconv.FormatFloat(v, 'f', -1, 64)}}, nil
	case int:
		return []analysis.Token{{Term: strconv.FormatInt(int64(v), 10)}}, nil
	case int64:
		return []analysis.Token{{Term: strconv.FormatInt(v, 10)}}, nil
	case bool:
		return []analysis.Token{{Term: strconv.FormatBool(v)}}, nil
	default:
		return nil, nil
	}
}

// record adds one field's tokens to the posting lists and length table.
func (b *Builder) record(field string, docNum uint64, tokens []analysis.Token) {
	if len(tokens) == 0 {
		return
	}
	if b.Fields[field] == nil {
		b.Fields[field] = make(map[string][]Posting)
	}

	for uint64(len(b.FieldLengths[field])) <= docNum {
		b.FieldLengths[field] = append(b.FieldLengths[field], 0)
	}
	b.FieldLengths[field][docNum] = uint64(len(tokens))

	byTerm := make(map[string][]uint64)
	for _, tok := range tokens {
		byTerm[tok.Term] = append(byTerm[tok.Term], tok.Position)
	}
	for term, positions := range byTerm {
		b.Fields[field][term] = append(b.Fields[field][term], Posting{
			DocNum:    docNum,
			Frequency: uint64(len(positions)),
			Positions: positions,
		})
	}
}

// Delete marks a document as deleted. Returns true if found live.
func (b *Builder) Delete(externalID string) bool {
	docNum, ok := b.byID[externalID]
	if !ok || b.Deleted.Contains(uint32(docNum)) {
		return false
	}
	b.Deleted.Add(uint32(docNum))
	return true
}

// DocNum returns the latest docNum for an external ID, live or deleted.
func (b *Builder) DocNum(externalID string) (uint64, bool) {
	docNum, ok := b.byID[externalID]
	return docNum, ok
}

// IsDeleted reports whether a docNum is deleted.
func (b *Builder) IsDeleted(docNum uint64) bool {
	return b.Deleted.Contains(uint32(docNum))
}

// NumDocs returns the number of live documents in the builder.
func (b *Builder) NumDocs() uint64 {
	return b.added - b.Deleted.GetCardinality()
}

// TotalDocs returns the document count including deleted ones.
func (b *Builder) TotalDocs() uint64 { return b.added }

// FieldLength returns the token count of a field in a document.
func (b *Builder) FieldLength(field string, docNum uint64) uint64 {
	if lens := b.FieldLengths[field]; docNum < uint64(len(lens)) {
		return lens[docNum]
	}
	return 0
}

// AvgFieldLength returns the average token count of a field over live
// documents that have it.
func (b *Builder) AvgFieldLength(field string) float64 {
	var total, n uint64
	for docNum, l := range b.FieldLengths[field] {
		if l > 0 && !b.IsDeleted(uint64(docNum)) {
			total += l
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// Build writes the segment to disk and returns the segment path. The file
// is assembled under a temporary name and renamed into place.
func (b *Builder) Build(dir, segmentID string) (string, error) {
	final := filepath.Join(dir, segmentID+".seg")
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := b.writeSegment(f); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", err
	}
	return final, nil
}

// writeSegment lays the file out as header, stored-field chunks, per-field
// postings and dictionaries, then the footer and its locator words.
func (b *Builder) writeSegment(f *os.File) error {
	if _, err := f.WriteString(SegmentMagic); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, SegmentVersion); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, b.TotalDocs()); err != nil {
		return err
	}

	// Section offsets get backfilled once both regions are written.
	locatorAt := tell(f)
	if _, err := f.Write(make([]byte, 16)); err != nil {
		return err
	}

	storedAt := tell(f)
	chunks, err := b.writeStored(f)
	if err != nil {
		return err
	}

	fieldsAt := tell(f)
	metas, err := b.writeFields(f)
	if err != nil {
		return err
	}
	b.fillFieldStats(metas)

	raw, err := json.Marshal(Footer{
		StoredOffset: storedAt,
		FieldsOffset: fieldsAt,
		ChunkOffsets: chunks,
		Fields:       metas,
		DocIDs:       b.DocIDs,
		NumDocs:      b.TotalDocs(),
		FieldLengths: b.FieldLengths,
	})
	if err != nil {
		return err
	}
	footerAt := tell(f)
	if _, err := f.Write(raw); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, footerAt); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, uint64(len(raw))); err != nil {
		return err
	}

	if _, err := f.Seek(int64(locatorAt), io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, storedAt); err != nil {
		return err
	}
	return binary.Write(f, binary.BigEndian, fieldsAt)
}

// fillFieldStats records per-field token totals over live docs, feeding
// the average length stats.
func (b *Builder) fillFieldStats(metas []FieldMeta) {
	for i := range metas {
		lens, ok := b.FieldLengths[metas[i].Name]
		if !ok {
			continue
		}
		var tokens, docs uint64
		for docNum, l := range lens {
			if l > 0 && !b.IsDeleted(uint64(docNum)) {
				tokens += l
				docs++
			}
		}
		metas[i].TotalTokens = tokens
		metas[i].DocCount = docs
	}
}
