package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/couchbase/vellum"
	"github.com/golang/snappy"
)

// tell returns the current write position.
func tell(f *os.File) uint64 {
	pos, _ := f.Seek(0, io.SeekCurrent)
	return uint64(pos)
}

// writeStored writes the documents as snappy-compressed JSON chunks of
// ChunkSize docs each and returns the chunk offsets.
func (b *Builder) writeStored(f *os.File) ([]uint64, error) {
	var offsets []uint64
	for at := 0; at < len(b.Docs); at += ChunkSize {
		raw, err := json.Marshal(b.Docs[at:min(at+ChunkSize, len(b.Docs))])
		if err != nil {
			return nil, err
		}
		packed := snappy.Encode(nil, raw)

		offsets = append(offsets, tell(f))
		if err := binary.Write(f, binary.BigEndian, uint32(len(packed))); err != nil {
			return nil, err
		}
		if _, err := f.Write(packed); err != nil {
			return nil, err
		}
	}
	return offsets, nil
}

// writeFields writes the postings region and term dictionary for every
// field, fields in sorted order.
func (b *Builder) writeFields(f *os.File) ([]FieldMeta, error) {
	metas := make([]FieldMeta, 0, len(b.Fields))
	for _, field := range sortedKeys(b.Fields) {
		fm, err := b.writeField(f, field)
		if err != nil {
			return nil, err
		}
		metas = append(metas, fm)
	}
	return metas, nil
}

// writeField writes one field's postings followed by its term dictionary.
// Dictionary values are offsets relative to the postings region start,
// except _id terms, which are 1-hit encoded so docNum lookups never touch
// the postings region.
func (b *Builder) writeField(f *os.File, field string) (FieldMeta, error) {
	fm := FieldMeta{Name: field, PostingsOffset: tell(f)}
	terms := sortedKeys(b.Fields[field])
	oneHit := field == IDField

	vals := make(map[string]uint64, len(terms))
	for _, term := range terms {
		postings := b.Fields[field][term]
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocNum < postings[j].DocNum
		})

		if oneHit && len(postings) == 1 && postings[0].Frequency == 1 {
			vals[term] = EncodeOneHit(postings[0].DocNum)
			continue
		}

		vals[term] = tell(f) - fm.PostingsOffset
		if _, err := f.Write(EncodePostings(postings)); err != nil {
			return fm, err
		}
	}
	fm.PostingsSize = tell(f) - fm.PostingsOffset

	fm.DictOffset = tell(f)
	if err := writeDict(f, terms, vals); err != nil {
		return fm, err
	}
	fm.DictSize = tell(f) - fm.DictOffset
	return fm, nil
}

// writeDict builds the vellum FST over terms and writes it prefixed with
// its byte length. Terms must already be sorted.
func writeDict(f *os.File, terms []string, vals map[string]uint64) error {
	var buf bytes.Buffer
	fb, err := vellum.New(&buf, nil)
	if err != nil {
		return err
	}
	for _, term := range terms {
		if err := fb.Insert([]byte(term), vals[term]); err != nil {
			return err
		}
	}
	if err := fb.Close(); err != nil {
		return err
	}

	if err := binary.Write(f, binary.BigEndian, uint64(buf.Len())); err != nil {
		return err
	}
	_, err = f.Write(buf.Bytes())
	return err
}

// sortedKeys returns a map's string keys in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
