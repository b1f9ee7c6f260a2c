package segment

import (
	"encoding/binary"
	"fmt"
)

// Segment file format constants.
const (
	SegmentMagic   = "SIFT\x00"
	SegmentVersion = uint32(1)
	ChunkSize      = 1024 // documents per stored-field chunk
)

// Posting records one document's occurrences of a term.
type Posting struct {
	DocNum    uint64
	Frequency uint64
	Positions []uint64
}

// Footer is the JSON trailer of a segment file. The last 16 bytes of the
// file locate it: footer offset, then footer length.
type Footer struct {
	StoredOffset uint64              `json:"stored"`
	FieldsOffset uint64              `json:"fields_index"`
	ChunkOffsets []uint64            `json:"chunk_offsets"`
	Fields       []FieldMeta         `json:"field_meta"`
	DocIDs       []string            `json:"ids"`
	NumDocs      uint64              `json:"doc_count"`
	FieldLengths map[string][]uint64 `json:"lengths,omitempty"`
}

// FieldMeta locates one field's postings region and term dictionary, in
// the order they are written.
type FieldMeta struct {
	Name           string `json:"name"`
	PostingsOffset uint64 `json:"postings_at"`
	PostingsSize   uint64 `json:"postings_len"`
	DictOffset     uint64 `json:"dict_at"`
	DictSize       uint64 `json:"dict_len"`
	TotalTokens    uint64 `json:"tokens,omitempty"`
	DocCount       uint64 `json:"docs,omitempty"`
}

// OneHitFlag marks an FST value that inlines a single docNum instead of
// pointing at a posting list. Applied only to terms that occur in exactly
// one document with frequency 1 (the _id field), where positions carry no
// information.
const OneHitFlag = uint64(1 << 63)

// IsOneHit reports whether an FST value uses 1-hit encoding.
func IsOneHit(val uint64) bool { return val&OneHitFlag != 0 }

// EncodeOneHit inlines a single docNum into an FST value.
func EncodeOneHit(docNum uint64) uint64 { return OneHitFlag | docNum }

// DecodeOneHit extracts the docNum from a 1-hit value.
func DecodeOneHit(val uint64) uint64 { return val &^ OneHitFlag }

// EncodePostings serializes a posting list as four sections: the count,
// delta-encoded docNums, frequencies, then each posting's position count
// with delta-encoded positions. Postings must be sorted by DocNum.
func EncodePostings(postings []Posting) []byte {
	out := binary.AppendUvarint(make([]byte, 0, 32*len(postings)), uint64(len(postings)))

	var last uint64
	for i := range postings {
		out = binary.AppendUvarint(out, postings[i].DocNum-last)
		last = postings[i].DocNum
	}
	for i := range postings {
		out = binary.AppendUvarint(out, postings[i].Frequency)
	}
	for i := range postings {
		out = appendDeltas(out, postings[i].Positions)
	}
	return out
}

// appendDeltas writes a count followed by the deltas of an ascending
// position list.
func appendDeltas(out []byte, positions []uint64) []byte {
	out = binary.AppendUvarint(out, uint64(len(positions)))
	var last uint64
	for _, p := range positions {
		out = binary.AppendUvarint(out, p-last)
		last = p
	}
	return out
}

// DecodePostings reverses EncodePostings. The input may extend past the
// posting list; trailing bytes are ignored.
func DecodePostings(data []byte) ([]Posting, error) {
	r := &uvarReader{data: data}

	count, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	// Each posting takes at least one byte per section, so a count beyond
	// the input length means corrupt data.
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("posting count %d beyond %d input bytes", count, len(data))
	}

	out := make([]Posting, count)
	var doc uint64
	for i := range out {
		delta, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		doc += delta
		out[i].DocNum = doc
	}
	for i := range out {
		if out[i].Frequency, err = r.uvarint(); err != nil {
			return nil, err
		}
	}
	for i := range out {
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		positions := make([]uint64, n)
		var pos uint64
		for j := range positions {
			delta, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			pos += delta
			positions[j] = pos
		}
		out[i].Positions = positions
	}
	return out, nil
}
