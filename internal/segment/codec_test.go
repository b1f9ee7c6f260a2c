package segment

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestPostingsRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		postings []Posting
	}{
		{
			"single posting",
			[]Posting{{DocNum: 0, Frequency: 1, Positions: []uint64{4}}},
		},
		{
			"adjacent docs",
			[]Posting{
				{DocNum: 7, Frequency: 1, Positions: []uint64{0}},
				{DocNum: 8, Frequency: 1, Positions: []uint64{2}},
			},
		},
		{
			"wide gaps",
			[]Posting{
				{DocNum: 3, Frequency: 1, Positions: []uint64{1}},
				{DocNum: 90000, Frequency: 1, Positions: []uint64{12}},
				{DocNum: 4000000, Frequency: 1, Positions: []uint64{700}},
			},
		},
		{
			"many positions",
			[]Posting{
				{DocNum: 2, Frequency: 5, Positions: []uint64{0, 1, 19, 20, 350}},
				{DocNum: 6, Frequency: 2, Positions: []uint64{8, 4096}},
			},
		},
		{
			"large doc numbers",
			[]Posting{{DocNum: 1 << 40, Frequency: 9, Positions: []uint64{1 << 30}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePostings(EncodePostings(tt.postings))
			if err != nil {
				t.Fatalf("DecodePostings: %v", err)
			}
			if !reflect.DeepEqual(got, tt.postings) {
				t.Errorf("round trip\n got: %+v\nwant: %+v", got, tt.postings)
			}
		})
	}
}

func TestPostingsRoundTripEmpty(t *testing.T) {
	got, err := DecodePostings(EncodePostings(nil))
	if err != nil {
		t.Fatalf("DecodePostings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d postings, want none", len(got))
	}
}

func TestDecodePostingsCorrupt(t *testing.T) {
	full := EncodePostings([]Posting{
		{DocNum: 11, Frequency: 2, Positions: []uint64{5, 40}},
		{DocNum: 13, Frequency: 1, Positions: []uint64{9}},
	})

	cases := map[string][]byte{
		"no data":         {},
		"count only":      full[:1],
		"truncated tail":  full[:len(full)-1],
		"oversized count": binary.AppendUvarint(nil, 1<<50),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodePostings(data); err == nil {
				t.Errorf("DecodePostings(%v) succeeded, want error", data)
			}
		})
	}
}

func TestOneHitEncoding(t *testing.T) {
	for _, docNum := range []uint64{0, 1, 42, 1 << 40} {
		val := EncodeOneHit(docNum)
		if !IsOneHit(val) {
			t.Errorf("EncodeOneHit(%d) not flagged", docNum)
		}
		if got := DecodeOneHit(val); got != docNum {
			t.Errorf("DecodeOneHit(EncodeOneHit(%d)) = %d", docNum, got)
		}
	}

	// File offsets sit far below the flag bit and must never read as
	// one-hit values.
	for _, offset := range []uint64{0, 17, 1 << 32} {
		if IsOneHit(offset) {
			t.Errorf("offset %d misread as one-hit", offset)
		}
	}
}
