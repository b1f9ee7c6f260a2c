package segment

import (
	"sort"
)

// PostingsIterator steps through a posting list in docNum order. The zero
// position is before the first posting; call Next or SeekTo to position it.
type PostingsIterator struct {
	postings []Posting
	i        int
}

// NewPostingsIterator wraps a decoded posting list, which must be sorted by
// DocNum.
func NewPostingsIterator(postings []Posting) *PostingsIterator {
	return &PostingsIterator{postings: postings, i: -1}
}

// Len returns the number of postings in the list.
func (it *PostingsIterator) Len() int { return len(it.postings) }

// Next advances to the next posting. Returns false once the list is done.
func (it *PostingsIterator) Next() bool {
	if it.i+1 >= len(it.postings) {
		it.i = len(it.postings)
		return false
	}
	it.i++
	return true
}

// SeekTo advances to the first posting with DocNum >= target, never moving
// backward. Returns false once the list is done.
func (it *PostingsIterator) SeekTo(target uint64) bool {
	if it.i >= len(it.postings) {
		return false
	}
	from := it.i
	if from < 0 {
		from = 0
	}
	rest := it.postings[from:]
	n := sort.Search(len(rest), func(j int) bool {
		return rest[j].DocNum >= target
	})
	it.i = from + n
	return it.i < len(it.postings)
}

// Doc returns the current posting's docNum.
func (it *PostingsIterator) Doc() uint64 { return it.postings[it.i].DocNum }

// Freq returns the current posting's term frequency.
func (it *PostingsIterator) Freq() uint64 { return it.postings[it.i].Frequency }

// Positions returns the current posting's term positions.
func (it *PostingsIterator) Positions() []uint64 { return it.postings[it.i].Positions }
