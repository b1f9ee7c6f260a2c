package segment

import "testing"

func testPostings(docNums ...uint64) []Posting {
	postings := make([]Posting, len(docNums))
	for i, d := range docNums {
		postings[i] = Posting{DocNum: d, Frequency: 1, Positions: []uint64{0}}
	}
	return postings
}

func TestPostingsIterator_Next_WalksInOrder(t *testing.T) {
	it := NewPostingsIterator(testPostings(2, 5, 9))

	var got []uint64
	for it.Next() {
		got = append(got, it.Doc())
	}
	want := []uint64{2, 5, 9}
	if len(got) != len(want) {
		t.Fatalf("visited %d docs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("doc %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPostingsIterator_Next_Empty(t *testing.T) {
	it := NewPostingsIterator(nil)
	if it.Next() {
		t.Error("Next on empty iterator should return false")
	}
	// exhaustion is sticky
	if it.Next() {
		t.Error("Next after exhaustion should stay false")
	}
}

func TestPostingsIterator_SeekTo_LandsOnOrAfterTarget(t *testing.T) {
	it := NewPostingsIterator(testPostings(2, 5, 9, 14))

	if !it.SeekTo(5) {
		t.Fatal("SeekTo(5) should succeed")
	}
	if it.Doc() != 5 {
		t.Errorf("Doc after SeekTo(5): got %d, want 5", it.Doc())
	}

	if !it.SeekTo(6) {
		t.Fatal("SeekTo(6) should succeed")
	}
	if it.Doc() != 9 {
		t.Errorf("Doc after SeekTo(6): got %d, want 9", it.Doc())
	}
}

func TestPostingsIterator_SeekTo_NeverMovesBackward(t *testing.T) {
	it := NewPostingsIterator(testPostings(2, 5, 9))

	it.SeekTo(9)
	if !it.SeekTo(3) {
		t.Fatal("SeekTo below current doc should keep the current doc")
	}
	if it.Doc() != 9 {
		t.Errorf("Doc after backward SeekTo: got %d, want 9", it.Doc())
	}
}

func TestPostingsIterator_SeekTo_PastEnd(t *testing.T) {
	it := NewPostingsIterator(testPostings(2, 5))

	if it.SeekTo(100) {
		t.Error("SeekTo past the last doc should return false")
	}
	if it.Next() {
		t.Error("Next after exhaustion should return false")
	}
}

func TestPostingsIterator_SeekTo_FromUnstarted(t *testing.T) {
	it := NewPostingsIterator(testPostings(7, 11))

	if !it.SeekTo(0) {
		t.Fatal("SeekTo(0) should land on the first doc")
	}
	if it.Doc() != 7 {
		t.Errorf("Doc: got %d, want 7", it.Doc())
	}
}

func TestPostingsIterator_AccessorsTrackCurrent(t *testing.T) {
	postings := []Posting{
		{DocNum: 3, Frequency: 2, Positions: []uint64{1, 8}},
		{DocNum: 6, Frequency: 1, Positions: []uint64{4}},
	}
	it := NewPostingsIterator(postings)

	it.Next()
	if it.Doc() != 3 || it.Freq() != 2 {
		t.Errorf("first: doc %d freq %d", it.Doc(), it.Freq())
	}
	if len(it.Positions()) != 2 || it.Positions()[1] != 8 {
		t.Errorf("first positions: %v", it.Positions())
	}

	it.Next()
	if it.Doc() != 6 || it.Freq() != 1 {
		t.Errorf("second: doc %d freq %d", it.Doc(), it.Freq())
	}
}

func TestPostingsIterator_Len(t *testing.T) {
	if n := NewPostingsIterator(testPostings(1, 2, 3)).Len(); n != 3 {
		t.Errorf("Len: got %d, want 3", n)
	}
	if n := NewPostingsIterator(nil).Len(); n != 0 {
		t.Errorf("Len of empty: got %d, want 0", n)
	}
}
