package search

import "testing"

func TestPhraseMatch_AdjacentPositions(t *testing.T) {
	// "quick" at 2, "brown" at 3, "fox" at 4
	positions := [][]uint64{
		{2, 9},
		{3},
		{4, 12},
	}
	if !phraseMatch(positions) {
		t.Error("expected match for consecutive positions 2,3,4")
	}
}

func TestPhraseMatch_GapBreaksPhrase(t *testing.T) {
	// "hello" at 0, "world" at 2: one word in between
	positions := [][]uint64{
		{0},
		{2},
	}
	if phraseMatch(positions) {
		t.Error("expected no match with a position gap")
	}
}

func TestPhraseMatch_WrongOrder(t *testing.T) {
	positions := [][]uint64{
		{5},
		{4},
	}
	if phraseMatch(positions) {
		t.Error("expected no match for reversed positions")
	}
}

func TestPhraseMatch_AnyStartPositionCounts(t *testing.T) {
	// The first occurrence fails, a later one lines up
	positions := [][]uint64{
		{1, 7},
		{8},
	}
	if !phraseMatch(positions) {
		t.Error("expected match starting at position 7")
	}
}

func TestPhraseMatch_Empty(t *testing.T) {
	if phraseMatch(nil) {
		t.Error("expected no match for no position lists")
	}
	if phraseMatch([][]uint64{{}, {1}}) {
		t.Error("expected no match when a term has no positions")
	}
}
