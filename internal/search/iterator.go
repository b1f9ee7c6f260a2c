package search

import "math"

// NoMoreDocs is the terminal document number an iterator reports once its
// stream is exhausted. Every real document number is below it.
const NoMoreDocs = math.MaxInt32

// DocIterator is a stream of ascending document numbers local to one
// reader. DocID reports the current position without moving: -1 before the
// first NextDoc, NoMoreDocs after exhaustion. Iterators only move forward;
// once exhausted they stay exhausted.
type DocIterator interface {
	// DocID returns the current document number.
	DocID() int

	// NextDoc advances to the next document and returns it, or NoMoreDocs
	// when the stream ends.
	NextDoc() (int, error)

	// Advance moves to the first document at or past target and returns
	// it, or NoMoreDocs. Advancing to a target at or before the current
	// document stays put.
	Advance(target int) (int, error)
}

// Scorer is a DocIterator that can score the document it is positioned on.
// Score is only meaningful while DocID is a real document number, and may
// be called more than once per position.
type Scorer interface {
	DocIterator
	Score() (float64, error)
}

// termReporter names the index terms that match the current document.
// Leaves report their own term only when positioned on doc, so composites
// can forward to every sub-scorer blindly. Scorers without terms (match
// all, field value) simply do not implement it.
type termReporter interface {
	reportTerms(doc int, add func(term string))
}

// forwardTerms forwards a reportTerms call to a sub-scorer when it
// participates in term reporting.
func forwardTerms(sc Scorer, doc int, add func(string)) {
	if tr, ok := sc.(termReporter); ok {
		tr.reportTerms(doc, add)
	}
}
