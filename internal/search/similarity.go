package search

import (
	"math"

	"sift/internal/index"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// termWeight carries the collection-wide statistics one term's scorers
// share: document frequency summed over every reader, so a document scores
// the same no matter which segment holds it.
type termWeight struct {
	mode  index.ScoringMode
	idf   float64
	avgdl float64
}

func newTermWeight(mode index.ScoringMode, df, totalDocs uint64, avgdl float64) *termWeight {
	w := &termWeight{mode: mode, avgdl: avgdl}
	if w.avgdl == 0 {
		w.avgdl = 1
	}
	n, d := float64(totalDocs), float64(df)
	if mode == index.ScoringBM25 {
		w.idf = math.Log(1 + (n-d+0.5)/(d+0.5))
	} else {
		w.idf = math.Log((n+1)/(d+1)) + 1
	}
	return w
}

// score computes the similarity for a document given its raw term
// frequency and the length of the matched field.
func (w *termWeight) score(tf, fieldLength float64) float64 {
	if w.mode == index.ScoringBM25 {
		if fieldLength == 0 {
			fieldLength = w.avgdl
		}
		return w.idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*fieldLength/w.avgdl))
	}
	if tf <= 0 {
		return 0
	}
	return (1 + math.Log(tf)) * w.idf
}
