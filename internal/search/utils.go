package search

import (
	"slices"
	"strings"
)

// sortByScore sorts results by score, highest first, breaking ties on the
// external document ID so equal scores come out in a stable order.
func sortByScore(results []Result) {
	slices.SortFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.DocID, b.DocID)
		}
	})
}

// ranksBelow reports whether a sorts after b under the sortByScore order.
func ranksBelow(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}
