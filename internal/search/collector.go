package search

// topCollector keeps the k best hits seen so far. Hits live in a binary
// min-heap under the sortByScore order, so the weakest kept hit sits at
// the root and a new hit only enters by beating it.
type topCollector struct {
	k    int
	hits []Result
}

func newTopCollector(k int) *topCollector {
	return &topCollector{k: k, hits: make([]Result, 0, min(k, 1024))}
}

// collect offers one hit. Below capacity it always enters; at capacity it
// replaces the root only when it ranks above it.
func (c *topCollector) collect(r Result) {
	if c.k == 0 {
		return
	}
	if len(c.hits) < c.k {
		c.hits = append(c.hits, r)
		c.siftUp(len(c.hits) - 1)
		return
	}
	if !ranksBelow(c.hits[0], r) {
		return
	}
	c.hits[0] = r
	c.siftDown(0)
}

func (c *topCollector) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !ranksBelow(c.hits[i], c.hits[parent]) {
			return
		}
		c.hits[i], c.hits[parent] = c.hits[parent], c.hits[i]
		i = parent
	}
}

func (c *topCollector) siftDown(i int) {
	for {
		lowest := i
		if l := 2*i + 1; l < len(c.hits) && ranksBelow(c.hits[l], c.hits[lowest]) {
			lowest = l
		}
		if r := 2*i + 2; r < len(c.hits) && ranksBelow(c.hits[r], c.hits[lowest]) {
			lowest = r
		}
		if lowest == i {
			return
		}
		c.hits[i], c.hits[lowest] = c.hits[lowest], c.hits[i]
		i = lowest
	}
}

// results hands back the kept hits sorted best first. The collector is
// spent afterwards.
func (c *topCollector) results() []Result {
	hits := c.hits
	c.hits = nil
	sortByScore(hits)
	return hits
}
