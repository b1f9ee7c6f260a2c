package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/datetools"
	"sift/internal/index"
	"sift/internal/search"
)

func main() {
	n := 10000
	if len(os.Args) > 1 {
		v, err := strconv.Atoi(os.Args[1])
		if err != nil || v <= 0 {
			fatal(fmt.Errorf("bad document count %q", os.Args[1]))
		}
		n = v
	}

	started := time.Now()
	docs := GenerateDocs(n)
	fmt.Printf("sift benchmark, %d synthetic documents\n\n", len(docs))

	idx := benchmarkIndexing(docs)
	defer idx.Close()

	benchmarkConcurrentIndexing(docs)
	reportSegments(idx)

	snapshot, err := idx.Snapshot()
	if err != nil {
		fatal(err)
	}
	defer snapshot.Close()
	s := search.New(snapshot)
	defer s.Close()

	for _, su := range querySuites {
		banner(su.name + " queries")
		for _, q := range su.queries {
			lat, hits, err := measure(s, q)
			if err != nil {
				fmt.Printf("  %-52s error: %v\n", q, err)
				continue
			}
			fmt.Printf("  %-52s %9.2f µs %7d hits\n", q, float64(lat.Nanoseconds())/1e3, hits)
		}
		fmt.Println()
	}

	benchmarkConcurrentSearch(s)

	fmt.Printf("finished in %.2fs\n", time.Since(started).Seconds())
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "bench:", err)
	os.Exit(1)
}

func banner(name string) {
	fmt.Println(strings.ToUpper(name))
	fmt.Println(strings.Repeat("-", len(name)))
}

func benchConfig(dir string) index.Config {
	cfg := index.DefaultConfig(dir)
	// Low threshold so queries run against a realistic segment count.
	cfg.FlushThreshold = 1000
	cfg.DateFields = map[string]datetools.Resolution{"published": datetools.Day}
	return cfg
}

// benchmarkIndexing builds the index from scratch several times and reports
// the average run. The index from the final run stays open for the query
// benchmarks.
func benchmarkIndexing(docs []Doc) *index.Index {
	banner("indexing")

	// Throwaway pass so first-run allocation noise stays out of the numbers.
	warmDir, _ := os.MkdirTemp("", "sift-bench-*")
	warm, err := index.New(benchConfig(warmDir))
	if err != nil {
		fatal(err)
	}
	for _, d := range docs[:min(100, len(docs))] {
		warm.Index(d.ID, d.Fields)
	}
	warm.Close()
	os.RemoveAll(warmDir)

	const runs = 3
	var (
		total time.Duration
		idx   *index.Index
		dir   string
	)
	for r := 0; r < runs; r++ {
		if idx != nil {
			idx.Close()
			os.RemoveAll(dir)
		}
		dir, _ = os.MkdirTemp("", "sift-bench-*")

		start := time.Now()
		next, err := index.New(benchConfig(dir))
		if err != nil {
			fatal(err)
		}
		for _, d := range docs {
			if err := next.Index(d.ID, d.Fields); err != nil {
				fatal(err)
			}
		}
		if err := next.Flush(); err != nil {
			fatal(err)
		}
		total += time.Since(start)
		idx = next
	}

	avg := total / runs
	fmt.Printf("  %d docs in %v, %.0f docs/sec\n\n",
		len(docs), avg.Round(time.Millisecond), float64(len(docs))/avg.Seconds())
	return idx
}

// benchmarkConcurrentIndexing shards the corpus across writer goroutines
// feeding one index.
func benchmarkConcurrentIndexing(docs []Doc) {
	banner("concurrent indexing")

	for _, writers := range []int{2, 4, 8} {
		dir, _ := os.MkdirTemp("", "sift-bench-*")
		idx, err := index.New(benchConfig(dir))
		if err != nil {
			fatal(err)
		}

		chunk := (len(docs) + writers - 1) / writers
		start := time.Now()
		err = fanout(writers, func(w int) error {
			lo := min(w*chunk, len(docs))
			hi := min(lo+chunk, len(docs))
			for _, d := range docs[lo:hi] {
				if err := idx.Index(d.ID, d.Fields); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			err = idx.Flush()
		}
		elapsed := time.Since(start)

		idx.Close()
		os.RemoveAll(dir)

		if err != nil {
			fmt.Printf("  %d writers: %v\n", writers, err)
			continue
		}
		fmt.Printf("  %d writers: %-9v %.0f docs/sec\n",
			writers, elapsed.Round(time.Millisecond), float64(len(docs))/elapsed.Seconds())
	}
	fmt.Println()
}

// benchmarkConcurrentSearch measures query throughput with several
// goroutines sharing one searcher.
func benchmarkConcurrentSearch(s *search.Searcher) {
	banner("concurrent search")

	mix := []string{
		"the",
		"search AND cluster",
		`"the search engine"`,
		"se*",
		"published:[2023-01-01 TO *]",
	}
	const perWorker = 200

	for _, readers := range []int{2, 4, 8} {
		start := time.Now()
		err := fanout(readers, func(int) error {
			for i := 0; i < perWorker; i++ {
				if _, err := s.RunQueryString(mix[i%len(mix)]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			fmt.Printf("  %d readers: %v\n", readers, err)
			continue
		}
		elapsed := time.Since(start)
		fmt.Printf("  %d readers: %-9v %.0f queries/sec\n",
			readers, elapsed.Round(time.Millisecond), float64(readers*perWorker)/elapsed.Seconds())
	}
	fmt.Println()
}

func fanout(n int, task func(worker int) error) error {
	var g errgroup.Group
	for w := 0; w < n; w++ {
		g.Go(func() error { return task(w) })
	}
	return g.Wait()
}

// measure reports one query's hit count and its average latency over
// however many iterations fit in the sampling window.
func measure(s *search.Searcher, q string) (time.Duration, int, error) {
	results, err := s.RunQueryString(q)
	if err != nil {
		return 0, 0, err
	}
	hits := len(results)

	for i := 0; i < 5; i++ {
		s.RunQueryString(q)
	}

	var (
		iters   int
		elapsed time.Duration
	)
	for elapsed < 100*time.Millisecond && iters < 2000 {
		start := time.Now()
		for i := 0; i < 50; i++ {
			s.RunQueryString(q)
		}
		elapsed += time.Since(start)
		iters += 50
	}
	return elapsed / time.Duration(iters), hits, nil
}

func reportSegments(idx *index.Index) {
	banner("segments")

	var size int64
	var count uint64
	for _, seg := range idx.Segments() {
		stats, err := idx.SegmentStats(seg.ID)
		if err != nil {
			continue
		}
		size += stats.Size
		count += stats.NumDocs
		fmt.Printf("  %s  %6d docs  %10s  %v\n",
			seg.ID, stats.NumDocs, humanBytes(stats.Size), stats.Fields)
	}
	if count > 0 {
		fmt.Printf("  total %s in %d segments, %s per doc\n",
			humanBytes(size), idx.NumSegments(), humanBytes(size/int64(count)))
	}
	fmt.Println()
}

func humanBytes(n int64) string {
	units := []string{"KB", "MB", "GB"}
	v := float64(n)
	unit := ""
	for _, u := range units {
		if v < 1024 {
			break
		}
		v /= 1024
		unit = u
	}
	if unit == "" {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}

type querySuite struct {
	name    string
	queries []string
}

// Query terms come from the generator's vocabulary: zipf-distributed body
// filler, template phrases, and the injected rare tiers down to zenith.
var querySuites = []querySuite{
	{"term", []string{
		"the",
		"data",
		"index",
		"engine",
		"segment",
		"snapshot",
		"quorum",
		"gossip",
		"ledger",
		"beacon",
		"quartz",
		"zenith",
	}},
	{"field", []string{
		"title:search",
		"title:distributed",
		"title:engine",
		"body:record",
		"body:cache",
		"body:quorum",
		"summary:overview",
		"summary:stream",
		"tags:durable",
		"tags:network",
	}},
	{"phrase", []string{
		`"engine stores every"`,
		`"overview of the"`,
		`"the search engine"`,
		`"the storage engine"`,
		`"standby quorum"`,
		`"replicated across the standby quorum"`,
		`"a durable overview"`,
		`summary:"overview of the"`,
		`title:"search engine"`,
		`"quartz zenith"`,
	}},
	{"prefix", []string{
		"s*",
		"c*",
		"se*",
		"st*",
		"sto*",
		"rec*",
		"seg*",
		"quo*",
		"zen*",
		"title:dis*",
		"title:repl*",
		"body:rec*",
	}},
	{"boolean and", []string{
		"the AND engine",
		"index AND search",
		"the AND segment",
		"record AND quorum",
		"the AND gossip",
		"engine AND zenith",
		"segment AND snapshot",
		"merge AND flush",
		"index AND search AND query",
		"the AND a AND of AND in AND to",
		"title:search AND body:cache",
		"title:engine AND summary:overview",
		"tags:durable AND body:record",
	}},
	{"boolean or", []string{
		"the OR of",
		"search OR storage",
		"the OR zenith",
		"gossip OR ledger",
		"segment OR snapshot",
		"merge OR flush",
		"segment OR snapshot OR shard",
		"cache OR buffer OR queue OR broker OR socket",
		"title:search OR title:storage",
		"tags:engine OR tags:cluster OR tags:gateway",
	}},
	{"negation", []string{
		"engine AND -search",
		"record AND -cache",
		"the AND -quorum",
		"cluster AND -segment",
		"the AND -gossip",
		"engine AND -zenith",
		"the AND -gossip AND -ledger",
		"index AND -segment AND -snapshot AND -shard",
		"record AND -title:search",
		"engine AND -tags:durable",
		"summary:overview AND -body:quorum",
	}},
	{"grouping", []string{
		"(search OR storage) AND cluster",
		"(gossip OR ledger) AND engine",
		"record AND (cache OR buffer)",
		"quorum AND (merge OR flush)",
		"(search OR storage) AND (cache OR buffer)",
		"(segment OR shard) AND (merge OR compact)",
		"((search OR storage) AND cluster) OR beacon",
		"(index AND query) OR (merge AND flush)",
		"((title:search OR title:storage) AND body:record) OR body:zenith",
	}},
	{"range", []string{
		"published:[2021-01-01 TO 2021-12-31]",
		"published:[2023-06-01 TO *]",
		"published:[* TO 2020-06-30]",
		"published:[2022-03-15 TO 2022-03-15]",
		"title:[columnar TO durable]",
		"tags:[network TO search]",
	}},
	{"fuzzy and regex", []string{
		"serch~",
		"segmant~1",
		"clustre~2",
		"/quo.*/",
		"/s(egment|napshot)/",
		"/led.er/",
		"title:/repl.*ed/",
	}},
	{"mixed", []string{
		`"the search engine" AND cluster`,
		`"standby quorum" OR "quartz zenith"`,
		`"engine stores every" AND -gossip`,
		"se* AND cluster",
		"(se* OR sto*) AND record",
		`title:dis* AND "standby quorum"`,
		`(title:search OR title:storage) AND "overview of the" AND -beacon`,
		"published:[2022-01-01 TO 2022-12-31] AND title:search",
		`(search OR storage OR network) AND (cache OR buffer OR queue) AND (title:distributed OR title:durable) AND -gossip AND -ledger`,
	}},
}
