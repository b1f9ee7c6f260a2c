package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Doc is one synthetic benchmark document.
type Doc struct {
	ID     string
	Fields map[string]any
}

// vocabulary is ordered most to least frequent. Body filler samples it with
// a Zipf distribution, so head words show up in nearly every document and
// tail words in a shrinking share.
var vocabulary = []string{
	"the", "of", "and", "to", "a", "in", "is", "for", "with", "on",
	"system", "data", "index", "search", "query", "node", "server", "cluster",
	"network", "storage", "engine", "cache", "stream", "shard", "segment",
	"replica", "worker", "queue", "broker", "buffer", "socket", "thread",
	"event", "batch", "merge", "flush", "snapshot", "log", "record", "field",
	"term", "token", "document", "posting", "vector", "filter", "codec",
	"schema", "key", "value", "store", "disk", "memory", "latency", "backup",
	"restore", "compact", "cipher", "digest", "checksum",
}

// rareTiers injects words at fixed document intervals, giving the corpus a
// known set of progressively rarer terms. doc_1 receives every tier.
var rareTiers = []struct {
	every int
	word  string
}{
	{11, "gossip"},
	{29, "ledger"},
	{83, "beacon"},
	{211, "quartz"},
	{997, "zenith"},
}

var topics = []string{"search", "storage", "network", "security", "runtime", "analytics", "indexing", "replication"}

var adjectives = []string{"distributed", "inverted", "replicated", "persistent", "concurrent", "incremental", "columnar", "durable"}

var nouns = []string{"engine", "cluster", "index", "pipeline", "broker", "cache", "ledger", "gateway"}

// GenerateDocs builds a deterministic synthetic corpus: the same n always
// produces the same documents, so benchmark runs stay comparable.
func GenerateDocs(n int) []Doc {
	rng := rand.New(rand.NewSource(42))
	zipf := rand.NewZipf(rng, 1.3, 2, uint64(len(vocabulary)-1))

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	docs := make([]Doc, n)
	for i := range docs {
		topic := topics[rng.Intn(len(topics))]
		adj := adjectives[rng.Intn(len(adjectives))]
		noun := nouns[rng.Intn(len(nouns))]

		var rare []string
		for _, tier := range rareTiers {
			if i%tier.every == 0 {
				rare = append(rare, tier.word)
			}
		}

		docs[i] = Doc{
			ID: fmt.Sprintf("doc_%d", i+1),
			Fields: map[string]any{
				"title":      fmt.Sprintf("%s %s %s", adj, topic, noun),
				"body":       makeBody(rng, zipf, topic, rare),
				"summary":    makeSummary(rng, zipf, topic, adj, noun),
				"tags":       strings.Join([]string{topic, adj, noun}, " "),
				"published":  base.AddDate(0, 0, rng.Intn(1825)).Format("2006-01-02"),
				"popularity": float64(rng.Intn(1000)) / 100,
			},
		}
	}
	return docs
}

func word(zipf *rand.Zipf) string { return vocabulary[zipf.Uint64()] }

func makeBody(rng *rand.Rand, zipf *rand.Zipf, topic string, rare []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "the %s engine stores every %s record in a %s cluster. ", topic, word(zipf), word(zipf))

	n := 40 + rng.Intn(80)
	for i := 0; i < n; i++ {
		sb.WriteString(word(zipf))
		sb.WriteByte(' ')
	}

	if len(rare) > 0 {
		fmt.Fprintf(&sb, "tagged %s. ", strings.Join(rare, " "))
	}

	if rng.Intn(10) == 0 {
		sb.WriteString("replicated across the standby quorum.")
	} else {
		sb.WriteString(word(zipf))
		sb.WriteByte('.')
	}
	return sb.String()
}

func makeSummary(rng *rand.Rand, zipf *rand.Zipf, topic, adj, noun string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "a %s overview of the %s %s covering ", adj, topic, noun)

	n := 8 + rng.Intn(12)
	for i := 0; i < n; i++ {
		sb.WriteString(word(zipf))
		sb.WriteByte(' ')
	}
	sb.WriteString(word(zipf))
	return sb.String()
}
