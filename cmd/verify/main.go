package main

import (
	"fmt"
	"os"
	"slices"

	"sift/internal/datetools"
	"sift/internal/index"
	"sift/internal/query"
	"sift/internal/search"
)

// fixture is one document of the known corpus.
type fixture struct {
	id  string
	doc map[string]any
}

// check pairs a query with the IDs it must return, in any order. Queries
// the language cannot express (dismax, field score, match all) carry a
// pre-built tree instead of a string.
type check struct {
	input string
	tree  query.Query
	want  []string
}

type suite struct {
	name   string
	checks []check
}

func main() {
	dir, err := os.MkdirTemp("", "sift-verify-*")
	if err != nil {
		fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := index.DefaultConfig(dir)
	// A low threshold spreads the corpus over sealed segments plus the
	// live builder, so every query crosses reader boundaries.
	cfg.FlushThreshold = 10
	cfg.DateFields = map[string]datetools.Resolution{"published": datetools.Day}

	idx, err := index.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer idx.Close()

	docs := corpus()
	for _, f := range docs {
		if err := idx.Index(f.id, f.doc); err != nil {
			fatal(fmt.Errorf("index %s: %w", f.id, err))
		}
	}
	if err := idx.Flush(); err != nil {
		fatal(err)
	}
	fmt.Printf("indexed %d documents into %d segments\n", len(docs), idx.NumSegments())

	snapshot, err := idx.Snapshot()
	if err != nil {
		fatal(err)
	}
	defer snapshot.Close()
	s := search.New(snapshot)
	defer s.Close()

	var passed, failed int
	for _, su := range suites() {
		fmt.Printf("\n%s\n", su.name)
		for _, c := range su.checks {
			if runCheck(s, c) {
				passed++
			} else {
				failed++
			}
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "verify:", err)
	os.Exit(1)
}

func runCheck(s *search.Searcher, c check) bool {
	label := c.input
	var results []search.Result
	var err error
	if c.tree != nil {
		label = c.tree.String()
		results, err = s.RunQuery(c.tree)
	} else {
		results, err = s.RunQueryString(c.input)
	}
	if err != nil {
		fmt.Printf("  FAIL %s\n    error: %v\n", label, err)
		return false
	}

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.DocID
	}
	slices.Sort(got)
	want := slices.Clone(c.want)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		fmt.Printf("  FAIL %s\n    want %v\n    got  %v\n", label, want, got)
		return false
	}
	fmt.Printf("  ok   %s\n", label)
	return true
}

// corpus returns the fixed document set every check is derived from.
// Term placement is deliberate: kafka, cache and postgres each span
// several docs, backup/restore and consumer/lag pair up for phrases,
// and deploy/downtime/drill share a title prefix range.
func corpus() []fixture {
	return []fixture{
		{"w01", map[string]any{
			"title":      "Kafka Cluster Upgrade",
			"body":       "Upgrade the kafka brokers one rack at a time and watch consumer lag.",
			"tags":       "kafka messaging upgrade infra",
			"published":  "2022-02-11",
			"popularity": 6.3,
		}},
		{"w02", map[string]any{
			"title":      "Redis Cache Sizing",
			"body":       "Size the redis cache from peak traffic and plan for failover capacity.",
			"tags":       "redis cache capacity infra",
			"published":  "2022-04-02",
			"popularity": 7.8,
		}},
		{"w03", map[string]any{
			"title":      "Postgres Backup Runbook",
			"body":       "Take a postgres base backup nightly and replay wal files to verify restore.",
			"tags":       "postgres backup storage runbook",
			"published":  "2022-07-19",
			"popularity": 8.4,
		}},
		{"w04", map[string]any{
			"title":      "Consumer Lag Alerts",
			"body":       "Alert when consumer lag grows for ten minutes and page the stream team.",
			"tags":       "kafka alerts monitoring",
			"published":  "2022-10-08",
			"popularity": 5.1,
		}},
		{"w05", map[string]any{
			"title":      "Traffic Shaping Guide",
			"body":       "Shape ingress traffic with rate limits so a burst cannot starve the cache.",
			"tags":       "traffic limits gateway",
			"published":  "2022-12-30",
			"popularity": 4.6,
		}},
		{"w06", map[string]any{
			"title":      "Gateway Deploy Checklist",
			"body":       "Deploy the gateway in waves and verify upstream health between waves.",
			"tags":       "gateway deploy checklist",
			"published":  "2023-03-14",
			"popularity": 6.9,
		}},
		{"w07", map[string]any{
			"title":      "Deploy Rollback Steps",
			"body":       "Roll back a bad deploy by promoting the previous build and flushing the cache.",
			"tags":       "deploy rollback runbook",
			"published":  "2023-05-21",
			"popularity": 7.2,
		}},
		{"w08", map[string]any{
			"title":      "Incident Response Basics",
			"body":       "Declare an incident early, assign a commander and keep the timeline current.",
			"tags":       "incident oncall process",
			"published":  "2023-06-30",
			"popularity": 9.2,
		}},
		{"w09", map[string]any{
			"title":      "Postmortem Writing Guide",
			"body":       "Write the postmortem within two days while the incident timeline is fresh.",
			"tags":       "incident postmortem process",
			"published":  "2023-09-12",
			"popularity": 6.1,
		}},
		{"w10", map[string]any{
			"title":      "Oncall Rotation Policy",
			"body":       "Every rotation has a primary and a secondary, and the secondary owns paging escalation.",
			"tags":       "oncall rotation policy",
			"published":  "2023-11-25",
			"popularity": 3.8,
		}},
		{"w11", map[string]any{
			"title":      "Storage Capacity Forecast",
			"body":       "Forecast disk growth per quarter and order storage before the cluster fills.",
			"tags":       "storage capacity forecast",
			"published":  "2024-01-17",
			"popularity": 5.5,
		}},
		{"w12", map[string]any{
			"title":      "Stream Processing Overview",
			"body":       "The stream pipeline reads from kafka, enriches events and writes to postgres.",
			"tags":       "stream pipeline kafka postgres",
			"published":  "2024-02-28",
			"popularity": 8.1,
		}},
		{"w13", map[string]any{
			"title":      "Rate Limit Tuning",
			"body":       "Tune each rate limit from observed traffic and alert on sustained throttling.",
			"tags":       "limits tuning gateway",
			"published":  "2024-04-09",
			"popularity": 4.2,
		}},
		{"w14", map[string]any{
			"title":      "Search Latency Budget",
			"body":       "Keep search latency under the budget by capping fanout and caching hot terms.",
			"tags":       "search latency budget",
			"published":  "2024-05-30",
			"popularity": 7.5,
		}},
		{"w15", map[string]any{
			"title":      "Zero Downtime Migrations",
			"body":       "Migrate schemas in steps so reads and writes keep working during the change.",
			"tags":       "migrations postgres process",
			"published":  "2024-07-04",
			"popularity": 8.8,
		}},
		{"w16", map[string]any{
			"title":      "Backup Restore Drill",
			"body":       "Run a restore drill monthly and time how long the backup takes to replay.",
			"tags":       "backup drill storage",
			"published":  "2024-08-16",
			"popularity": 6.6,
		}},
	}
}

func ids(v ...string) []string { return v }

func allIDs() []string {
	out := make([]string, 16)
	for i := range out {
		out[i] = fmt.Sprintf("w%02d", i+1)
	}
	return out
}

func suites() []suite {
	return []suite{
		{"term queries", []check{
			{input: "kafka", want: ids("w01", "w04", "w12")},
			{input: "cache", want: ids("w02", "w05", "w07")},
			{input: "deploy", want: ids("w06", "w07")},
			{input: "incident", want: ids("w08", "w09")},
			{input: "drill", want: ids("w16")},
			{input: "storage", want: ids("w03", "w11", "w16")},
			{input: "timeline", want: ids("w08", "w09")},
			{input: "quorum", want: nil},
		}},
		{"field scoped", []check{
			{input: "title:deploy", want: ids("w06", "w07")},
			{input: "title:backup", want: ids("w03", "w16")},
			{input: "title:guide", want: ids("w05", "w09")},
			{input: "body:kafka", want: ids("w01", "w12")},
			{input: "body:traffic", want: ids("w02", "w05", "w13")},
			{input: "tags:kafka", want: ids("w01", "w04", "w12")},
			{input: "tags:process", want: ids("w08", "w09", "w15")},
			{input: "tags:gateway", want: ids("w05", "w06", "w13")},
			{input: "tags:runbook", want: ids("w03", "w07")},
		}},
		{"phrases", []check{
			{input: `"consumer lag"`, want: ids("w01", "w04")},
			{input: `"rate limits"`, want: ids("w05")},
			{input: `"rate limit"`, want: ids("w13")},
			{input: `"incident timeline"`, want: ids("w09")},
			{input: `"the timeline"`, want: ids("w08")},
			{input: `"consumer lag alerts"`, want: ids("w04")},
			{input: `"lag consumer"`, want: nil},
			{input: `"kafka brokers"`, want: ids("w01")},
			{input: `"stream team"`, want: ids("w04")},
			{input: `title:"backup restore"`, want: ids("w16")},
			{input: `body:"backup restore"`, want: nil},
		}},
		{"prefixes", []check{
			{input: "back*", want: ids("w03", "w07", "w16")},
			{input: "roll*", want: ids("w07")},
			{input: "time*", want: ids("w01", "w08", "w09", "w16")},
			{input: "sto*", want: ids("w03", "w11", "w16")},
			{input: "cap*", want: ids("w02", "w11", "w14")},
			{input: "pag*", want: ids("w04", "w10")},
			{input: "title:back*", want: ids("w03", "w16")},
			{input: "tags:lim*", want: ids("w05", "w13")},
		}},
		{"boolean and", []check{
			{input: "kafka AND consumer", want: ids("w01", "w04")},
			{input: "kafka AND postgres", want: ids("w12")},
			{input: "backup AND replay", want: ids("w03", "w16")},
			{input: "deploy AND cache", want: ids("w07")},
			{input: "redis AND kafka", want: nil},
			{input: "incident AND timeline AND postmortem", want: ids("w09")},
			{input: "title:deploy AND tags:rollback", want: ids("w07")},
			{input: "storage AND capacity", want: ids("w11")},
			{input: "traffic AND cache", want: ids("w02", "w05")},
		}},
		{"boolean or", []check{
			{input: "redis OR postgres", want: ids("w02", "w03", "w12", "w15")},
			{input: "rollback OR postmortem", want: ids("w07", "w09")},
			{input: "kafka OR redis OR postgres", want: ids("w01", "w02", "w03", "w04", "w12", "w15")},
			{input: "title:guide OR title:runbook", want: ids("w03", "w05", "w09")},
			{input: "tags:oncall OR tags:postmortem", want: ids("w08", "w09", "w10")},
		}},
		{"negation", []check{
			{input: "kafka AND NOT stream", want: ids("w01")},
			{input: "kafka AND -stream", want: ids("w01")},
			{input: "cache AND NOT redis", want: ids("w05", "w07")},
			{input: "backup AND NOT drill", want: ids("w03")},
			{input: "incident AND NOT postmortem AND NOT oncall", want: nil},
			{input: "incident -postmortem", want: ids("w08")},
			{input: "tags:storage AND NOT backup", want: ids("w11")},
			{input: "postgres AND -backup", want: ids("w12", "w15")},
		}},
		{"grouping", []check{
			{input: "(redis OR postgres) AND capacity", want: ids("w02")},
			{input: "(deploy OR rollback) AND cache", want: ids("w07")},
			{input: "(consumer AND lag) OR (rate AND limit)", want: ids("w01", "w04", "w13")},
			{input: "kafka AND (upgrade OR alerts)", want: ids("w01", "w04")},
			{input: "(backup OR restore) AND (drill OR runbook)", want: ids("w03", "w16")},
			{input: "(incident OR oncall) AND process", want: ids("w08", "w09")},
		}},
		{"mixed", []check{
			{input: `"consumer lag" AND alerts`, want: ids("w04")},
			{input: `"rate limit" OR "rate limits"`, want: ids("w05", "w13")},
			{input: "back* AND tags:storage", want: ids("w03", "w16")},
			{input: `"incident timeline" AND NOT fresh`, want: nil},
			{input: "cap* AND title:forecast", want: ids("w11")},
			{input: "(back* OR roll*) AND deploy", want: ids("w07")},
			{input: `title:guide AND "rate limits"`, want: ids("w05")},
		}},
		{"term ranges", []check{
			{input: "title:[backup TO cache]", want: ids("w02", "w03", "w08", "w14", "w16")},
			{input: "title:[search TO *]", want: ids("w01", "w02", "w05", "w07", "w09", "w11", "w12", "w13", "w14", "w15")},
			{input: "title:[* TO budget]", want: ids("w03", "w04", "w08", "w14", "w16")},
			{input: "tags:[redis TO redis]", want: ids("w02")},
			{input: "title:[damp TO dz]", want: ids("w06", "w07", "w15", "w16")},
			{input: "title:[x TO zzz]", want: ids("w15")},
		}},
		{"date ranges", []check{
			{input: "published:[2022-01-01 TO 2022-12-31]", want: ids("w01", "w02", "w03", "w04", "w05")},
			{input: "published:[2023-01-01 TO 2023-12-31]", want: ids("w06", "w07", "w08", "w09", "w10")},
			{input: "published:[2024-01-01 TO *]", want: ids("w11", "w12", "w13", "w14", "w15", "w16")},
			{input: "published:[* TO 2022-12-31]", want: ids("w01", "w02", "w03", "w04", "w05")},
			{input: "published:[2023-06-30 TO 2023-06-30]", want: ids("w08")},
			{input: "published:[2023-01-01 TO 2023-12-31] AND incident", want: ids("w08", "w09")},
		}},
		{"regex", []check{
			{input: "/lim(it|its)/", want: ids("w05", "w13")},
			{input: "/time(line)?/", want: ids("w01", "w08", "w09", "w16")},
			{input: "title:/s.zing/", want: ids("w02")},
			{input: "/(roll|fall)back/", want: ids("w07")},
			{input: "/upgrad(e|ed|ing)/", want: ids("w01")},
		}},
		{"fuzzy", []check{
			{input: "kafk~1", want: ids("w01", "w04", "w12")},
			{input: "gatway~1", want: ids("w05", "w06", "w13")},
			{input: "drilll~1", want: ids("w16")},
			{input: "postgers~2", want: ids("w03", "w12", "w15")},
			// "reads" in w15 is also within two edits of redsi.
			{input: "redsi~2", want: ids("w02", "w15")},
		}},
		{"dismax", []check{
			{tree: &query.DisMaxQuery{Queries: []query.Query{
				&query.TermQuery{Field: "title", Term: "backup"},
				&query.TermQuery{Field: "body", Term: "backup"},
			}, TieBreaker: 0.5}, want: ids("w03", "w16")},
			{tree: &query.DisMaxQuery{Queries: []query.Query{
				&query.TermQuery{Field: "tags", Term: "oncall"},
				&query.TermQuery{Field: "tags", Term: "incident"},
			}}, want: ids("w08", "w09", "w10")},
			{tree: &query.DisMaxQuery{Queries: []query.Query{
				&query.TermQuery{Field: "title", Term: "guide"},
				&query.TermQuery{Field: "title", Term: "runbook"},
				&query.TermQuery{Field: "title", Term: "overview"},
			}, TieBreaker: 0.3}, want: ids("w03", "w05", "w09", "w12")},
			{tree: &query.DisMaxQuery{Queries: []query.Query{
				&query.PhraseQuery{Field: "body", Phrase: "consumer lag"},
				&query.TermQuery{Field: "tags", Term: "monitoring"},
			}, TieBreaker: 1}, want: ids("w01", "w04")},
		}},
		{"edge cases", []check{
			{input: "quorum AND kafka", want: nil},
			{input: "zero", want: ids("w15")},
			{input: "sizing", want: ids("w02")},
			{input: "kafka OR cache OR backup OR incident OR storage OR gateway OR search OR migrations OR oncall OR rate",
				want: allIDs()},
			{tree: &query.MatchAllQuery{}, want: allIDs()},
			{tree: &query.FieldScoreQuery{Field: "popularity"}, want: allIDs()},
		}},
	}
}
