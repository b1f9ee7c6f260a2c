package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sift/internal/config"
	"sift/internal/index"
	"sift/internal/query"
	"sift/internal/search"

	"github.com/c-bata/go-prompt"
)

type REPL struct {
	idx *index.Index
}

// searcher opens a snapshot-backed searcher. The returned func tears
// both down and must run once the results have been printed.
func (r *REPL) searcher() (*search.Searcher, func(), error) {
	snap, err := r.idx.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	s := search.New(snap)
	return s, func() { s.Close(); snap.Close() }, nil
}

// errUsage makes the dispatcher print the command's usage line.
var errUsage = errors.New("usage")

// command is one REPL verb. Handlers receive the words after the verb
// and the raw remainder of the line, which keeps its original spacing
// for JSON bodies and quoted queries.
type command struct {
	usage   string
	summary string
	run     func(r *REPL, args []string, rest string) error
}

var commandOrder = []string{
	"index", "delete", "get", "flush", "merge", "search", "top",
	"stats", "fields", "segments", "segment", "doc", "dump", "demo",
}

var commands = map[string]*command{
	"index":    {"index <id> <json>", "queue a document for the next flush", cmdIndex},
	"delete":   {"delete <id>", "tombstone a document", cmdDelete},
	"get":      {"get <id>", "print a stored document", cmdGet},
	"flush":    {"flush", "write queued documents to a segment", cmdFlush},
	"merge":    {"merge", "compact segments, dropping deleted docs", cmdMerge},
	"search":   {"search [--field=F] [--and|--or|--dismax=T] <query>", "run a query", cmdSearch},
	"top":      {"top <k> <query>", "keep only the k best hits", cmdTop},
	"stats":    {"stats", "index totals", cmdStats},
	"fields":   {"fields", "list indexed field names", cmdFields},
	"segments": {"segments", "list on-disk segments", cmdSegments},
	"segment":  {"segment <id> stats", "per-segment counters", cmdSegmentInfo},
	"doc":      {"doc <segment> <docnum>", "load a stored document by position", cmdDoc},
	"dump":     {"dump postings <field> <term> | dump deletions <seg>", "inspect raw index data", cmdDump},
	"demo":     {"demo", "index a sample corpus and run example queries", cmdDemo},
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	indexCfg, err := cfg.Index.Build()
	if err != nil {
		fatal("index settings", err)
	}

	idx, err := index.New(indexCfg)
	if err != nil {
		fatal("open index", err)
	}

	r := &REPL{idx: idx}
	fmt.Printf("sift: %s holds %d segments\n", indexCfg.Dir, idx.NumSegments())
	fmt.Println(`type "help" for commands`)

	p := prompt.New(
		r.executor,
		func(prompt.Document) []prompt.Suggest { return nil },
		prompt.OptionPrefix("sift >> "),
		prompt.OptionTitle("sift"),
	)
	p.Run()
}

func fatal(context string, err error) {
	fmt.Fprintf(os.Stderr, "sift: %s: %v\n", context, err)
	os.Exit(1)
}

func (r *REPL) executor(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "help":
		printHelp()
		return
	case "quit", "exit":
		fmt.Println("bye")
		r.idx.Close()
		os.Exit(0)
	}

	cmd, ok := commands[verb]
	if !ok {
		fmt.Printf("unknown command %q, try help\n", verb)
		return
	}
	if err := cmd.run(r, strings.Fields(rest), rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println("usage:", cmd.usage)
		} else {
			fmt.Println("error:", err)
		}
	}
}

func printHelp() {
	fmt.Println("commands:")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Printf("  %-38s %s\n", c.usage, c.summary)
	}
	fmt.Printf("  %-38s %s\n", "help", "show this help")
	fmt.Printf("  %-38s %s\n", "quit", "close the index and exit")
	fmt.Println()
	fmt.Println(`query syntax: AND/OR/-, field:term, "phrase", prefix*, /regex/,`)
	fmt.Println(`              term~n, field:[a TO b], parentheses`)
}

func cmdIndex(r *REPL, _ []string, rest string) error {
	id, body, ok := strings.Cut(rest, " ")
	if !ok {
		return errUsage
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if err := r.idx.Index(id, doc); err != nil {
		return err
	}
	fmt.Printf("indexed %q with %d fields\n", id, len(doc))
	return nil
}

func cmdDelete(r *REPL, args []string, _ string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := r.idx.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %q\n", args[0])
	return nil
}

func cmdGet(r *REPL, args []string, _ string) error {
	if len(args) != 1 {
		return errUsage
	}
	doc, found, err := r.idx.GetDoc(args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("no document %q\n", args[0])
		return nil
	}
	return printJSON(doc)
}

func cmdFlush(r *REPL, _ []string, _ string) error {
	if err := r.idx.Flush(); err != nil {
		return err
	}
	fmt.Printf("flushed, %d segments on disk\n", r.idx.NumSegments())
	return nil
}

func cmdMerge(r *REPL, _ []string, _ string) error {
	if err := r.idx.ForceMerge(); err != nil {
		return err
	}
	fmt.Printf("merged down to %d segments\n", r.idx.NumSegments())
	return nil
}

func cmdSearch(r *REPL, args []string, rest string) error {
	if len(args) == 0 {
		return errUsage
	}

	field := ""
	if v, ok := strings.CutPrefix(args[0], "--field="); ok {
		field = v
		rest = strings.TrimSpace(rest[len(args[0]):])
		args = args[1:]
		if len(args) == 0 {
			return errUsage
		}
	}

	s, done, err := r.searcher()
	if err != nil {
		return err
	}
	defer done()

	var results []search.Result
	var label string

	mode := args[0]
	switch {
	case mode == "--and", mode == "--or":
		if len(args) < 2 {
			return errUsage
		}
		terms := lowered(args[1:])
		if mode == "--and" {
			label = "all of " + strings.Join(terms, ", ")
			results, err = s.AndSearch(terms, field)
		} else {
			label = "any of " + strings.Join(terms, ", ")
			results, err = s.OrSearch(terms, field)
		}
	case strings.HasPrefix(mode, "--dismax"):
		if len(args) < 2 {
			return errUsage
		}
		tie := 0.0
		if v, ok := strings.CutPrefix(mode, "--dismax="); ok {
			t, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				return fmt.Errorf("bad tie breaker %q", v)
			}
			tie = t
		}
		terms := lowered(args[1:])
		clauses := make([]query.Query, len(terms))
		for i, t := range terms {
			clauses[i] = &query.TermQuery{Field: field, Term: t}
		}
		label = fmt.Sprintf("best of %s (tie %g)", strings.Join(terms, ", "), tie)
		results, err = s.DisMaxSearch(clauses, tie)
	case field == "":
		// The query language carries its own field prefixes and quoting,
		// so the raw line goes through untouched.
		label = rest
		results, err = s.RunQueryString(rest)
	case len(args) == 1:
		term := strings.ToLower(args[0])
		label = term
		results, err = s.Search(term, field)
	default:
		phrase := strings.ToLower(strings.Join(args, " "))
		label = `"` + phrase + `"`
		results, err = s.PhraseSearch(phrase, field)
	}
	if err != nil {
		return err
	}

	if field != "" {
		label += " in " + field
	}
	printResults(label, results)
	return nil
}

func cmdTop(r *REPL, args []string, rest string) error {
	if len(args) < 2 {
		return errUsage
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad limit %q", args[0])
	}
	queryString := strings.TrimSpace(rest[len(args[0]):])

	s, done, err := r.searcher()
	if err != nil {
		return err
	}
	defer done()

	results, err := s.TopSearch(queryString, k)
	if err != nil {
		return err
	}
	printResults(fmt.Sprintf("top %d of %s", k, queryString), results)
	return nil
}

func cmdStats(r *REPL, _ []string, _ string) error {
	segs := r.idx.Segments()
	var live, dead uint64
	for _, seg := range segs {
		st, err := r.idx.SegmentStats(seg.ID)
		if err != nil {
			return err
		}
		live += st.NumDocs
		dead += st.NumDeleted
	}
	fmt.Printf("segments: %d\n", len(segs))
	fmt.Printf("flushed docs: %d, deleted: %d\n", live, dead)
	fmt.Printf("pending docs: %d\n", r.idx.PendingDocs())
	return nil
}

func cmdFields(r *REPL, _ []string, _ string) error {
	fields := r.idx.Fields()
	if len(fields) == 0 {
		fmt.Println("nothing indexed yet")
		return nil
	}
	fmt.Println(strings.Join(fields, ", "))
	return nil
}

func cmdSegments(r *REPL, _ []string, _ string) error {
	segs := r.idx.Segments()
	if len(segs) == 0 {
		fmt.Println("no segments on disk")
		return nil
	}
	for _, seg := range segs {
		fmt.Printf("%s  %6d docs  %d bytes\n", seg.ID, seg.NumDocs, seg.Size)
	}
	return nil
}

func cmdSegmentInfo(r *REPL, args []string, _ string) error {
	if len(args) != 2 || args[1] != "stats" {
		return errUsage
	}
	st, err := r.idx.SegmentStats(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("segment %s: %d docs, %d deleted, %d bytes\n",
		args[0], st.NumDocs, st.NumDeleted, st.Size)
	fmt.Printf("fields: %s\n", strings.Join(st.Fields, ", "))
	return nil
}

func cmdDoc(r *REPL, args []string, _ string) error {
	if len(args) != 2 {
		return errUsage
	}
	docNum, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad doc number %q", args[1])
	}
	doc, err := r.idx.LoadDoc(args[0], docNum)
	if err != nil {
		return err
	}
	return printJSON(doc)
}

func cmdDump(r *REPL, args []string, _ string) error {
	switch {
	case len(args) == 3 && args[0] == "postings":
		postings, err := r.idx.DumpPostings(args[1], args[2])
		if err != nil {
			return err
		}
		if len(postings) == 0 {
			fmt.Printf("no postings for %s:%s\n", args[1], args[2])
			return nil
		}
		for _, p := range postings {
			fmt.Printf("%s doc %d: freq %d at %v\n", p.SegmentID, p.DocNum, p.Freq, p.Positions)
		}
	case len(args) == 2 && args[0] == "deletions":
		deleted, err := r.idx.DumpDeletions(args[1])
		if err != nil {
			return err
		}
		if len(deleted) == 0 {
			fmt.Printf("segment %s has no deletions\n", args[1])
			return nil
		}
		fmt.Printf("deleted doc numbers in %s: %v\n", args[1], deleted)
	default:
		return errUsage
	}
	return nil
}

func printResults(label string, results []search.Result) {
	if len(results) == 0 {
		fmt.Printf("no matches for %s\n", label)
		return
	}
	fmt.Printf("%d matches for %s\n", len(results), label)
	for i, res := range results {
		line := fmt.Sprintf("%3d. %s  score=%.4f", i+1, res.DocID, res.Score)
		if len(res.MatchedTerms) > 0 {
			line += "  terms=" + strings.Join(res.MatchedTerms, ",")
		}
		fmt.Println(line)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func lowered(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}

// cmdDemo indexes a small runbook corpus into a throwaway directory and
// walks the query language against it.
func cmdDemo(_ *REPL, _ []string, _ string) error {
	dir, err := os.MkdirTemp("", "sift-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	idx, err := index.New(index.DefaultConfig(dir))
	if err != nil {
		return err
	}
	defer idx.Close()

	docs := []struct {
		id  string
		doc map[string]any
	}{
		{"rb-deploy", map[string]any{"title": "Deploy Checklist", "body": "Roll the new build out region by region and watch the error budget."}},
		{"rb-rollback", map[string]any{"title": "Rollback Procedure", "body": "Revert to the previous build when error rates spike after a deploy."}},
		{"rb-oncall", map[string]any{"title": "Oncall Handbook", "body": "Page the secondary when an incident sits unacknowledged for five minutes."}},
		{"rb-postmortem", map[string]any{"title": "Postmortem Template", "body": "Write the incident timeline, impact and action items within two days."}},
		{"rb-capacity", map[string]any{"title": "Capacity Planning", "body": "Project quarterly traffic growth and order hardware ahead of demand."}},
		{"rb-backup", map[string]any{"title": "Backup Restore", "body": "Restore the newest snapshot into a scratch cluster and verify checksums."}},
	}

	fmt.Println("indexing sample runbooks")
	for _, d := range docs {
		if err := idx.Index(d.id, d.doc); err != nil {
			return err
		}
		fmt.Printf("  + %s: %s\n", d.id, d.doc["title"])
	}
	fmt.Println()

	snap, err := idx.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()
	s := search.New(snap)
	defer s.Close()

	queries := []string{
		"incident",
		"title:deploy",
		`"error budget"`,
		"build AND deploy",
		"snapshot OR hardware",
		"incident AND -postmortem",
		"(deploy OR rollback) AND build",
		"roll*",
		"incidnt~",
		"/re(vert|store)/",
		"title:[backup TO deploy]",
	}

	for _, q := range queries {
		fmt.Printf("> %s\n", q)
		results, err := s.RunQueryString(q)
		if err != nil {
			fmt.Printf("  error: %v\n\n", err)
			continue
		}
		if len(results) == 0 {
			fmt.Println("  no matches")
		}
		for i, res := range results {
			fmt.Printf("  %d. %s  score=%.4f\n", i+1, res.DocID, res.Score)
		}
		fmt.Println()
	}
	return nil
}
