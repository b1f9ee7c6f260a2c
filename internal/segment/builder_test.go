package segment

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"sift/internal/analysis"
	"sift/internal/datetools"
)

func newTestBuilder() *Builder {
	return NewBuilder(analysis.NewSimple(), nil)
}

func mustAdd(t *testing.T, b *Builder, id string, doc map[string]any) uint64 {
	t.Helper()
	docNum, err := b.Add(id, doc)
	if err != nil {
		t.Fatalf("Add(%s): %v", id, err)
	}
	return docNum
}

func TestBuilderAdd(t *testing.T) {
	b := newTestBuilder()

	if got := mustAdd(t, b, "note-1", map[string]any{"body": "Ship The Fix"}); got != 0 {
		t.Errorf("first docNum = %d, want 0", got)
	}
	if got := mustAdd(t, b, "note-2", map[string]any{"body": "ship later"}); got != 1 {
		t.Errorf("second docNum = %d, want 1", got)
	}
	if b.NumDocs() != 2 {
		t.Errorf("NumDocs = %d, want 2", b.NumDocs())
	}

	body := b.Fields["body"]
	for _, term := range []string{"ship", "the", "fix", "later"} {
		if _, ok := body[term]; !ok {
			t.Errorf("term %q not indexed", term)
		}
	}
}

func TestBuilderPositions(t *testing.T) {
	b := newTestBuilder()
	mustAdd(t, b, "note-1", map[string]any{"body": "retry on retry after retry"})

	posting := b.Fields["body"]["retry"][0]
	if posting.Frequency != 3 {
		t.Errorf("frequency = %d, want 3", posting.Frequency)
	}
	if want := []uint64{0, 2, 4}; !slices.Equal(posting.Positions, want) {
		t.Errorf("positions = %v, want %v", posting.Positions, want)
	}
}

func TestBuilderValueKinds(t *testing.T) {
	b := newTestBuilder()
	mustAdd(t, b, "m-1", map[string]any{
		"latency": 99.5,
		"retries": 4,
		"healthy": true,
		"labels":  []any{"a", "b"},
		"extra":   map[string]any{"k": 1},
	})

	for field, term := range map[string]string{
		"latency": "99.5",
		"retries": "4",
		"healthy": "true",
	} {
		if _, ok := b.Fields[field][term]; !ok {
			t.Errorf("field %s: term %q not indexed", field, term)
		}
	}

	// Scalars take a single position.
	if fl := b.FieldLength("latency", 0); fl != 1 {
		t.Errorf("latency field length = %d, want 1", fl)
	}

	// Slices and nested maps have no token form and are skipped.
	for _, field := range []string{"labels", "extra"} {
		if _, ok := b.Fields[field]; ok {
			t.Errorf("field %s should not be indexed", field)
		}
	}
}

func TestBuilderDateFields(t *testing.T) {
	b := NewBuilder(analysis.NewSimple(), map[string]datetools.Resolution{
		"opened": datetools.Day,
		"closed": datetools.Month,
	})
	mustAdd(t, b, "tk-1", map[string]any{
		"opened": "2019-03-08T09:15:00Z",
		"closed": time.Date(2019, 11, 30, 8, 0, 0, 0, time.UTC),
	})

	if _, ok := b.Fields["opened"]["20190308"]; !ok {
		t.Errorf("day-resolution date missing, terms: %v", b.Fields["opened"])
	}
	if _, ok := b.Fields["closed"]["201911"]; !ok {
		t.Errorf("month-resolution date missing, terms: %v", b.Fields["closed"])
	}
}

func TestBuilderBadDate(t *testing.T) {
	b := NewBuilder(analysis.NewSimple(), map[string]datetools.Resolution{
		"opened": datetools.Day,
	})

	if _, err := b.Add("tk-1", map[string]any{"opened": "whenever"}); err == nil {
		t.Fatal("want error for unparsable date")
	}
	if b.TotalDocs() != 0 {
		t.Errorf("failed Add consumed a docNum, TotalDocs = %d", b.TotalDocs())
	}
}

func TestBuilderSupersede(t *testing.T) {
	b := newTestBuilder()
	mustAdd(t, b, "note-1", map[string]any{"body": "draft"})
	docNum := mustAdd(t, b, "note-1", map[string]any{"body": "final"})

	if docNum != 1 {
		t.Errorf("re-added docNum = %d, want 1", docNum)
	}
	if !b.IsDeleted(0) {
		t.Error("earlier version not tombstoned")
	}
	if b.NumDocs() != 1 || b.TotalDocs() != 2 {
		t.Errorf("NumDocs=%d TotalDocs=%d, want 1 and 2", b.NumDocs(), b.TotalDocs())
	}
}

func TestBuilderDelete(t *testing.T) {
	b := newTestBuilder()
	mustAdd(t, b, "note-1", map[string]any{"body": "keep"})
	mustAdd(t, b, "note-2", map[string]any{"body": "drop"})

	if !b.Delete("note-2") {
		t.Error("Delete(note-2) = false, want true")
	}
	if b.Delete("ghost") {
		t.Error("Delete(ghost) = true, want false")
	}
	if b.IsDeleted(0) || !b.IsDeleted(1) {
		t.Errorf("tombstones wrong: doc0=%v doc1=%v", b.IsDeleted(0), b.IsDeleted(1))
	}
	if b.NumDocs() != 1 || b.TotalDocs() != 2 {
		t.Errorf("NumDocs=%d TotalDocs=%d, want 1 and 2", b.NumDocs(), b.TotalDocs())
	}
}

func TestBuilderFieldLengths(t *testing.T) {
	b := newTestBuilder()
	mustAdd(t, b, "note-1", map[string]any{"body": "alpha beta"})
	mustAdd(t, b, "note-2", map[string]any{"body": "alpha beta gamma delta"})

	if fl := b.FieldLength("body", 1); fl != 4 {
		t.Errorf("FieldLength = %d, want 4", fl)
	}
	if fl := b.FieldLength("missing", 0); fl != 0 {
		t.Errorf("FieldLength(missing) = %d, want 0", fl)
	}
	if avg := b.AvgFieldLength("body"); avg != 3.0 {
		t.Errorf("AvgFieldLength = %v, want 3", avg)
	}

	// Deleted docs drop out of the average.
	b.Delete("note-2")
	if avg := b.AvgFieldLength("body"); avg != 2.0 {
		t.Errorf("AvgFieldLength after delete = %v, want 2", avg)
	}
}

func TestBuilderBuild(t *testing.T) {
	dir := t.TempDir()
	b := newTestBuilder()
	mustAdd(t, b, "note-a", map[string]any{"body": "alpha"})
	mustAdd(t, b, "note-b", map[string]any{"body": "beta"})

	segPath, err := b.Build(dir, "000000000001")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := filepath.Join(dir, "000000000001.seg"); segPath != want {
		t.Errorf("path = %s, want %s", segPath, want)
	}
	if _, err := os.Stat(segPath); err != nil {
		t.Fatalf("stat segment file: %v", err)
	}

	seg, err := Open(segPath, "000000000001")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer seg.Close()

	if seg.NumDocs() != 2 {
		t.Errorf("NumDocs = %d, want 2", seg.NumDocs())
	}
	if id, ok := seg.ExternalID(1); !ok || id != "note-b" {
		t.Errorf("ExternalID(1) = %q, %v", id, ok)
	}
	if docNum, ok := seg.DocNum("note-a"); !ok || docNum != 0 {
		t.Errorf("DocNum(note-a) = %d, %v", docNum, ok)
	}
}
