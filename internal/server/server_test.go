package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sift/internal/config"
	"sift/internal/index"
)

func newTestHandler(t *testing.T) (http.Handler, *index.Index) {
	t.Helper()

	idx, err := index.New(index.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	srv := New(idx, config.MetricsConfig{Enabled: true, Path: "/metrics"})
	return srv.Handler(), idx
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}

func indexDoc(t *testing.T, h http.Handler, id string, fields map[string]any) {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/index", indexRequest{ID: id, Fields: fields})
	if rec.Code != http.StatusOK {
		t.Fatalf("Indexing %s returned status %d: %s", id, rec.Code, rec.Body.String())
	}
}

func TestServer_IndexAndQuery(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"title": "go programming", "body": "a guide to go"})
	indexDoc(t, h, "doc2", map[string]any{"title": "python basics", "body": "an intro to python"})

	rec := doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: "go"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Query returned status %d: %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	decodeBody(t, rec, &resp)

	if resp.Total != 1 {
		t.Fatalf("Expected 1 result, got %d", resp.Total)
	}
	if resp.Results[0].ID != "doc1" {
		t.Errorf("Expected doc1, got %s", resp.Results[0].ID)
	}
	if resp.Results[0].Score <= 0 {
		t.Errorf("Expected a positive score, got %f", resp.Results[0].Score)
	}
	if resp.Results[0].Fields["title"] != "go programming" {
		t.Errorf("Expected the stored document on the hit, got %v", resp.Results[0].Fields)
	}
	if len(resp.Results[0].MatchedTerms) != 1 || resp.Results[0].MatchedTerms[0] != "go" {
		t.Errorf("Expected matched terms [go], got %v", resp.Results[0].MatchedTerms)
	}
}

func TestServer_QueryLanguage(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"title": "go programming", "body": "concurrency patterns in go"})
	indexDoc(t, h, "doc2", map[string]any{"title": "python programming", "body": "scripting with python"})
	indexDoc(t, h, "doc3", map[string]any{"title": "rust programming", "body": "memory safety in rust"})

	cases := []struct {
		query    string
		expected []string
	}{
		{"programming AND -python", []string{"doc1", "doc3"}},
		{"title:go OR title:rust", []string{"doc1", "doc3"}},
		{`"memory safety"`, []string{"doc3"}},
		{"pyth*", []string{"doc2"}},
	}

	for _, tc := range cases {
		rec := doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: tc.query})
		if rec.Code != http.StatusOK {
			t.Fatalf("Query %q returned status %d: %s", tc.query, rec.Code, rec.Body.String())
		}

		var resp queryResponse
		decodeBody(t, rec, &resp)

		got := make(map[string]bool)
		for _, hit := range resp.Results {
			got[hit.ID] = true
		}
		if len(got) != len(tc.expected) {
			t.Errorf("Query %q: expected %d results, got %d", tc.query, len(tc.expected), len(got))
			continue
		}
		for _, id := range tc.expected {
			if !got[id] {
				t.Errorf("Query %q: missing %s", tc.query, id)
			}
		}
	}
}

func TestServer_QueryLimit(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"body": "shared term"})
	indexDoc(t, h, "doc2", map[string]any{"body": "shared term"})
	indexDoc(t, h, "doc3", map[string]any{"body": "shared term"})

	rec := doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: "shared", Limit: 2})
	var resp queryResponse
	decodeBody(t, rec, &resp)

	if resp.Total != 2 {
		t.Errorf("Expected 2 results with limit 2, got %d", resp.Total)
	}
}

func TestServer_QueryValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/query", queryRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Empty query: expected status 400, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: "go", Limit: -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Negative limit: expected status 400, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: "AND AND"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Malformed query: expected status 400, got %d", rec.Code)
	}
}

func TestServer_IndexValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/index", indexRequest{Fields: map[string]any{"a": "b"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Missing id: expected status 400, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/index", indexRequest{ID: "doc1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Missing fields: expected status 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/index", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("Invalid body: expected status 400, got %d", rec2.Code)
	}
}

func TestServer_GetDoc(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"title": "go programming"})

	rec := doRequest(t, h, http.MethodGet, "/docs/doc1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	}
	decodeBody(t, rec, &resp)

	if resp.ID != "doc1" {
		t.Errorf("Expected id doc1, got %s", resp.ID)
	}
	if resp.Fields["title"] != "go programming" {
		t.Errorf("Expected stored title, got %v", resp.Fields["title"])
	}

	rec = doRequest(t, h, http.MethodGet, "/docs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Missing doc: expected status 404, got %d", rec.Code)
	}
}

func TestServer_DeleteDoc(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"title": "go programming"})

	rec := doRequest(t, h, http.MethodDelete, "/docs/doc1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Delete returned status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: "go"})
	var resp queryResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 0 {
		t.Errorf("Expected no results after delete, got %d", resp.Total)
	}
}

func TestServer_FlushAndStats(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"title": "go programming"})
	indexDoc(t, h, "doc2", map[string]any{"title": "python basics"})

	rec := doRequest(t, h, http.MethodGet, "/stats", nil)
	var before statsResponse
	decodeBody(t, rec, &before)
	if before.PendingDocs != 2 {
		t.Errorf("Expected 2 pending docs, got %d", before.PendingDocs)
	}
	if len(before.Segments) != 0 {
		t.Errorf("Expected no segments before flush, got %d", len(before.Segments))
	}

	rec = doRequest(t, h, http.MethodPost, "/flush", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Flush returned status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/stats", nil)
	var after statsResponse
	decodeBody(t, rec, &after)
	if after.PendingDocs != 0 {
		t.Errorf("Expected 0 pending docs after flush, got %d", after.PendingDocs)
	}
	if len(after.Segments) != 1 {
		t.Fatalf("Expected 1 segment after flush, got %d", len(after.Segments))
	}
	if after.NumDocs != 2 {
		t.Errorf("Expected 2 flushed docs, got %d", after.NumDocs)
	}

	wantFields := map[string]bool{"_id": true, "title": true}
	for _, field := range after.Fields {
		if !wantFields[field] {
			t.Errorf("Unexpected field %s in stats", field)
		}
		delete(wantFields, field)
	}
	if len(wantFields) != 0 {
		t.Errorf("Fields missing from stats: %v", wantFields)
	}
}

func TestServer_Healthz(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", resp["status"])
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	indexDoc(t, h, "doc1", map[string]any{"title": "go programming"})
	doRequest(t, h, http.MethodPost, "/query", queryRequest{Query: "go"})

	rec := doRequest(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, metric := range []string{
		"http_requests_total",
		"search_queries_total",
		"index_documents_indexed_total",
		"index_pending_documents",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing %s", metric)
		}
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	idx, err := index.New(index.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	srv := New(idx, config.MetricsConfig{Enabled: false, Path: "/metrics"})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with metrics disabled, got %d", rec.Code)
	}
}
