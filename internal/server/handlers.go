package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sift/internal/search"
)

type indexRequest struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type queryHit struct {
	ID           string         `json:"id"`
	Score        float64        `json:"score"`
	Fields       map[string]any `json:"fields,omitempty"`
	MatchedTerms []string       `json:"matched_terms,omitempty"`
}

type queryResponse struct {
	Query   string     `json:"query"`
	Total   int        `json:"total"`
	TookMs  float64    `json:"took_ms"`
	Results []queryHit `json:"results"`
}

type segmentStats struct {
	ID      string `json:"id"`
	NumDocs uint64 `json:"num_docs"`
	Size    int64  `json:"size_bytes"`
}

type statsResponse struct {
	Segments    []segmentStats `json:"segments"`
	NumDocs     uint64         `json:"num_docs"`
	PendingDocs uint64         `json:"pending_docs"`
	Size        int64          `json:"size_bytes"`
	Fields      []string       `json:"fields"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	if len(req.Fields) == 0 {
		s.writeError(w, http.StatusBadRequest, "document fields are required")
		return
	}

	if err := s.idx.Index(req.ID, req.Fields); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("indexing %s: %v", req.ID, err))
		return
	}
	s.metrics.docsIndexed.Inc()
	s.updateIndexGauges()

	s.writeJSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": "indexed"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit < 0 {
		s.writeError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultQueryLimit
	}

	start := time.Now()
	results, err := s.runQuery(req.Query, limit)
	took := time.Since(start)

	if err != nil {
		s.metrics.queriesTotal.WithLabelValues("error").Inc()
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.queriesTotal.WithLabelValues("ok").Inc()
	s.metrics.queryLatency.Observe(took.Seconds())

	resp := queryResponse{
		Query:   req.Query,
		Total:   len(results),
		TookMs:  float64(took.Microseconds()) / 1000,
		Results: make([]queryHit, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, queryHit{
			ID:           res.DocID,
			Score:        res.Score,
			Fields:       res.Doc,
			MatchedTerms: res.MatchedTerms,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// runQuery searches a fresh snapshot so each query sees a consistent view
// of the index. The field cache is shared across queries.
func (s *Server) runQuery(queryString string, limit int) ([]search.Result, error) {
	snapshot, err := s.idx.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snapshot.Close()

	searcher := search.NewWithCache(snapshot, s.cache)
	defer searcher.Close()

	return searcher.TopSearch(queryString, limit)
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, found, err := s.idx.GetDoc(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "fields": doc})
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.idx.Delete(id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.docsDeleted.Inc()
	s.updateIndexGauges()

	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.idx.Flush(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.flushes.Inc()
	s.updateIndexGauges()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "flushed",
		"segments": s.idx.NumSegments(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	infos := s.idx.Segments()

	resp := statsResponse{
		Segments:    make([]segmentStats, 0, len(infos)),
		PendingDocs: s.idx.PendingDocs(),
		Fields:      s.idx.Fields(),
	}
	for _, info := range infos {
		resp.Segments = append(resp.Segments, segmentStats{
			ID:      info.ID,
			NumDocs: info.NumDocs,
			Size:    info.Size,
		})
		resp.NumDocs += info.NumDocs
		resp.Size += info.Size
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
