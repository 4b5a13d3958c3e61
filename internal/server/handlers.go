package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"venuerag/internal/chunker"
	"venuerag/internal/domain"
	"venuerag/internal/validation"
)

const maxBodyBytes = 1 << 20

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Records   int    `json:"records"`
	Indexed   int    `json:"indexed"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	domain.Filter
	Query string `json:"query,omitempty" validate:"max=8000"`
	TopK  int    `json:"top_k,omitempty" validate:"gte=0,lte=1000"`
}

// RetrieveResponse lists the matching records, best first.
type RetrieveResponse struct {
	Records []domain.Record `json:"records"`
}

// ChunkRequest is the body of POST /v1/chunk. ChunkSize and Overlap override
// the configured splitter when ChunkSize is set.
type ChunkRequest struct {
	Text      string `json:"text" validate:"required"`
	ChunkSize int    `json:"chunk_size,omitempty" validate:"gte=0"`
	Overlap   int    `json:"overlap,omitempty" validate:"gte=0"`
}

// ChunkResponse lists the chunks in source order.
type ChunkResponse struct {
	Chunks []string `json:"chunks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	records, indexed := s.backend.Stats()
	_ = writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Records:   records,
		Indexed:   indexed,
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}
	records, err := s.backend.Retrieve(r.Context(), req.Filter, req.Query, req.TopK)
	if err != nil {
		s.logger.Error("retrieve failed", zap.Error(err))
		_ = writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	_ = writeJSON(w, http.StatusOK, RetrieveResponse{Records: records})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req ChunkRequest
	if !s.decode(w, r, &req) {
		return
	}

	var chunks []string
	if req.ChunkSize > 0 {
		var err error
		chunks, err = chunker.Split(req.Text, req.ChunkSize, req.Overlap,
			chunker.DefaultSentenceSeparators, chunker.DefaultParagraphSeparator)
		if err != nil {
			_ = writeError(w, err)
			return
		}
	} else {
		chunks = s.backend.Split(req.Text)
	}
	if chunks == nil {
		chunks = []string{}
	}
	_ = writeJSON(w, http.StatusOK, ChunkResponse{Chunks: chunks})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	overview, err := s.backend.Reload(r.Context())
	if err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		_ = writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, s.backend.Overview())
}

// decode parses and validates a JSON body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		_ = writeBadRequest(w, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	if err := validation.Struct(dst); err != nil {
		_ = writeError(w, err)
		return false
	}
	return true
}
