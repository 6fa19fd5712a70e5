package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aura-companion/aura/internal/knowledge"
	"github.com/aura-companion/aura/internal/store"
)

// HealthResponse reports liveness and the active embedding backend.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	embedder := s.engine.Embedder()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Provider: string(embedder.Provider()),
		Model:    embedder.ModelName(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	result, err := s.engine.Ingest(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Message         string  `json:"message"`
	TopK            int     `json:"top_k,omitempty"`
	MaxContextChars int     `json:"max_context_chars,omitempty"`
	MinScore        float64 `json:"min_score,omitempty"`
}

// QueryResult is one scored chunk in a query response.
type QueryResult struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

// QueryResponse carries the assembled context and the raw results behind it.
type QueryResponse struct {
	Context string        `json:"context"`
	Results []QueryResult `json:"results"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	opts := s.engine.Options(knowledge.RetrieveOptions{
		TopK:            req.TopK,
		MaxContextChars: req.MaxContextChars,
		MinScore:        req.MinScore,
	})

	results, err := s.engine.Search(r.Context(), req.Message, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := QueryResponse{
		Context: knowledge.AssembleContext(results, opts.MaxContextChars),
		Results: make([]QueryResult, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, QueryResult{
			DocumentID:   res.Document.ID,
			DocumentName: res.Document.Name,
			Text:         res.Chunk.Text,
			Score:        res.Score,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// DocumentsResponse is the body of GET /documents.
type DocumentsResponse struct {
	Documents []store.Document `json:"documents"`
	Count     int              `json:"count"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, _ *http.Request) {
	docs, err := s.engine.Documents()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{Documents: docs, Count: len(docs)})
}

// DeleteResponse reports how many chunks a deletion removed.
type DeleteResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := s.engine.Document(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown document: "+id)
		return
	}

	removed, err := s.engine.DeleteDocument(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Removed: removed})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Reset(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
