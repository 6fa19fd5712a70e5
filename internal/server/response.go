package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/aura-companion/aura/internal/embeddings"
	"github.com/aura-companion/aura/internal/knowledge"
	"github.com/aura-companion/aura/internal/loader"
	"github.com/aura-companion/aura/internal/store"
)

// writeJSON writes a JSON response with the given status code. Encoding
// failures after WriteHeader can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeEngineError maps pipeline errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, loader.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format", err.Error())
	case errors.Is(err, loader.ErrCorruptDocument):
		writeError(w, http.StatusUnprocessableEntity, "corrupt_document", err.Error())
	case errors.Is(err, knowledge.ErrEmptyDocument):
		writeError(w, http.StatusBadRequest, "empty_document", err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, "duplicate_id", err.Error())
	case errors.Is(err, embeddings.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "embedding_timeout", err.Error())
	case errors.Is(err, embeddings.ErrModelUnavailable):
		writeError(w, http.StatusBadGateway, "model_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
