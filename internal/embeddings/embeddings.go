// Package embeddings converts text into fixed-dimension vectors for
// similarity search.
//
// Queries and documents share one embedding space: both paths go through the
// same model, so cosine comparison between them is meaningful. Inputs longer
// than the model's limit are truncated, not rejected.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/aura-companion/aura/internal/config"
)

var (
	// ErrModelUnavailable is returned when the embedding backend cannot be
	// reached or the model cannot be loaded.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrTimeout is returned when an embedding call exceeds the caller's
	// deadline.
	ErrTimeout = errors.New("embedding request timed out")
)

// Provider represents an embedding provider type.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Service defines the interface for embedding services.
//
// All methods honor the context deadline and return ErrTimeout when it
// expires. EmbedBatch returns one vector per input, in input order.
type Service interface {
	// Embed generates an embedding for document text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a query (may use a different
	// task prefix than documents).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple document texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensions for this model.
	Dimensions() int

	// Provider returns the provider name.
	Provider() Provider

	// ModelName returns the model name.
	ModelName() string
}

// Known model dimensions
var modelDimensions = map[string]int{
	// Ollama models
	"all-minilm":             384,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"snowflake-arctic-embed": 1024,

	// OpenAI models
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// GetModelDimensions returns the known dimensions for a model, or 0 if unknown.
func GetModelDimensions(model string) int {
	return modelDimensions[model]
}

// maxInputRunes caps input length before a request is made. Backends may
// truncate further at their own token limits.
const maxInputRunes = 8192

// truncateInput enforces the documented truncation policy on over-long input.
func truncateInput(text string) string {
	runes := []rune(text)
	if len(runes) <= maxInputRunes {
		return text
	}
	return string(runes[:maxInputRunes])
}

// wrapTransportError maps transport failures onto the package's error kinds.
func wrapTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
}

// NewService creates an embedding service based on the configuration.
func NewService(cfg *config.Config) (Service, error) {
	switch cfg.Embeddings.Provider {
	case "ollama":
		return NewOllamaService(
			cfg.Embeddings.Ollama.URL,
			cfg.Embeddings.Ollama.Model,
		)
	case "openai":
		return NewOpenAIService(
			cfg.Embeddings.OpenAI.APIKey,
			cfg.Embeddings.OpenAI.Model,
			cfg.Embeddings.OpenAI.BaseURL,
			cfg.Embeddings.OpenAI.Dimensions,
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embeddings.Provider)
	}
}
