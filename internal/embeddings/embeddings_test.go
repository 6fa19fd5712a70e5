package embeddings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-companion/aura/internal/config"
)

// TestGetModelDimensions tests known model dimension lookups.
func TestGetModelDimensions(t *testing.T) {
	tests := []struct {
		model    string
		expected int
	}{
		// Ollama models
		{"all-minilm", 384},
		{"nomic-embed-text", 768},
		{"mxbai-embed-large", 1024},
		{"snowflake-arctic-embed", 1024},

		// OpenAI models
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},

		// Unknown model
		{"unknown-model", 0},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetModelDimensions(tt.model))
		})
	}
}

// TestNewOllamaService tests Ollama service creation.
func TestNewOllamaService(t *testing.T) {
	t.Run("with default URL", func(t *testing.T) {
		svc, err := NewOllamaService("", "all-minilm")
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:11434", svc.baseURL)
		assert.Equal(t, "all-minilm", svc.model)
		assert.Equal(t, 384, svc.Dimensions())
		assert.Equal(t, ProviderOllama, svc.Provider())
		assert.Equal(t, "all-minilm", svc.ModelName())
	})

	t.Run("with custom URL", func(t *testing.T) {
		svc, err := NewOllamaService("http://custom:8080/", "mxbai-embed-large")
		require.NoError(t, err)

		assert.Equal(t, "http://custom:8080", svc.baseURL) // trailing slash removed
		assert.Equal(t, 1024, svc.Dimensions())
	})

	t.Run("with unknown model defaults to 384", func(t *testing.T) {
		svc, err := NewOllamaService("", "custom-model")
		require.NoError(t, err)

		assert.Equal(t, 384, svc.Dimensions())
	})
}

// TestNewOpenAIService tests OpenAI service creation.
func TestNewOpenAIService(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		_, err := NewOpenAIService("", "text-embedding-3-small", "", 0)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})

	t.Run("with known model dimensions", func(t *testing.T) {
		svc, err := NewOpenAIService("sk-test", "text-embedding-3-small", "", 0)
		require.NoError(t, err)

		assert.Equal(t, "text-embedding-3-small", svc.model)
		assert.Equal(t, 1536, svc.Dimensions())
		assert.Equal(t, ProviderOpenAI, svc.Provider())
	})

	t.Run("with custom dimensions", func(t *testing.T) {
		svc, err := NewOpenAIService("sk-test", "text-embedding-3-large", "", 512)
		require.NoError(t, err)

		assert.Equal(t, 512, svc.Dimensions())
	})

	t.Run("with unknown model defaults to 1536", func(t *testing.T) {
		svc, err := NewOpenAIService("sk-test", "custom-model", "", 0)
		require.NoError(t, err)

		assert.Equal(t, 1536, svc.Dimensions())
	})
}

// TestOllamaTaskPrefixes tests task prefix application.
func TestOllamaTaskPrefixes(t *testing.T) {
	t.Run("nomic-embed-text prefixes", func(t *testing.T) {
		svc, _ := NewOllamaService("", "nomic-embed-text")

		assert.Equal(t, "search_document: test document", svc.applyPrefix("test document", false))
		assert.Equal(t, "search_query: test query", svc.applyPrefix("test query", true))
	})

	t.Run("mxbai-embed-large prefixes", func(t *testing.T) {
		svc, _ := NewOllamaService("", "mxbai-embed-large")

		assert.Equal(t, "test document", svc.applyPrefix("test document", false))
		assert.Equal(t, "Represent this sentence for searching relevant passages: test query",
			svc.applyPrefix("test query", true))
	})

	t.Run("all-minilm has no prefix", func(t *testing.T) {
		svc, _ := NewOllamaService("", "all-minilm")

		assert.Equal(t, "test", svc.applyPrefix("test", false))
		assert.Equal(t, "test", svc.applyPrefix("test", true))
	})
}

// TestTruncateInput tests the input truncation policy.
func TestTruncateInput(t *testing.T) {
	t.Run("short input unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateInput("hello"))
	})

	t.Run("over-long input truncated to rune cap", func(t *testing.T) {
		long := strings.Repeat("ü", maxInputRunes+100)
		got := truncateInput(long)
		assert.Equal(t, maxInputRunes, len([]rune(got)))
	})
}

// mockOllamaServer creates a test server that simulates Ollama's embed API.
func mockOllamaServer(t *testing.T, dims int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var req ollamaEmbedRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.True(t, req.Truncate)

		// Generate fake embeddings
		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embedding := make([]float32, dims)
			for j := range embedding {
				embedding[j] = float32(i+1) * 0.1 // Predictable values
			}
			embeddings[i] = embedding
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
	}))
}

// TestOllamaEmbed tests the Ollama embedding methods with a mock server.
func TestOllamaEmbed(t *testing.T) {
	server := mockOllamaServer(t, 384)
	defer server.Close()

	svc, err := NewOllamaService(server.URL, "all-minilm")
	require.NoError(t, err)

	t.Run("Embed single text", func(t *testing.T) {
		embedding, err := svc.Embed(context.Background(), "test document")
		require.NoError(t, err)

		assert.Len(t, embedding, 384)
		assert.Equal(t, float32(0.1), embedding[0])
	})

	t.Run("EmbedQuery single text", func(t *testing.T) {
		embedding, err := svc.EmbedQuery(context.Background(), "test query")
		require.NoError(t, err)

		assert.Len(t, embedding, 384)
	})

	t.Run("EmbedBatch multiple texts", func(t *testing.T) {
		embeddings, err := svc.EmbedBatch(context.Background(), []string{"doc1", "doc2", "doc3"})
		require.NoError(t, err)

		assert.Len(t, embeddings, 3)
		for i, emb := range embeddings {
			assert.Len(t, emb, 384)
			assert.Equal(t, float32(i+1)*0.1, emb[0])
		}
	})

	t.Run("EmbedBatch empty returns nil", func(t *testing.T) {
		embeddings, err := svc.EmbedBatch(context.Background(), []string{})
		require.NoError(t, err)
		assert.Nil(t, embeddings)
	})
}

// TestOllamaErrorHandling tests error cases.
func TestOllamaErrorHandling(t *testing.T) {
	t.Run("server error maps to ErrModelUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("model not found"))
		}))
		defer server.Close()

		svc, _ := NewOllamaService(server.URL, "all-minilm")
		_, err := svc.Embed(context.Background(), "test")

		assert.ErrorIs(t, err, ErrModelUnavailable)
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("connection error maps to ErrModelUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // Nothing listening anymore

		svc, _ := NewOllamaService(server.URL, "all-minilm")
		_, err := svc.Embed(context.Background(), "test")

		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("deadline exceeded maps to ErrTimeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Drain the body so the server detects the client disconnect
			// and cancels the request context; otherwise Close deadlocks.
			io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		defer server.Close()

		svc, _ := NewOllamaService(server.URL, "all-minilm")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := svc.Embed(ctx, "test")
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		svc, _ := NewOllamaService(server.URL, "all-minilm")
		_, err := svc.Embed(context.Background(), "test")

		assert.ErrorIs(t, err, ErrModelUnavailable)
		assert.Contains(t, err.Error(), "failed to decode response")
	})

	t.Run("context cancellation passes through", func(t *testing.T) {
		server := mockOllamaServer(t, 384)
		defer server.Close()

		svc, _ := NewOllamaService(server.URL, "all-minilm")

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		_, err := svc.Embed(ctx, "test")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestOllamaDimensionUpdate tests that dimensions are updated from response.
func TestOllamaDimensionUpdate(t *testing.T) {
	// Server returns 512 dimensions instead of the expected 384
	server := mockOllamaServer(t, 512)
	defer server.Close()

	svc, _ := NewOllamaService(server.URL, "all-minilm")
	assert.Equal(t, 384, svc.Dimensions()) // Initial expectation

	_, err := svc.Embed(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, 512, svc.Dimensions())
}

// TestOllamaConcurrentEmbeds runs document and query embeddings from
// multiple goroutines against one shared service, mirroring how the
// server shares a single embedder across ingest and query handlers.
// Run with -race.
func TestOllamaConcurrentEmbeds(t *testing.T) {
	server := mockOllamaServer(t, 384)
	defer server.Close()

	svc, err := NewOllamaService(server.URL, "all-minilm")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 2; j++ {
				if _, err := svc.Embed(context.Background(), "document text"); err != nil {
					errs <- err
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 2; j++ {
				if _, err := svc.EmbedQuery(context.Background(), "query text"); err != nil {
					errs <- err
				}
				svc.Dimensions()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 384, svc.Dimensions())
}

// TestNewService tests the factory function.
func TestNewService(t *testing.T) {
	t.Run("creates Ollama service", func(t *testing.T) {
		cfg := &config.Config{
			Embeddings: config.EmbeddingsConfig{
				Provider: "ollama",
				Ollama: config.OllamaEmbedConfig{
					URL:   "http://localhost:11434",
					Model: "all-minilm",
				},
			},
		}

		svc, err := NewService(cfg)
		require.NoError(t, err)

		assert.Equal(t, ProviderOllama, svc.Provider())
		assert.Equal(t, "all-minilm", svc.ModelName())
	})

	t.Run("creates OpenAI service", func(t *testing.T) {
		cfg := &config.Config{
			Embeddings: config.EmbeddingsConfig{
				Provider: "openai",
				OpenAI: config.OpenAIEmbedConfig{
					APIKey: "sk-test",
					Model:  "text-embedding-3-small",
				},
			},
		}

		svc, err := NewService(cfg)
		require.NoError(t, err)

		assert.Equal(t, ProviderOpenAI, svc.Provider())
		assert.Equal(t, "text-embedding-3-small", svc.ModelName())
	})

	t.Run("returns error for unsupported provider", func(t *testing.T) {
		cfg := &config.Config{
			Embeddings: config.EmbeddingsConfig{Provider: "unsupported"},
		}

		_, err := NewService(cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported embedding provider")
	})
}
