// Package knowledge orchestrates the retrieval pipeline: loading documents,
// chunking them, embedding the chunks, and answering similarity queries with
// assembled context.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/aura-companion/aura/internal/chunker"
	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/embeddings"
	"github.com/aura-companion/aura/internal/loader"
	"github.com/aura-companion/aura/internal/store"
)

// ErrEmptyDocument is returned when a document yields no indexable text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// contextSeparator joins context blocks in assembled retrieval output.
const contextSeparator = "\n\n---\n\n"

// Engine is a self-contained knowledge base. Multiple engines may coexist,
// each with its own store and embedding service.
type Engine struct {
	store    store.Store
	embedder embeddings.Service
	chunker  *chunker.Chunker
	cfg      *config.Config
}

// IngestResult describes a completed ingestion.
type IngestResult struct {
	DocumentID string `json:"id"`
	Name       string `json:"filename"`
	ChunkCount int    `json:"chunks_count"`
}

// RetrieveOptions tune a single retrieval. Zero values fall back to the
// engine's configured defaults.
type RetrieveOptions struct {
	TopK            int
	MaxContextChars int
	MinScore        float64
}

// NewEngine builds an engine from its parts. The chunker is constructed from
// the chunking configuration.
func NewEngine(st store.Store, embedder embeddings.Service, cfg *config.Config) (*Engine, error) {
	ch, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	return &Engine{
		store:    st,
		embedder: embedder,
		chunker:  ch,
		cfg:      cfg,
	}, nil
}

// Embedder returns the engine's embedding service.
func (e *Engine) Embedder() embeddings.Service {
	return e.embedder
}

// Ingest loads a document, chunks it, embeds the chunks, and stores
// everything. Each call creates a new document, even for identical content.
// On any failure after the document is registered, the partial document is
// removed so no half-ingested state survives.
func (e *Engine) Ingest(ctx context.Context, name, mimeType string, data []byte) (*IngestResult, error) {
	mimeType = loader.DetectMIMEType(name, mimeType)

	text, err := loader.Load(data, mimeType)
	if err != nil {
		return nil, err
	}

	pieces := e.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	doc := store.Document{
		ID:         uuid.New().String(),
		Name:       name,
		MIMEType:   mimeType,
		Hash:       HashContent(data),
		UploadedAt: time.Now().UTC(),
	}
	if err := e.store.AddDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	if err := e.insertChunks(ctx, doc.ID, pieces); err != nil {
		if _, cleanupErr := e.store.DeleteByDocument(doc.ID); cleanupErr != nil {
			log.Error("Failed to clean up partial document", "id", doc.ID, "error", cleanupErr)
		}
		return nil, err
	}

	log.Debug("Ingested document", "name", name, "id", doc.ID, "chunks", len(pieces))

	return &IngestResult{
		DocumentID: doc.ID,
		Name:       name,
		ChunkCount: len(pieces),
	}, nil
}

// insertChunks embeds pieces in batches and inserts them in document order.
func (e *Engine) insertChunks(ctx context.Context, docID string, pieces []chunker.Piece) error {
	batchSize := e.cfg.Ingest.BatchSize
	if batchSize <= 0 {
		batchSize = len(pieces)
	}

	for start := 0; start < len(pieces); start += batchSize {
		end := min(start+batchSize, len(pieces))
		batch := pieces[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}

		vectors, err := e.embedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}

		for i, p := range batch {
			_, err := e.store.Insert(store.Chunk{
				DocumentID:  docID,
				Text:        p.Text,
				StartOffset: p.Start,
				EndOffset:   p.End,
				Embedding:   vectors[i],
			})
			if err != nil {
				return fmt.Errorf("failed to store chunk: %w", err)
			}
		}
	}

	return nil
}

func (e *Engine) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := e.withEmbedTimeout(ctx)
	defer cancel()
	return e.embedder.EmbedBatch(ctx, texts)
}

func (e *Engine) withEmbedTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Embeddings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Embeddings.Timeout)
}

// Search embeds the query and returns the top scored chunks, most similar
// first, with results below the minimum score dropped. An empty result is
// not an error.
func (e *Engine) Search(ctx context.Context, query string, opts RetrieveOptions) ([]store.Result, error) {
	opts = e.fillDefaults(opts)

	embedCtx, cancel := e.withEmbedTimeout(ctx)
	defer cancel()

	vector, err := e.embedder.EmbedQuery(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Query(vector, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// Retrieve runs a search and assembles the surviving chunks into a context
// string of the form:
//
//	[From: <document name>]
//	<chunk text>
//
// with blocks joined by a separator line. Once adding a block would push the
// total past the character budget, that block and all lower-scored blocks are
// dropped whole. Returns the empty string when nothing qualifies.
func (e *Engine) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (string, error) {
	opts = e.fillDefaults(opts)

	results, err := e.Search(ctx, query, opts)
	if err != nil {
		return "", err
	}

	return AssembleContext(results, opts.MaxContextChars), nil
}

// AssembleContext formats scored chunks as source-attributed blocks within a
// character budget. The budget counts runes, matching the chunker's sizing
// convention. A budget of 0 or less means unlimited.
func AssembleContext(results []store.Result, maxChars int) string {
	var b strings.Builder
	written := 0
	for _, r := range results {
		block := fmt.Sprintf("[From: %s]\n%s", r.Document.Name, r.Chunk.Text)

		next := written + utf8.RuneCountInString(block)
		if written > 0 {
			next += utf8.RuneCountInString(contextSeparator)
		}
		if maxChars > 0 && next > maxChars {
			break
		}

		if written > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(block)
		written = next
	}
	return b.String()
}

// Options fills unset retrieval options from the engine's configuration.
func (e *Engine) Options(opts RetrieveOptions) RetrieveOptions {
	return e.fillDefaults(opts)
}

func (e *Engine) fillDefaults(opts RetrieveOptions) RetrieveOptions {
	if opts.TopK <= 0 {
		opts.TopK = e.cfg.Retrieval.TopK
	}
	if opts.MaxContextChars == 0 {
		opts.MaxContextChars = e.cfg.Retrieval.MaxContextChars
	}
	if opts.MinScore == 0 {
		opts.MinScore = e.cfg.Retrieval.MinScore
	}
	return opts
}

// DeleteDocument removes a document and its chunks, returning the number of
// chunks removed. Deleting an unknown document removes nothing.
func (e *Engine) DeleteDocument(id string) (int, error) {
	return e.store.DeleteByDocument(id)
}

// Document returns a document by ID, or nil if unknown.
func (e *Engine) Document(id string) (*store.Document, error) {
	return e.store.GetDocument(id)
}

// FindDocumentByName returns the most recently uploaded document with the
// given name, or nil.
func (e *Engine) FindDocumentByName(name string) (*store.Document, error) {
	return e.store.FindDocumentByName(name)
}

// Documents lists all ingested documents.
func (e *Engine) Documents() ([]store.Document, error) {
	return e.store.ListDocuments()
}

// Reset clears the knowledge base.
func (e *Engine) Reset() error {
	return e.store.Reset()
}

// Stats summarizes the knowledge base contents.
func (e *Engine) Stats() (*store.Stats, error) {
	return e.store.Stats()
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// HashContent computes the content hash recorded on documents. Used to skip
// re-ingesting unchanged files.
func HashContent(data []byte) string {
	return fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data))
}
