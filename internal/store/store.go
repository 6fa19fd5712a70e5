package store

import (
	"errors"
	"fmt"

	"github.com/aura-companion/aura/internal/config"
)

var (
	// ErrDuplicateID is returned when inserting a chunk or document whose ID
	// already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrZeroVector is returned for embeddings with zero norm, which have no
	// defined cosine similarity.
	ErrZeroVector = errors.New("zero-norm embedding")

	// ErrDimensionMismatch is returned when an embedding's dimensionality
	// differs from the rest of the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnknownDocument is returned when inserting a chunk for a document
	// that was never registered.
	ErrUnknownDocument = errors.New("unknown document")
)

// Store is the vector store contract shared by all backends.
//
// Queries may run concurrently with each other; Insert and DeleteByDocument
// are atomic with respect to concurrent queries. The brute-force memory
// backend guarantees exact top-k with ties broken by insertion order;
// index-backed implementations may substitute an approximate search behind
// the same interface, documenting their recall instead.
type Store interface {
	// AddDocument registers a document. Fails with ErrDuplicateID if the ID
	// is already registered.
	AddDocument(doc Document) error

	// GetDocument returns a document by ID, or nil if unknown.
	GetDocument(id string) (*Document, error)

	// FindDocumentByName returns the most recently added document with the
	// given name, or nil if none exists.
	FindDocumentByName(name string) (*Document, error)

	// ListDocuments returns all documents with their chunk counts, oldest
	// first.
	ListDocuments() ([]Document, error)

	// Insert stores a chunk and its embedding, assigning an ID when the
	// chunk has none. Returns the chunk ID.
	Insert(chunk Chunk) (string, error)

	// DeleteByDocument removes the document and all its chunks, returning
	// the number of chunks removed. An unknown document yields 0, not an
	// error.
	DeleteByDocument(documentID string) (int, error)

	// Query returns the top k chunks by cosine similarity to vector, score
	// descending. Fewer than k chunks yields all of them; an empty store
	// yields an empty result.
	Query(vector []float32, k int) ([]Result, error)

	// Stats summarizes the store contents.
	Stats() (*Stats, error)

	// Reset removes all documents and chunks.
	Reset() error

	// Close releases backend resources.
	Close() error
}

// New creates a store for the configured backend.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}
