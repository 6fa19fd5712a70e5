package store

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is the exact, non-persistent reference store: brute-force
// cosine similarity over every stored embedding, ties broken by insertion
// order (earlier chunk wins).
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	chunks []*memChunk // insertion order
	byID   map[string]*memChunk
	dims   int
}

type memChunk struct {
	chunk Chunk
	norm  float64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
		byID: make(map[string]*memChunk),
	}
}

// AddDocument registers a document.
func (s *MemoryStore) AddDocument(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("%w: document %s", ErrDuplicateID, doc.ID)
	}

	d := doc
	s.docs[doc.ID] = &d
	return nil
}

// GetDocument returns a document by ID, or nil if unknown.
func (s *MemoryStore) GetDocument(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	d := *doc
	d.ChunkCount = s.countChunksLocked(id)
	return &d, nil
}

// FindDocumentByName returns the most recently uploaded document with the
// given name, or nil.
func (s *MemoryStore) FindDocumentByName(name string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Document
	for _, doc := range s.docs {
		if doc.Name != name {
			continue
		}
		if found == nil || doc.UploadedAt.After(found.UploadedAt) {
			found = doc
		}
	}
	if found == nil {
		return nil, nil
	}
	d := *found
	d.ChunkCount = s.countChunksLocked(d.ID)
	return &d, nil
}

// ListDocuments returns all documents, oldest first.
func (s *MemoryStore) ListDocuments() ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		d := *doc
		d.ChunkCount = s.countChunksLocked(d.ID)
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})
	return docs, nil
}

// Insert stores a chunk, assigning an ID when none is given.
func (s *MemoryStore) Insert(chunk Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if _, exists := s.byID[chunk.ID]; exists {
		return "", fmt.Errorf("%w: chunk %s", ErrDuplicateID, chunk.ID)
	}
	if _, exists := s.docs[chunk.DocumentID]; !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocument, chunk.DocumentID)
	}

	norm := vectorNorm(chunk.Embedding)
	if norm == 0 {
		return "", fmt.Errorf("%w: chunk %s", ErrZeroVector, chunk.ID)
	}
	if s.dims == 0 {
		s.dims = len(chunk.Embedding)
	} else if len(chunk.Embedding) != s.dims {
		return "", fmt.Errorf("%w: got %d, store has %d", ErrDimensionMismatch, len(chunk.Embedding), s.dims)
	}

	// Copy the embedding so later caller mutations cannot corrupt the store.
	embedding := make([]float32, len(chunk.Embedding))
	copy(embedding, chunk.Embedding)
	chunk.Embedding = embedding

	mc := &memChunk{chunk: chunk, norm: norm}
	s.chunks = append(s.chunks, mc)
	s.byID[chunk.ID] = mc
	return chunk.ID, nil
}

// DeleteByDocument removes a document and all its chunks.
func (s *MemoryStore) DeleteByDocument(documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	removed := 0
	for _, mc := range s.chunks {
		if mc.chunk.DocumentID == documentID {
			delete(s.byID, mc.chunk.ID)
			removed++
			continue
		}
		kept = append(kept, mc)
	}
	s.chunks = kept
	delete(s.docs, documentID)

	if len(s.chunks) == 0 {
		s.dims = 0
	}
	return removed, nil
}

// Query scans every stored embedding and returns the top k by cosine
// similarity.
func (s *MemoryStore) Query(vector []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(vector), s.dims)
	}
	qnorm := vectorNorm(vector)
	if qnorm == 0 {
		return nil, fmt.Errorf("%w: query vector", ErrZeroVector)
	}

	type scored struct {
		mc    *memChunk
		score float64
	}
	candidates := make([]scored, len(s.chunks))
	for i, mc := range s.chunks {
		candidates[i] = scored{mc: mc, score: dot(vector, mc.chunk.Embedding) / (qnorm * mc.norm)}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]Result, 0, k)
	for _, c := range candidates[:k] {
		doc := s.docs[c.mc.chunk.DocumentID]
		results = append(results, Result{
			Chunk:    c.mc.chunk,
			Document: *doc,
			Score:    c.score,
		})
	}
	return results, nil
}

// Stats summarizes the store contents.
func (s *MemoryStore) Stats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Stats{
		DocumentCount: len(s.docs),
		ChunkCount:    len(s.chunks),
		Dimensions:    s.dims,
	}, nil
}

// Reset removes all documents and chunks.
func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = make(map[string]*Document)
	s.byID = make(map[string]*memChunk)
	s.chunks = nil
	s.dims = 0
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) countChunksLocked(documentID string) int {
	count := 0
	for _, mc := range s.chunks {
		if mc.chunk.DocumentID == documentID {
			count++
		}
	}
	return count
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
