package store

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTestDocument(t *testing.T, s Store, id, name string) {
	t.Helper()
	err := s.AddDocument(Document{
		ID:         id,
		Name:       name,
		MIMEType:   "text/plain",
		UploadedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestMemoryInsertAssignsID(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	id, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "hello", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestMemoryInsertDuplicateID(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	_, err := s.Insert(Chunk{ID: "c1", DocumentID: "doc-a", Text: "one", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	_, err = s.Insert(Chunk{ID: "c1", DocumentID: "doc-a", Text: "two", Embedding: []float32{0, 1}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestMemoryInsertRejectsZeroVector(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "zero", Embedding: []float32{0, 0, 0}})
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestMemoryInsertRejectsDimensionMismatch(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "2d", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	_, err = s.Insert(Chunk{DocumentID: "doc-a", Text: "3d", Embedding: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryInsertUnknownDocument(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Insert(Chunk{DocumentID: "ghost", Text: "x", Embedding: []float32{1}})
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestMemoryAddDocumentDuplicate(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	err := s.AddDocument(Document{ID: "doc-a", Name: "again.txt"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestMemoryQueryEmptyStore(t *testing.T) {
	s := NewMemoryStore()

	results, err := s.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryQueryRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	v := []float32{0.3, -0.7, 0.2, 0.5}
	_, err := s.Insert(Chunk{ID: "self", DocumentID: "doc-a", Text: "self", Embedding: v})
	require.NoError(t, err)
	_, err = s.Insert(Chunk{ID: "other", DocumentID: "doc-a", Text: "other", Embedding: []float32{-0.5, 0.1, 0.9, -0.2}})
	require.NoError(t, err)

	results, err := s.Query(v, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "self", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemoryQueryToyScenario(t *testing.T) {
	// Three chunks in a 2-D space: [1,0], [0,1], [0.7,0.7].
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	for i, v := range [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}} {
		_, err := s.Insert(Chunk{
			ID:         fmt.Sprintf("chunk-%d", i+1),
			DocumentID: "doc-a",
			Text:       fmt.Sprintf("chunk %d", i+1),
			Embedding:  v,
		})
		require.NoError(t, err)
	}

	results, err := s.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "chunk-1", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "chunk-3", results[1].Chunk.ID)
	assert.InDelta(t, math.Sqrt2/2, results[1].Score, 1e-6)
}

func TestMemoryQueryOrderingAndBounds(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	n := 10
	for i := 0; i < n; i++ {
		angle := float64(i) / float64(n) * math.Pi / 2
		_, err := s.Insert(Chunk{
			ID:         fmt.Sprintf("c%d", i),
			DocumentID: "doc-a",
			Text:       "t",
			Embedding:  []float32{float32(math.Cos(angle)), float32(math.Sin(angle))},
		})
		require.NoError(t, err)
	}

	t.Run("k within bounds", func(t *testing.T) {
		results, err := s.Query([]float32{1, 0}, 4)
		require.NoError(t, err)
		require.Len(t, results, 4)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("k exceeds store size", func(t *testing.T) {
		results, err := s.Query([]float32{1, 0}, 100)
		require.NoError(t, err)
		assert.Len(t, results, n)
	})
}

func TestMemoryQueryTiesKeepInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	// Identical embeddings score identically; the earlier insert must win.
	for _, id := range []string{"first", "second", "third"} {
		_, err := s.Insert(Chunk{ID: id, DocumentID: "doc-a", Text: id, Embedding: []float32{0.6, 0.8}})
		require.NoError(t, err)
	}

	results, err := s.Query([]float32{0.6, 0.8}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Chunk.ID)
	assert.Equal(t, "second", results[1].Chunk.ID)
	assert.Equal(t, "third", results[2].Chunk.ID)
}

func TestMemoryDeleteByDocument(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")
	addTestDocument(t, s, "doc-b", "b.txt")

	for i, v := range [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}} {
		_, err := s.Insert(Chunk{ID: fmt.Sprintf("a%d", i), DocumentID: "doc-a", Text: "t", Embedding: v})
		require.NoError(t, err)
	}
	_, err := s.Insert(Chunk{ID: "b0", DocumentID: "doc-b", Text: "t", Embedding: []float32{0.5, 0.5}})
	require.NoError(t, err)

	removed, err := s.DeleteByDocument("doc-a")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	// doc-b remains queryable.
	results, err := s.Query([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b0", results[0].Chunk.ID)

	// Deleting an unknown document is not an error.
	removed, err = s.DeleteByDocument("nope")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestMemoryDeleteAllEmptiesQueries(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	for i, v := range [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}} {
		_, err := s.Insert(Chunk{ID: fmt.Sprintf("a%d", i), DocumentID: "doc-a", Text: "t", Embedding: v})
		require.NoError(t, err)
	}

	removed, err := s.DeleteByDocument("doc-a")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	results, err := s.Query([]float32{0.2, 0.9}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndependentIngestions(t *testing.T) {
	// The same content under two document IDs yields two independently
	// deletable chunk sets.
	s := NewMemoryStore()
	addTestDocument(t, s, "copy-1", "notes.txt")
	addTestDocument(t, s, "copy-2", "notes.txt")

	for _, docID := range []string{"copy-1", "copy-2"} {
		for i, v := range [][]float32{{1, 0}, {0, 1}} {
			_, err := s.Insert(Chunk{
				ID:         fmt.Sprintf("%s-%d", docID, i),
				DocumentID: docID,
				Text:       "shared text",
				Embedding:  v,
			})
			require.NoError(t, err)
		}
	}

	removed, err := s.DeleteByDocument("copy-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	results, err := s.Query([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "copy-2", r.Chunk.DocumentID)
	}
}

func TestMemoryListDocuments(t *testing.T) {
	s := NewMemoryStore()

	err := s.AddDocument(Document{ID: "old", Name: "old.txt", MIMEType: "text/plain", UploadedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	err = s.AddDocument(Document{ID: "new", Name: "new.txt", MIMEType: "text/plain", UploadedAt: time.Now()})
	require.NoError(t, err)

	_, err = s.Insert(Chunk{DocumentID: "new", Text: "t", Embedding: []float32{1}})
	require.NoError(t, err)

	docs, err := s.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "old", docs[0].ID)
	assert.Equal(t, 0, docs[0].ChunkCount)
	assert.Equal(t, "new", docs[1].ID)
	assert.Equal(t, 1, docs[1].ChunkCount)
}

func TestMemoryFindDocumentByName(t *testing.T) {
	s := NewMemoryStore()

	err := s.AddDocument(Document{ID: "v1", Name: "notes.txt", UploadedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	err = s.AddDocument(Document{ID: "v2", Name: "notes.txt", UploadedAt: time.Now()})
	require.NoError(t, err)

	doc, err := s.FindDocumentByName("notes.txt")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "v2", doc.ID)

	missing, err := s.FindDocumentByName("absent.txt")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryReset(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")
	_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "t", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	require.NoError(t, s.Reset())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 0, stats.ChunkCount)

	// Dimensionality resets with the content.
	addTestDocument(t, s, "doc-b", "b.txt")
	_, err = s.Insert(Chunk{DocumentID: "doc-b", Text: "t", Embedding: []float32{1, 0, 0}})
	assert.NoError(t, err)
}

func TestMemoryConcurrentReadsAndWrites(t *testing.T) {
	s := NewMemoryStore()
	addTestDocument(t, s, "doc-a", "a.txt")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := s.Insert(Chunk{
					DocumentID: "doc-a",
					Text:       "t",
					Embedding:  []float32{float32(i + 1), float32(j + 1)},
				})
				assert.NoError(t, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := s.Query([]float32{1, 1}, 5)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 400, stats.ChunkCount)
}
