package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSQLiteInsertAndQuery(t *testing.T) {
	s := setupSQLiteStore(t)
	addTestDocument(t, s, "doc-a", "a.txt")

	v := []float32{0.1, 0.9, -0.3}
	id, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "hello world", StartOffset: 0, EndOffset: 11, Embedding: v})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := s.Query(v, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Chunk.ID)
	assert.Equal(t, "hello world", results[0].Chunk.Text)
	assert.Equal(t, "a.txt", results[0].Document.Name)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestSQLiteQueryOrdering(t *testing.T) {
	s := setupSQLiteStore(t)
	addTestDocument(t, s, "doc-a", "a.txt")

	for i, v := range [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}} {
		_, err := s.Insert(Chunk{ID: fmt.Sprintf("chunk-%d", i+1), DocumentID: "doc-a", Text: "t", Embedding: v})
		require.NoError(t, err)
	}

	results, err := s.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "chunk-1", results[0].Chunk.ID)
	assert.Equal(t, "chunk-3", results[1].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSQLiteQueryEmptyStore(t *testing.T) {
	s := setupSQLiteStore(t)

	results, err := s.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteRejectsInvalidInserts(t *testing.T) {
	s := setupSQLiteStore(t)
	addTestDocument(t, s, "doc-a", "a.txt")

	_, err := s.Insert(Chunk{ID: "c1", DocumentID: "doc-a", Text: "t", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	t.Run("duplicate chunk ID", func(t *testing.T) {
		_, err := s.Insert(Chunk{ID: "c1", DocumentID: "doc-a", Text: "t", Embedding: []float32{0, 1}})
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("zero vector", func(t *testing.T) {
		_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "t", Embedding: []float32{0, 0}})
		assert.ErrorIs(t, err, ErrZeroVector)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "t", Embedding: []float32{1, 0, 0}})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := s.Insert(Chunk{DocumentID: "ghost", Text: "t", Embedding: []float32{1, 0}})
		assert.ErrorIs(t, err, ErrUnknownDocument)
	})
}

func TestSQLiteDeleteByDocument(t *testing.T) {
	s := setupSQLiteStore(t)
	addTestDocument(t, s, "doc-a", "a.txt")
	addTestDocument(t, s, "doc-b", "b.txt")

	for i := 0; i < 3; i++ {
		_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "t", Embedding: []float32{float32(i + 1), 1}})
		require.NoError(t, err)
	}
	_, err := s.Insert(Chunk{ID: "keep", DocumentID: "doc-b", Text: "t", Embedding: []float32{1, 1}})
	require.NoError(t, err)

	removed, err := s.DeleteByDocument("doc-a")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	doc, err := s.GetDocument("doc-a")
	require.NoError(t, err)
	assert.Nil(t, doc)

	results, err := s.Query([]float32{1, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].Chunk.ID)
}

func TestSQLiteDocumentLookups(t *testing.T) {
	s := setupSQLiteStore(t)

	err := s.AddDocument(Document{ID: "v1", Name: "notes.txt", MIMEType: "text/plain", Hash: "abc", UploadedAt: time.Now().Add(-time.Hour).UTC()})
	require.NoError(t, err)
	err = s.AddDocument(Document{ID: "v2", Name: "notes.txt", MIMEType: "text/plain", Hash: "def", UploadedAt: time.Now().UTC()})
	require.NoError(t, err)

	doc, err := s.GetDocument("v1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "abc", doc.Hash)

	latest, err := s.FindDocumentByName("notes.txt")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v2", latest.ID)

	docs, err := s.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "v1", docs[0].ID)
	assert.Equal(t, "v2", docs[1].ID)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "knowledge.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	addTestDocument(t, s, "doc-a", "a.txt")
	_, err = s.Insert(Chunk{ID: "c1", DocumentID: "doc-a", Text: "persisted", Embedding: []float32{0.2, 0.4, 0.6}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 3, stats.Dimensions)

	results, err := reopened.Query([]float32{0.2, 0.4, 0.6}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted", results[0].Chunk.Text)
}

func TestSQLiteReset(t *testing.T) {
	s := setupSQLiteStore(t)
	addTestDocument(t, s, "doc-a", "a.txt")
	_, err := s.Insert(Chunk{DocumentID: "doc-a", Text: "t", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	require.NoError(t, s.Reset())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 0, stats.ChunkCount)

	docs, err := s.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSQLiteResetBeforeFirstInsert(t *testing.T) {
	s := setupSQLiteStore(t)
	assert.NoError(t, s.Reset())
}
