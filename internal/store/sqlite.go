package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec extension
	sqlite_vec.Auto()
}

// SQLiteStore implements Store using SQLite and the sqlite-vec index.
//
// Unlike the memory backend, tie ordering between equal-distance results is
// whatever the index returns; exact-tie insertion ordering is only guaranteed
// by MemoryStore.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	dims int
}

// NewSQLiteStore opens (creating if needed) a persistent store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db}

	// Recover dimensionality from an existing vector table, if any.
	var createSQL string
	err = db.QueryRow(`
		SELECT sql FROM sqlite_master WHERE type='table' AND name='chunk_vectors'
	`).Scan(&createSQL)
	if err == nil {
		if i := strings.Index(createSQL, "float["); i >= 0 {
			if _, scanErr := fmt.Sscanf(createSQL[i+len("float["):], "%d", &s.dims); scanErr != nil {
				s.dims = 0
			}
		}
	} else if err != sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("failed to inspect vector table: %w", err)
	}

	log.Debug("Opened SQLite store", "path", dbPath, "dimensions", s.dims)

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddDocument registers a document.
func (s *SQLiteStore) AddDocument(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	var exists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE id = ?", doc.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: document %s", ErrDuplicateID, doc.ID)
	}

	_, err = s.db.Exec(`
		INSERT INTO documents (id, name, mime_type, hash, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.ID, doc.Name, doc.MIMEType, doc.Hash, doc.UploadedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

// GetDocument retrieves a document by ID, or nil if unknown.
func (s *SQLiteStore) GetDocument(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDocument("WHERE d.id = ?", id)
}

// FindDocumentByName retrieves the most recently uploaded document with the
// given name, or nil.
func (s *SQLiteStore) FindDocumentByName(name string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDocument("WHERE d.name = ? ORDER BY d.uploaded_at DESC LIMIT 1", name)
}

func (s *SQLiteStore) queryDocument(clause string, arg any) (*Document, error) {
	var doc Document
	var uploadedAt string

	err := s.db.QueryRow(`
		SELECT d.id, d.name, d.mime_type, d.hash, d.uploaded_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d `+clause,
		arg,
	).Scan(&doc.ID, &doc.Name, &doc.MIMEType, &doc.Hash, &uploadedAt, &doc.ChunkCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
	return &doc, nil
}

// ListDocuments returns all documents with chunk counts, oldest first.
func (s *SQLiteStore) ListDocuments() ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT d.id, d.name, d.mime_type, d.hash, d.uploaded_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		ORDER BY d.uploaded_at, d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var uploadedAt string
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.MIMEType, &doc.Hash, &uploadedAt, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Insert stores a chunk and its embedding.
func (s *SQLiteStore) Insert(chunk Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}

	norm := vectorNorm(chunk.Embedding)
	if norm == 0 {
		return "", fmt.Errorf("%w: chunk %s", ErrZeroVector, chunk.ID)
	}
	if s.dims == 0 {
		if err := ensureVectorTable(s.db, len(chunk.Embedding)); err != nil {
			return "", fmt.Errorf("failed to ensure vector table: %w", err)
		}
		s.dims = len(chunk.Embedding)
	} else if len(chunk.Embedding) != s.dims {
		return "", fmt.Errorf("%w: got %d, store has %d", ErrDimensionMismatch, len(chunk.Embedding), s.dims)
	}

	var docCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE id = ?", chunk.DocumentID).Scan(&docCount); err != nil {
		return "", fmt.Errorf("failed to check document: %w", err)
	}
	if docCount == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocument, chunk.DocumentID)
	}

	var chunkCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE id = ?", chunk.ID).Scan(&chunkCount); err != nil {
		return "", fmt.Errorf("failed to check chunk: %w", err)
	}
	if chunkCount > 0 {
		return "", fmt.Errorf("%w: chunk %s", ErrDuplicateID, chunk.ID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO chunks (id, document_id, text, start_offset, end_offset)
		VALUES (?, ?, ?, ?, ?)
	`, chunk.ID, chunk.DocumentID, chunk.Text, chunk.StartOffset, chunk.EndOffset)
	if err != nil {
		return "", fmt.Errorf("failed to insert chunk: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to get chunk seq: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO chunk_vectors (chunk_seq, embedding)
		VALUES (?, ?)
	`, seq, serializeEmbedding(chunk.Embedding))
	if err != nil {
		return "", fmt.Errorf("failed to insert vector: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit chunk: %w", err)
	}
	return chunk.ID, nil
}

// DeleteByDocument removes a document and all its chunks.
func (s *SQLiteStore) DeleteByDocument(documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM chunk_vectors WHERE chunk_seq IN (
			SELECT seq FROM chunks WHERE document_id = ?
		)
	`, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}

	result, err := tx.Exec("DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	removed, _ := result.RowsAffected()

	if _, err := tx.Exec("DELETE FROM documents WHERE id = ?", documentID); err != nil {
		return 0, fmt.Errorf("failed to delete document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return int(removed), nil
}

// Query performs a vector similarity search via sqlite-vec.
func (s *SQLiteStore) Query(vector []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || s.dims == 0 {
		return nil, nil
	}
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(vector), s.dims)
	}
	if vectorNorm(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector", ErrZeroVector)
	}

	rows, err := s.db.Query(`
		SELECT
			c.id, c.document_id, c.text, c.start_offset, c.end_offset,
			d.id, d.name, d.mime_type, d.hash, d.uploaded_at,
			cv.distance
		FROM chunk_vectors cv
		JOIN chunks c ON c.seq = cv.chunk_seq
		JOIN documents d ON d.id = c.document_id
		WHERE cv.embedding MATCH ?
			AND k = ?
		ORDER BY cv.distance ASC
	`, serializeEmbedding(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var result Result
		var uploadedAt string
		var distance float64

		if err := rows.Scan(
			&result.Chunk.ID, &result.Chunk.DocumentID, &result.Chunk.Text,
			&result.Chunk.StartOffset, &result.Chunk.EndOffset,
			&result.Document.ID, &result.Document.Name, &result.Document.MIMEType,
			&result.Document.Hash, &uploadedAt,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		result.Document.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
		result.Score = 1 - distance // cosine distance -> similarity

		results = append(results, result)
	}

	return results, rows.Err()
}

// Stats summarizes the store contents.
func (s *SQLiteStore) Stats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{Dimensions: s.dims}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&stats.DocumentCount); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&stats.ChunkCount); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	return stats, nil
}

// Reset removes all documents and chunks.
func (s *SQLiteStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{
		"DELETE FROM chunk_vectors",
		"DELETE FROM chunks",
		"DELETE FROM documents",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			// chunk_vectors may not exist before the first insert
			if stmt == "DELETE FROM chunk_vectors" {
				continue
			}
			return fmt.Errorf("failed to reset store: %w", err)
		}
	}
	return nil
}

// serializeEmbedding converts a float32 slice to bytes for sqlite-vec.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

