// Package store provides vector storage and cosine-similarity retrieval for
// knowledge-base chunks.
package store

import "time"

// Document is a registry entry for an ingested document. Documents are
// created on upload, never mutated, and deleted with all their chunks.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MIMEType   string    `json:"mime_type"`
	Hash       string    `json:"hash,omitempty"` // xxh64 of the raw upload
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is one embedded passage of a document. StartOffset and EndOffset are
// rune offsets into the extracted document text.
type Chunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Embedding   []float32 `json:"-"`
}

// Result pairs a matched chunk with its document and cosine similarity score
// in [-1, 1].
type Result struct {
	Chunk    Chunk    `json:"chunk"`
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Stats summarizes the contents of a store.
type Stats struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
	Dimensions    int `json:"dimensions"`
}
