package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values
const (
	// Embedding defaults
	DefaultEmbeddingProvider = "ollama"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "all-minilm"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"
	DefaultEmbedTimeout      = 60 * time.Second

	// Chunking defaults
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	// Retrieval defaults
	DefaultTopK            = 3
	DefaultMaxContextChars = 4000
	DefaultMinScore        = 0.3

	// Store defaults
	DefaultStoreBackend = "memory"
	DefaultDBFileName   = "knowledge.db"

	// Server defaults
	DefaultServerAddr = "127.0.0.1:8600"

	// Ingest defaults
	DefaultMaxFileSize = 20 << 20 // 20MB
	DefaultBatchSize   = 50
)

// DefaultIgnorePatterns returns the default list of file patterns skipped
// when ingesting a directory.
func DefaultIgnorePatterns() []string {
	return []string{
		// Version control
		".git/",
		".svn/",
		".hg/",

		// Dependencies and build outputs
		"node_modules/",
		"vendor/",
		"dist/",
		"build/",
		"__pycache__/",

		// IDE/Editor
		".idea/",
		".vscode/",
		"*.swp",
		"*~",

		// Hidden files
		".*",
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "aura")
}

// DefaultDatabasePath returns the default path for the sqlite store.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDBFileName
	}
	return filepath.Join(home, ".local", "share", "aura", DefaultDBFileName)
}
