// Package fs discovers knowledge documents on disk for ingestion.
package fs

import "time"

// FileInfo represents metadata about a discovered document file.
type FileInfo struct {
	Path     string    // Absolute path to the file
	RelPath  string    // Path relative to the root
	Size     int64     // File size in bytes
	ModTime  time.Time // Last modification time
	Hash     string    // Content hash (xxh64 prefixed)
	MIMEType string    // MIME type from the file extension
}

// WalkOptions configures the document walker.
type WalkOptions struct {
	// Root is the directory to start walking from.
	Root string

	// MaxFileSize is the maximum file size to process (in bytes).
	MaxFileSize int64

	// MaxFileCount is the maximum number of files to process.
	MaxFileCount int

	// IgnorePatterns are additional patterns to ignore (gitignore syntax).
	IgnorePatterns []string

	// IncludeHidden includes hidden files and directories.
	IncludeHidden bool

	// UseGitignore respects a .gitignore file at the root.
	UseGitignore bool
}

// DefaultWalkOptions returns sensible defaults for walking.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		MaxFileSize:  20 * 1024 * 1024,
		MaxFileCount: 10000,
		UseGitignore: true,
	}
}

// Walker walks a directory tree and yields supported document files.
type Walker interface {
	// Walk calls fn for each supported file. The walk stops if fn returns
	// an error.
	Walk(fn func(FileInfo) error) error

	// Stats returns statistics about the walk.
	Stats() WalkStats
}

// WalkStats contains statistics from a directory walk.
type WalkStats struct {
	FilesFound   int   // Supported files found
	FilesSkipped int   // Files skipped due to size/pattern/format
	DirsSkipped  int   // Directories skipped
	TotalBytes   int64 // Total bytes of files found
	SkippedBytes int64 // Total bytes of oversized files
}
