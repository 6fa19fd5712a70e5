// Package loader extracts plain text from uploaded document bytes.
//
// Extraction is all-or-nothing: when a document fails to parse partway
// through, nothing extracted so far is returned.
package loader

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for MIME types the loader does not handle.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument is returned when a document fails to parse.
	ErrCorruptDocument = errors.New("corrupt document")
)

// MIME types handled by the loader.
const (
	MIMETypeText     = "text/plain"
	MIMETypeMarkdown = "text/markdown"
	MIMETypePDF      = "application/pdf"
	MIMETypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Load extracts plain text from raw document bytes. The MIME type may carry
// parameters (e.g. "text/plain; charset=utf-8"); they are ignored.
func Load(data []byte, mimeType string) (string, error) {
	mediaType := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mediaType = parsed
	}

	switch strings.ToLower(mediaType) {
	case MIMETypeText, MIMETypeMarkdown, "text/x-markdown":
		return decodeText(data), nil
	case MIMETypePDF:
		return extractPDF(data)
	case MIMETypeDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
}

// Supported reports whether the loader handles the given MIME type.
func Supported(mimeType string) bool {
	mediaType := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mediaType = parsed
	}
	switch strings.ToLower(mediaType) {
	case MIMETypeText, MIMETypeMarkdown, "text/x-markdown", MIMETypePDF, MIMETypeDOCX:
		return true
	}
	return false
}

// DetectMIMEType resolves the MIME type for a file. The declared type wins
// when it is specific; otherwise the filename extension decides.
func DetectMIMEType(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".log":
		return MIMETypeText
	case ".md", ".markdown":
		return MIMETypeMarkdown
	case ".pdf":
		return MIMETypePDF
	case ".docx":
		return MIMETypeDOCX
	}
	return declared
}

// decodeText decodes bytes as UTF-8, replacing invalid sequences, and strips
// a leading BOM if present.
func decodeText(data []byte) string {
	text := strings.ToValidUTF8(string(data), "�")
	text = strings.TrimPrefix(text, "\uFEFF")
	return strings.TrimSpace(text)
}
