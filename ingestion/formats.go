// Package ingestion turns document references into plain text and splits
// that text into overlapping chunks for retrieval.
package ingestion

import (
	"bytes"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DocumentFormat enumerates supported document payload formats.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = ""
	// FormatMarkdown represents Markdown documents.
	FormatMarkdown DocumentFormat = "markdown"
	// FormatPDF represents PDF documents.
	FormatPDF DocumentFormat = "pdf"
	// FormatCSV represents comma separated values documents.
	FormatCSV DocumentFormat = "csv"
	// FormatDOCX represents Office Open XML word processing documents.
	FormatDOCX DocumentFormat = "docx"
	// FormatHTML represents HTML documents.
	FormatHTML DocumentFormat = "html"
	// FormatText represents plain text, also used as the raw-bytes fallback.
	FormatText DocumentFormat = "text"
)

// DetectFormat infers a document format from the provided path's extension.
// URLs are accepted; only their path component is inspected.
func DetectFormat(name string) DocumentFormat {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Host != "" {
		name = path.Base(u.Path)
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	case ".csv":
		return FormatCSV
	case ".docx":
		return FormatDOCX
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".txt", ".text":
		return FormatText
	default:
		return FormatUnknown
	}
}

// DetectContentType maps a MIME content type to a format. Generic binary
// types map to FormatUnknown so the caller can fall back further.
func DetectContentType(contentType string) DocumentFormat {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch mediaType {
	case "application/pdf":
		return FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	case "text/csv":
		return FormatCSV
	case "text/markdown", "text/x-markdown":
		return FormatMarkdown
	case "text/plain":
		return FormatText
	default:
		return FormatUnknown
	}
}

// sniffContentType guesses a content type from the payload itself. DOCX files
// are zip archives, so a zip carrying word/document.xml is reported as DOCX.
func sniffContentType(data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return "application/pdf"
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) && bytes.Contains(data, []byte("word/")) {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return http.DetectContentType(data)
}
