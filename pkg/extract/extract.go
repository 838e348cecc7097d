package extract

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xhad/hexauthor/internal/models"
)

// Extractor pulls the readable text out of an uploaded file. Paragraphs in
// the returned content are separated by blank lines.
type Extractor interface {
	Extract(r io.Reader, filename string) (models.Document, error)
}

// SupportedExtensions lists file extensions uploads can use.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate extractor for a filename.
func ForFile(filename string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	case ".pdf":
		return &PDFExtractor{}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// File extracts filename's content with the matching extractor.
func File(r io.Reader, filename string) (models.Document, error) {
	e, err := ForFile(filename)
	if err != nil {
		return models.Document{}, err
	}
	return e.Extract(r, filename)
}

func newDocument(filename, format string, paragraphs []string) models.Document {
	return models.Document{
		Title:   strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		Content: strings.Join(paragraphs, "\n\n"),
		Metadata: map[string]interface{}{
			"filename": filepath.Base(filename),
			"format":   format,
		},
	}
}
