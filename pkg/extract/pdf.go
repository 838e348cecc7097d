package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xhad/hexauthor/internal/models"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFExtractor handles PDF files. Each page becomes one paragraph.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(r io.Reader, filename string) (models.Document, error) {
	// ledongthuc/pdf opens files by path, so spool the upload to disk.
	tmp, err := os.CreateTemp("", "hexauthor-pdf-*.pdf")
	if err != nil {
		return models.Document{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return models.Document{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := pdfPages(tmpPath)
	if err != nil {
		return models.Document{}, fmt.Errorf("extract pdf text: %w", err)
	}

	doc := newDocument(filename, "pdf", pages)
	doc.Metadata["pages"] = len(pages)
	return doc, nil
}

func pdfPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages, nil
}
