package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/hexauthor/internal/models"
)

// HTMLExtractor handles uploaded HTML files.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(r io.Reader, filename string) (models.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.Document{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := MainContent(doc)

	out := newDocument(filename, "html", nil)
	out.Content = content
	if title != "" {
		out.Title = title
	}
	return out, nil
}

var blockSelectors = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td"

var mainSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// MainContent returns the readable text of a page, one paragraph per block
// element. Chrome such as navigation, scripts and footers is removed from
// doc in the process.
func MainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, aside").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	for _, selector := range mainSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			root = selected.First()
			break
		}
	}

	var paragraphs []string
	root.Find(blockSelectors).Each(func(_ int, sel *goquery.Selection) {
		// nested blocks are visited on their own
		if sel.Find(blockSelectors).Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(sel.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}
