package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/xhad/hexauthor/internal/models"
)

type ProcessorConfig struct {
	// CollapseLineBreaks joins paragraphs into a single line of text.
	CollapseLineBreaks bool
	NoisePatterns      []string
	MinContentLength   int
}

// Processor turns extracted text into the canonical form that chunk offsets
// are measured against. It never changes letter case.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.NoisePatterns == nil {
		config.NoisePatterns = []string{
			"Cookie Policy",
			"Accept Cookies",
			"Privacy Policy",
			"Terms of Service",
		}
	}

	return Processor{
		config: config,
	}
}

// Process canonicalizes each document and drops the ones left with less
// than MinContentLength characters.
func (p *Processor) Process(docs []models.Document) ([]models.Document, error) {
	var processed []models.Document

	for _, doc := range docs {
		doc = p.Canonicalize(doc)
		if utf8.RuneCountInString(doc.Content) < p.config.MinContentLength || doc.Content == "" {
			continue
		}
		processed = append(processed, doc)
	}

	return processed, nil
}

func (p *Processor) Canonicalize(doc models.Document) models.Document {
	doc.Title = strings.Join(strings.Fields(SanitizeUTF8(doc.Title)), " ")
	doc.Content = p.cleanText(doc.Content)
	if doc.ID == "" {
		doc.ID = ContentID(doc.URL, doc.Content)
	}
	return doc
}

func (p *Processor) cleanText(text string) string {
	text = SanitizeUTF8(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	for _, pattern := range p.config.NoisePatterns {
		text = strings.ReplaceAll(text, pattern, "")
	}

	paragraphs := p.splitIntoParagraphs(text)
	sep := "\n\n"
	if p.config.CollapseLineBreaks {
		sep = " "
	}
	return strings.Join(paragraphs, sep)
}

// splitIntoParagraphs breaks on blank lines and collapses whitespace inside
// each paragraph.
func (p *Processor) splitIntoParagraphs(text string) []string {
	var paragraphs []string
	current := strings.Builder{}

	flush := func() {
		if current.Len() > 0 {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	flush()

	return paragraphs
}

// Paragraphs returns the character ranges of the blank-line separated
// paragraphs in canonical text.
func Paragraphs(text string) []models.Range {
	var ranges []models.Range

	runes := []rune(text)
	start := -1
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			if start >= 0 {
				ranges = append(ranges, models.Range{Start: start, End: i})
				start = -1
			}
			i++
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		ranges = append(ranges, models.Range{Start: start, End: len(runes)})
	}

	return ranges
}

// ContentID derives a stable document id from its source and content.
func ContentID(source, content string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + content))
	return hex.EncodeToString(sum[:12])
}

// SanitizeUTF8 drops invalid bytes.
func SanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
