package extract

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     Extractor
	}{
		{"notes.txt", &TextExtractor{}},
		{"README.MD", &MarkdownExtractor{}},
		{"page.htm", &HTMLExtractor{}},
		{"brochure.pdf", &PDFExtractor{}},
		{"proposal.docx", &DOCXExtractor{}},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := ForFile(tt.filename)
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
			assert.True(t, IsSupported(tt.filename))
		})
	}

	_, err := ForFile("sheet.xlsx")
	assert.Error(t, err)
	assert.False(t, IsSupported("sheet.xlsx"))
}

func TestTextExtractor(t *testing.T) {
	input := "First paragraph line one.  \nFirst paragraph line two.\n\n\n  \nSecond paragraph.\n"
	doc, err := File(strings.NewReader(input), "uploads/notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "notes", doc.Title)
	assert.Equal(t, "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.", doc.Content)
	assert.Equal(t, "text", doc.Metadata["format"])
	assert.Equal(t, "notes.txt", doc.Metadata["filename"])
}

func TestTextExtractor_Empty(t *testing.T) {
	doc, err := File(strings.NewReader(""), "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, "", doc.Content)
}

func TestMarkdownExtractor(t *testing.T) {
	input := "# Company Overview\n\nWe are a **boutique** consultancy\nbased in Leeds.\n\n- Strategy\n- Delivery\n\n```\ncode sample\n```\n"
	doc, err := File(strings.NewReader(input), "about.md")
	require.NoError(t, err)

	assert.Equal(t, "about", doc.Title)
	assert.Equal(t, "Company Overview\n\nWe are a boutique consultancy based in Leeds.\n\nStrategy\n\nDelivery\n\ncode sample", doc.Content)
}

func TestHTMLExtractor(t *testing.T) {
	input := `<html><head><title>Case Study</title></head><body>
		<header>Site header</header>
		<article><h2>Results</h2><p>Revenue  grew <em>40%</em>.</p></article>
		<footer>Copyright</footer>
	</body></html>`
	doc, err := File(strings.NewReader(input), "case.html")
	require.NoError(t, err)

	assert.Equal(t, "Case Study", doc.Title)
	assert.Equal(t, "Results\n\nRevenue grew 40%.", doc.Content)
}

func TestHTMLExtractor_NoBlocks(t *testing.T) {
	doc, err := File(strings.NewReader("<div>just   some text</div>"), "fragment.html")
	require.NoError(t, err)
	assert.Equal(t, "fragment", doc.Title)
	assert.Equal(t, "just some text", doc.Content)
}

func TestDOCXExtractor(t *testing.T) {
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("Executive summary")
	w.AddParagraph()
	w.AddParagraph().AddText("We propose a phased rollout.")

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	doc, err := File(&buf, "proposal.docx")
	require.NoError(t, err)
	assert.Equal(t, "proposal", doc.Title)
	assert.Equal(t, "Executive summary\n\nWe propose a phased rollout.", doc.Content)
}

func TestPDFExtractor_Invalid(t *testing.T) {
	_, err := File(strings.NewReader("not a pdf"), "broken.pdf")
	assert.Error(t, err)
}
