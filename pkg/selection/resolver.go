package selection

import (
	"strings"
	"unicode/utf8"
)

// Selection is a finished user selection as reported by the UI layer. Text is
// the raw selected text, Anchor is whatever the UI uses to locate the start of
// the selection inside its flattened text view.
type Selection struct {
	Text   string
	Anchor any
}

// OffsetResolver turns a UI anchor into a character offset within the
// canonical document. It reports false when the anchor cannot be located.
type OffsetResolver interface {
	ResolveOffset(anchor any) (int, bool)
}

// Needle anchors a selection by phrase: the Occurrence-th (0-based) match of
// Text in the buffer.
type Needle struct {
	Text       string
	Occurrence int
}

// TextBuffer resolves anchors against a flat text view of the document. It
// accepts int anchors (character offsets) and Needle anchors.
type TextBuffer struct {
	text   string
	length int
}

func NewTextBuffer(text string) *TextBuffer {
	return &TextBuffer{
		text:   text,
		length: utf8.RuneCountInString(text),
	}
}

func (b *TextBuffer) ResolveOffset(anchor any) (int, bool) {
	switch a := anchor.(type) {
	case int:
		if a < 0 || a > b.length {
			return 0, false
		}
		return a, true
	case Needle:
		return b.find(a)
	case *Needle:
		if a == nil {
			return 0, false
		}
		return b.find(*a)
	}
	return 0, false
}

func (b *TextBuffer) find(n Needle) (int, bool) {
	if n.Text == "" || n.Occurrence < 0 {
		return 0, false
	}

	pos := 0
	for i := 0; ; i++ {
		idx := strings.Index(b.text[pos:], n.Text)
		if idx < 0 {
			return 0, false
		}
		if i == n.Occurrence {
			return utf8.RuneCountInString(b.text[:pos+idx]), true
		}
		// advance by one rune so overlapping occurrences are counted
		_, size := utf8.DecodeRuneInString(b.text[pos+idx:])
		pos += idx + size
	}
}

// Occurrences returns the character offsets of every match of phrase.
func (b *TextBuffer) Occurrences(phrase string) []int {
	var offsets []int
	for i := 0; ; i++ {
		off, ok := b.find(Needle{Text: phrase, Occurrence: i})
		if !ok {
			return offsets
		}
		offsets = append(offsets, off)
	}
}
