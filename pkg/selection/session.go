package selection

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xhad/hexauthor/internal/models"
)

var (
	ErrOverlap      = errors.New("chunk overlaps an existing chunk")
	ErrInvalidRange = errors.New("chunk range is outside the document")
	ErrTextMismatch = errors.New("chunk text does not match the document")
	ErrEmptyTag     = errors.New("chunk tag is empty")
)

const (
	DefaultMinLength = 3
	DefaultDebounce  = 100 * time.Millisecond
)

type SessionConfig struct {
	MinLength int
	Debounce  time.Duration
	// Resolver defaults to a TextBuffer over the document.
	Resolver OffsetResolver
	NewID    func() string

	OnTextSelection  func(text string, r models.Range)
	OnAddChunk       func(chunk models.Chunk)
	OnRemoveChunk    func(id string)
	OnClearSelection func()
	Notify           func(msg string)
}

// Pending is a selection waiting for a tag.
type Pending struct {
	Text  string
	Range models.Range
}

// Session holds one document's chunk set, the tags used so far and the
// pending selection. The document itself is never modified.
type Session struct {
	config SessionConfig
	doc    string
	runes  []rune

	mu       sync.Mutex
	chunks   []models.Chunk
	usedTags []string
	pending  *Pending

	inFlight atomic.Bool
}

func NewWithConfig(document string, config SessionConfig) *Session {
	if config.MinLength <= 0 {
		config.MinLength = DefaultMinLength
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Resolver == nil {
		config.Resolver = NewTextBuffer(document)
	}
	if config.NewID == nil {
		config.NewID = newChunkID
	}

	return &Session{
		config: config,
		doc:    document,
		runes:  []rune(document),
	}
}

func New(document string) *Session {
	return NewWithConfig(document, SessionConfig{})
}

func newChunkID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Session) Document() string {
	return s.doc
}

// PointerUp schedules selection processing after the debounce delay. Calls
// made while a previous one is still waiting are dropped. read is invoked
// when the delay expires so it observes the settled selection; the next
// PointerUp is accepted from then on.
func (s *Session) PointerUp(read func() Selection) bool {
	if read == nil {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}

	time.AfterFunc(s.config.Debounce, func() {
		sel := read()
		// the selection is captured; Select itself is serialized by mu
		s.inFlight.Store(false)
		s.Select(sel)
	})
	return true
}

// Select validates a finished selection and, when admissible, makes it the
// pending selection. Every rejection is silent and drops any pending
// selection.
func (s *Session) Select(sel Selection) (Pending, bool) {
	if sel.Text == "" || sel.Anchor == nil || s.config.Resolver == nil {
		return s.reject()
	}

	trimmed := strings.TrimSpace(sel.Text)
	length := utf8.RuneCountInString(trimmed)
	if length < s.config.MinLength {
		return s.reject()
	}

	offset, ok := s.config.Resolver.ResolveOffset(sel.Anchor)
	if !ok {
		return s.reject()
	}

	// The anchor marks the raw selection start; skip the whitespace that trimming removed.
	lead := utf8.RuneCountInString(sel.Text) - utf8.RuneCountInString(strings.TrimLeftFunc(sel.Text, unicode.IsSpace))
	r := models.Range{Start: offset + lead, End: offset + lead + length}

	s.mu.Lock()
	if r.Start < 0 || r.End > len(s.runes) || string(s.runes[r.Start:r.End]) != trimmed || s.overlapsLocked(r) {
		s.mu.Unlock()
		return s.reject()
	}

	p := Pending{Text: trimmed, Range: r}
	s.pending = &p
	s.mu.Unlock()

	s.clearSelection()
	if s.config.OnTextSelection != nil {
		s.config.OnTextSelection(p.Text, p.Range)
	}
	return p, true
}

func (s *Session) reject() (Pending, bool) {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	s.clearSelection()
	return Pending{}, false
}

func (s *Session) clearSelection() {
	if s.config.OnClearSelection != nil {
		s.config.OnClearSelection()
	}
}

func (s *Session) Pending() (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

// Cancel discards the pending selection.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Confirm promotes the pending selection into a chunk tagged with tag. It
// does nothing when there is no pending selection or the tag is blank; a
// blank tag leaves the pending selection in place.
func (s *Session) Confirm(tag string) (models.Chunk, bool) {
	tag = strings.TrimSpace(tag)

	s.mu.Lock()
	if s.pending == nil || tag == "" {
		s.mu.Unlock()
		return models.Chunk{}, false
	}

	p := *s.pending
	s.pending = nil
	// chunks inserted since the selection was made may now cover it
	if s.overlapsLocked(p.Range) {
		s.mu.Unlock()
		return models.Chunk{}, false
	}

	chunk := models.Chunk{
		ID:         s.config.NewID(),
		Text:       p.Text,
		Tag:        tag,
		StartIndex: p.Range.Start,
		EndIndex:   p.Range.End,
	}
	s.chunks = append(s.chunks, chunk)
	s.addTagLocked(tag)
	s.mu.Unlock()

	if s.config.OnAddChunk != nil {
		s.config.OnAddChunk(chunk)
	}
	if s.config.Notify != nil {
		s.config.Notify(fmt.Sprintf("Chunk added with tag %q", tag))
	}
	return chunk, true
}

// Insert adds a chunk that did not come through the selection flow, such as
// one restored from a saved draft. Unlike the interactive path it reports
// why a chunk is refused.
func (s *Session) Insert(chunk models.Chunk) error {
	chunk.Tag = strings.TrimSpace(chunk.Tag)
	if chunk.Tag == "" {
		return ErrEmptyTag
	}

	s.mu.Lock()
	r := chunk.Range()
	if r.Start < 0 || r.Start >= r.End || r.End > len(s.runes) {
		s.mu.Unlock()
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, r.Start, r.End)
	}

	slice := string(s.runes[r.Start:r.End])
	if chunk.Text == "" {
		chunk.Text = slice
	} else if chunk.Text != slice {
		s.mu.Unlock()
		return ErrTextMismatch
	}

	if s.overlapsLocked(r) {
		s.mu.Unlock()
		return fmt.Errorf("%w: [%d, %d)", ErrOverlap, r.Start, r.End)
	}

	if chunk.ID == "" {
		chunk.ID = s.config.NewID()
	}
	s.chunks = append(s.chunks, chunk)
	s.addTagLocked(chunk.Tag)
	s.mu.Unlock()

	if s.config.OnAddChunk != nil {
		s.config.OnAddChunk(chunk)
	}
	return nil
}

// Remove deletes the chunk with the given id. The freed range becomes
// selectable again.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	before := len(s.chunks)
	s.chunks = slices.DeleteFunc(s.chunks, func(c models.Chunk) bool {
		return c.ID == id
	})
	removed := len(s.chunks) != before
	s.mu.Unlock()

	if removed && s.config.OnRemoveChunk != nil {
		s.config.OnRemoveChunk(id)
	}
	return removed
}

// Chunks returns the chunk set in insertion order.
func (s *Session) Chunks() []models.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chunks)
}

func (s *Session) UsedTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.usedTags)
}

func (s *Session) Render() []models.Run {
	return Render(s.doc, s.Chunks())
}

func (s *Session) SuggestTags(partial string) []string {
	return FilterTags(s.UsedTags(), partial)
}

// SectionInputs converts the chunk set into bulk-create input, in document
// order. Names are the source label followed by the chunk's position.
func (s *Session) SectionInputs(sourceLabel string) []models.SectionInput {
	chunks := SortByPosition(s.Chunks())

	inputs := make([]models.SectionInput, 0, len(chunks))
	for i, c := range chunks {
		name := fmt.Sprintf("%s #%d", sourceLabel, i+1)
		if sourceLabel == "" {
			name = c.Tag
		}
		inputs = append(inputs, models.SectionInput{
			Content: c.Text,
			Name:    name,
			Tags:    []string{c.Tag},
		})
	}
	return inputs
}

func (s *Session) overlapsLocked(r models.Range) bool {
	for _, c := range s.chunks {
		if r.Overlaps(c.Range()) {
			return true
		}
	}
	return false
}

func (s *Session) addTagLocked(tag string) {
	if !slices.Contains(s.usedTags, tag) {
		s.usedTags = append(s.usedTags, tag)
	}
}
