package selection

import (
	"cmp"
	"slices"
	"strings"

	"github.com/xhad/hexauthor/internal/models"
)

// SortByPosition returns a copy of chunks ordered by StartIndex. The sort is
// stable so equal starts keep their insertion order.
func SortByPosition(chunks []models.Chunk) []models.Chunk {
	sorted := slices.Clone(chunks)
	slices.SortStableFunc(sorted, func(a, b models.Chunk) int {
		return cmp.Compare(a.StartIndex, b.StartIndex)
	})
	return sorted
}

// Render splits doc into plain runs and chunk runs in document order.
// Concatenating the runs' text yields doc.
//
// Chunks are expected not to overlap. If they do, the earlier chunk in sort
// order keeps the shared characters and the later one is clipped to what
// remains; a chunk that is fully covered is not rendered.
func Render(doc string, chunks []models.Chunk) []models.Run {
	text := []rune(doc)
	if len(chunks) == 0 {
		return []models.Run{plainRun(text, 0, len(text))}
	}

	var runs []models.Run
	cursor := 0
	for _, c := range SortByPosition(chunks) {
		start := max(clamp(c.StartIndex, 0, len(text)), cursor)
		end := clamp(c.EndIndex, 0, len(text))
		if end <= start {
			// empty, inverted, out of range or already covered
			continue
		}
		if start > cursor {
			runs = append(runs, plainRun(text, cursor, start))
		}
		runs = append(runs, models.Run{
			Text:    string(text[start:end]),
			Start:   start,
			End:     end,
			ChunkID: c.ID,
			Tag:     c.Tag,
		})
		cursor = end
	}

	if cursor < len(text) {
		runs = append(runs, plainRun(text, cursor, len(text)))
	}
	return runs
}

func plainRun(text []rune, start, end int) models.Run {
	return models.Run{
		Text:       string(text[start:end]),
		Start:      start,
		End:        end,
		Selectable: true,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Join concatenates the text of runs.
func Join(runs []models.Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
