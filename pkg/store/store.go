package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/hexauthor/internal/models"
)

var ErrInvalidInput = errors.New("invalid input")

const DefaultTagLimit = 10

// validateBulk checks a bulk-create request and returns the sections with
// trimmed names and de-duplicated, non-empty tags.
func validateBulk(workspaceID string, sections []models.SectionInput) ([]models.SectionInput, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, fmt.Errorf("%w: workspace id is required", ErrInvalidInput)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no sections to create", ErrInvalidInput)
	}

	cleaned := make([]models.SectionInput, 0, len(sections))
	for i, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			return nil, fmt.Errorf("%w: section %d has no content", ErrInvalidInput, i)
		}

		tags := make([]string, 0, len(s.Tags))
		for _, tag := range s.Tags {
			tag = strings.TrimSpace(tag)
			if tag != "" && !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
		cleaned = append(cleaned, models.SectionInput{
			Content: s.Content,
			Name:    strings.TrimSpace(s.Name),
			Tags:    tags,
		})
	}
	return cleaned, nil
}

// rankTags orders tags matching query: prefix matches first, then other
// substring matches, each group alphabetically.
func rankTags(tags []string, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultTagLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))

	var prefix, contains []string
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		switch {
		case strings.HasPrefix(lower, q):
			prefix = append(prefix, tag)
		case strings.Contains(lower, q):
			contains = append(contains, tag)
		}
	}
	slices.Sort(prefix)
	slices.Sort(contains)

	ranked := append(prefix, contains...)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func newSectionID() string {
	return uuid.NewString()
}
