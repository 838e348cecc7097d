package selection

import "strings"

// FilterTags returns the tags containing partial, case-insensitively, in
// their original order. An empty partial matches every tag.
func FilterTags(tags []string, partial string) []string {
	needle := strings.ToLower(strings.TrimSpace(partial))

	matches := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			matches = append(matches, tag)
		}
	}
	return matches
}
