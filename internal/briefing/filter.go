package briefing

import "strings"

// FilterResult carries the cleaned items plus the counts the classification
// stage reports back.
type FilterResult struct {
	Items         []NewsItem
	OriginalCount int
	FilteredCount int
}

// FilterAndDedupe drops malformed and low-relevance items and removes
// duplicates, preserving first-seen order. An item is malformed when its
// title or region is empty after trimming; malformed items are skipped, not
// fatal. Relevance is judged by the length of the public_health_relevance
// field against minRelevanceLen. The dedupe key is the case-folded
// (region, title) pair.
func FilterAndDedupe(items []NewsItem, minRelevanceLen int) FilterResult {
	seen := make(map[string]struct{}, len(items))
	filtered := make([]NewsItem, 0, len(items))

	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		region := strings.TrimSpace(item.Region)
		relevance := strings.TrimSpace(item.PublicHealthRelevance)

		if title == "" || region == "" {
			continue
		}
		if len(relevance) < minRelevanceLen {
			continue
		}

		key := strings.ToLower(region) + "\x00" + strings.ToLower(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		filtered = append(filtered, item)
	}

	return FilterResult{
		Items:         filtered,
		OriginalCount: len(items),
		FilteredCount: len(filtered),
	}
}
