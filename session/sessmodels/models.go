package sessmodels

// SearchHit is one follow-up search result over a session's indexed items.
type SearchHit struct {
	DocID   string  `json:"doc_id"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Region  string  `json:"region"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Snippet shortens item text for a search hit.
func Snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "..."
}
