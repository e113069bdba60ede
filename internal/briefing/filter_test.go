package briefing

import "testing"

const longRelevance = "Directly affects community transmission risk and local health-system capacity."

func item(region, title string) NewsItem {
	return NewsItem{
		Region:                region,
		Title:                 title,
		Source:                "Example Wire",
		URL:                   "https://example.com/" + title,
		PublishedDate:         "2026-08-29",
		Summary:               "summary of " + title,
		Topic:                 "infectious_disease",
		Sentiment:             "neutral",
		PublicHealthRelevance: longRelevance,
	}
}

func TestFilterAndDedupeRemovesDuplicates(t *testing.T) {
	in := []NewsItem{
		item("global", "Measles outbreak update"),
		item("global", "Measles Outbreak Update"), // same key after case folding
		item("national", "Measles outbreak update"),
		item("global", "Heat advisory extended"),
	}
	res := FilterAndDedupe(in, 40)
	if res.FilteredCount != 3 {
		t.Fatalf("expected 3 items after dedupe, got %d", res.FilteredCount)
	}
	if res.OriginalCount != 4 {
		t.Fatalf("expected original count 4, got %d", res.OriginalCount)
	}
	if len(res.Items) > len(in) {
		t.Fatalf("output larger than input: %d > %d", len(res.Items), len(in))
	}
	// first-seen order and first-seen copy win
	if res.Items[0].Title != "Measles outbreak update" || res.Items[0].Region != "global" {
		t.Fatalf("order not preserved: %+v", res.Items[0])
	}
}

func TestFilterAndDedupeSkipsMalformed(t *testing.T) {
	missingTitle := item("global", "x")
	missingTitle.Title = "  "
	missingRegion := item("", "Clinic hours extended")
	in := []NewsItem{missingTitle, missingRegion, item("city", "Clinic hours extended")}

	res := FilterAndDedupe(in, 40)
	if len(res.Items) != 1 {
		t.Fatalf("expected malformed items skipped, got %d items", len(res.Items))
	}
	if res.Items[0].Region != "city" {
		t.Fatalf("wrong survivor: %+v", res.Items[0])
	}
}

func TestFilterAndDedupeDropsLowRelevance(t *testing.T) {
	weak := item("global", "Minor note")
	weak.PublicHealthRelevance = "short"
	res := FilterAndDedupe([]NewsItem{weak, item("global", "Vaccination drive expands")}, 40)
	if len(res.Items) != 1 {
		t.Fatalf("expected low-relevance item dropped, got %d items", len(res.Items))
	}
	for _, it := range res.Items {
		if len(it.PublicHealthRelevance) < 40 {
			t.Fatalf("item below relevance threshold survived: %+v", it)
		}
	}
}

func TestFilterAndDedupeEmptyInput(t *testing.T) {
	res := FilterAndDedupe(nil, 40)
	if len(res.Items) != 0 || res.OriginalCount != 0 {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
}
