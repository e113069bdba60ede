package briefing

import "testing"

func TestParseItemsBareArray(t *testing.T) {
	raw := "```json\n[{\"region\":\"global\",\"title\":\"A\"},{\"region\":\"city\",\"title\":\"B\"}]\n```"
	items, err := parseItems(raw)
	if err != nil {
		t.Fatalf("parseItems: %v", err)
	}
	if len(items) != 2 || items[1].Title != "B" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestParseItemsWrappedObject(t *testing.T) {
	raw := `{"items":[{"region":"national","title":"C"}]}`
	items, err := parseItems(raw)
	if err != nil {
		t.Fatalf("parseItems: %v", err)
	}
	if len(items) != 1 || items[0].Region != "national" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestParseItemsNullReply(t *testing.T) {
	// "null" is a plausible model answer for a region with no findings
	items, err := parseItems("null")
	if err != nil {
		t.Fatalf("parseItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %+v", items)
	}
}

func TestParseItemsGarbage(t *testing.T) {
	if _, err := parseItems("no structured content at all"); err == nil {
		t.Fatal("expected error for unparseable reply")
	}
}

func TestParseRiskReport(t *testing.T) {
	raw := `Found one issue.
{"is_safe": false, "issues": [{"type":"sensationalism","excerpt":"terrifying surge","suggested_fix":"state case counts plainly"}], "high_level_feedback":"soften tone"}`
	v, err := parseRiskReport(raw)
	if err != nil {
		t.Fatalf("parseRiskReport: %v", err)
	}
	report := v.(RiskReport)
	if report.IsSafe || len(report.Issues) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Issues[0].Type != "sensationalism" {
		t.Fatalf("unexpected issue: %+v", report.Issues[0])
	}
}

func TestParseTrendNotes(t *testing.T) {
	raw := `{"key_trends":["flu season starting"],"risks":[],"positive_developments":["vaccination up"],"notes_for_briefing_writer":"lead with flu"}`
	v, err := parseTrendNotes(raw)
	if err != nil {
		t.Fatalf("parseTrendNotes: %v", err)
	}
	notes := v.(TrendNotes)
	if len(notes.KeyTrends) != 1 || notes.NotesForBriefingWriter != "lead with flu" {
		t.Fatalf("unexpected notes: %+v", notes)
	}
}

func TestParseSections(t *testing.T) {
	raw := "```json\n{\"section_global\":\"## Global\",\"section_fun_fact\":\"Handwashing works.\"}\n```"
	v, err := parseSections(raw)
	if err != nil {
		t.Fatalf("parseSections: %v", err)
	}
	sections := v.(map[string]string)
	if sections["section_global"] != "## Global" {
		t.Fatalf("unexpected sections: %+v", sections)
	}
}
