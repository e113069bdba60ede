package briefing

// State keys written by the pipeline stages. Each key has exactly one
// designated writer; the parallel ingestion members write disjoint keys so
// the merge needs no coordination beyond waiting for the group.
const (
	KeyItemsGlobal     = "items_global"
	KeyItemsUS         = "items_us"
	KeyItemsState      = "items_state"
	KeyItemsCity       = "items_city"
	KeyTaggedItems     = "tagged_items"
	KeyTrendNotes      = "trend_notes"
	KeyDraftSections   = "draft_sections"
	KeyBriefingDraft   = "briefing_draft"
	KeyRiskReport      = "risk_report"
	KeyBriefingRevised = "briefing_revised"
	KeyRiskLoopOutcome = "risk_loop_outcome"
	KeyMetricsSummary  = "metrics_summary"
)

// Seed keys placed into state before the pipeline runs, describing the
// briefing target. They are read-only from the stages' point of view.
const (
	KeyTargetCity    = "target_city"
	KeyTargetState   = "target_state"
	KeyTargetCountry = "target_country"
	KeyTargetDate    = "target_date"
)

// Region labels used on news items.
const (
	RegionGlobal   = "global"
	RegionNational = "national"
	RegionState    = "state"
	RegionCity     = "city"
)

// NewsItem is a single public-health news record. Items are created by the
// ingestion stages, cleaned and tagged by classification, and consumed by the
// drafting stages.
type NewsItem struct {
	Region                string `json:"region"`
	Title                 string `json:"title"`
	Source                string `json:"source"`
	URL                   string `json:"url"`
	PublishedDate         string `json:"published_date"`
	Summary               string `json:"summary"`
	Topic                 string `json:"topic"`
	Sentiment             string `json:"sentiment"`
	PublicHealthRelevance string `json:"public_health_relevance"`
}

// TrendNotes summarizes trends, risks, and positives for the briefing writer.
type TrendNotes struct {
	KeyTrends              []string `json:"key_trends"`
	Risks                  []string `json:"risks"`
	PositiveDevelopments   []string `json:"positive_developments"`
	NotesForBriefingWriter string   `json:"notes_for_briefing_writer"`
}

// RiskIssue is a single problem the risk checker found in a draft.
type RiskIssue struct {
	Type         string `json:"type"`
	Excerpt      string `json:"excerpt"`
	SuggestedFix string `json:"suggested_fix"`
}

// RiskReport is the risk checker's verdict over the current draft.
type RiskReport struct {
	IsSafe            bool        `json:"is_safe"`
	Issues            []RiskIssue `json:"issues"`
	HighLevelFeedback string      `json:"high_level_feedback"`
}

// Request describes one briefing run target.
type Request struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Date    string `json:"date"`
}

// Seed returns the initial state values for a run.
func (r Request) Seed() map[string]interface{} {
	return map[string]interface{}{
		KeyTargetCity:    r.City,
		KeyTargetState:   r.State,
		KeyTargetCountry: r.Country,
		KeyTargetDate:    r.Date,
	}
}

// SectionKeys is the fixed ordering of draft sections the combiner assembles.
var SectionKeys = []string{
	"section_global",
	"section_us",
	"section_state",
	"section_city",
	"section_good_news",
	"section_fun_fact",
}
