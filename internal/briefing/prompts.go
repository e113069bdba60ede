package briefing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arovi-health/arovi/internal/workflow"
)

func targetLine(st *workflow.State) string {
	city, _ := st.Get(KeyTargetCity)
	state, _ := st.Get(KeyTargetState)
	country, _ := st.Get(KeyTargetCountry)
	date, _ := st.Get(KeyTargetDate)
	return fmt.Sprintf("Target: city=%v, state=%v, country=%v, date=%v.", city, state, country, date)
}

func mustJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func ingestionPrompt(regionLabel string, st *workflow.State, digest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a public-health news ingestion agent for the %s region.
%s

Below are raw web search results (and extracted article text where available)
for that region and date. From these, produce trustworthy, non-political,
public-health-relevant news items.

Focus on:
- Communicable and non-communicable disease trends
- Environmental health (air quality, heat, pollution, disasters)
- Health systems and access to care
- Vaccination and prevention campaigns
- Community health initiatives

Avoid:
- Partisan politics or election content
- Speculation, rumors, or unverified social media
- Sensational or fear-inducing framing

Output a JSON array of news items. For each item include:
region, title, source, url, published_date, summary,
topic, sentiment, public_health_relevance.

Tone: calm, factual, non-alarmist. If you are unsure about a claim, either
omit the item or clearly mark uncertainty.

Search results:
%s
`, regionLabel, targetLine(st), digest)
	return b.String()
}

func classificationPrompt(st *workflow.State, filtered []NewsItem) string {
	return fmt.Sprintf(`You are a classifier for public-health news.
%s

The items below have already been deduplicated and relevance-filtered. For
each item:
- Ensure region is one of: global, national, state, city.
- Assign a consistent topic label (e.g. infectious_disease, environment,
  mental_health, health_systems, injury_prevention).
- Assign sentiment: positive, neutral, or negative.
- Provide a concise public_health_relevance explanation if missing.
- Remove off-topic items with no clear public-health relevance.

Avoid politics and policy opinions. Do not fabricate events; if unsure, drop
the item. Respond with the cleaned items as a JSON array.

Items:
%s
`, targetLine(st), mustJSON(filtered))
}

func trendPrompt(st *workflow.State) (string, error) {
	v, ok := st.Get(KeyTaggedItems)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "trend_stage", Key: KeyTaggedItems}
	}
	return fmt.Sprintf(`You are a public-health trend analyst.
%s

Below is a list of classified news items with region, topic, sentiment, and
public_health_relevance fields.

Tasks:
1. Identify notable trends or clusters by topic, region, and sentiment.
2. Highlight emerging or ongoing risks, positive developments, and any
   important caveats or missing information.
3. Use a calm, non-alarmist tone and avoid speculation.

Respond with a JSON object with keys:
- key_trends: list of bullet point strings
- risks: list of bullet point strings
- positive_developments: list of bullet point strings
- notes_for_briefing_writer: free text guidance for the writer.

Items:
%s
`, targetLine(st), mustJSON(v)), nil
}

func draftingPrompt(st *workflow.State) (string, error) {
	items, ok := st.Get(KeyTaggedItems)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "drafting_stage", Key: KeyTaggedItems}
	}
	notes, ok := st.Get(KeyTrendNotes)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "drafting_stage", Key: KeyTrendNotes}
	}
	return fmt.Sprintf(`You are Arovi, a calm public-health briefing writer.
%s

Write clear, friendly Markdown sections from the classified items and trend
notes below:

1. Global
2. National (U.S.)
3. State (for the given state; if unknown, keep generic)
4. City (for the given city; if unknown, keep generic)
5. Good News (uplifting items from any region)
6. Public Health Fun Fact (short, neutral, educational; no controversy)

Tone: warm, calm, factual, non-alarmist. No political commentary and no
election-related content. Avoid speculative claims; if uncertain, say so
briefly or omit.

Respond with a JSON object mapping these exact keys to Markdown text:
section_global, section_us, section_state, section_city, section_good_news,
section_fun_fact.

Items:
%s

Trend notes:
%s
`, targetLine(st), mustJSON(items), mustJSON(notes)), nil
}

func combinerPrompt(st *workflow.State) (string, error) {
	v, ok := st.Get(KeyDraftSections)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "combiner_stage", Key: KeyDraftSections}
	}
	sections, ok := v.(map[string]string)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "combiner_stage", Key: KeyDraftSections, Want: "map[string]string"}
	}

	var b strings.Builder
	for _, k := range SectionKeys {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", k, sections[k])
	}

	return fmt.Sprintf(`Combine the section texts below into a single Markdown briefing with this
structure:

# Daily Public-Health Briefing for <City>, <State> - <Date>

## Global
## United States
## <State>
## <City>
## Good News
## Public Health Fun Fact

%s

Keep language accessible to a general audience and avoid fear-inducing
phrasing. Avoid politics or policy opinions. Respond with the final Markdown
only.

Sections:
%s`, targetLine(st), b.String()), nil
}

// currentDraft prefers the revised briefing once the loop has written one.
func currentDraft(st *workflow.State) (string, error) {
	if v, ok := st.Get(KeyBriefingRevised); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	v, ok := st.Get(KeyBriefingDraft)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "risk_checker_stage", Key: KeyBriefingDraft}
	}
	s, ok := v.(string)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "risk_checker_stage", Key: KeyBriefingDraft, Want: "string"}
	}
	return s, nil
}

func riskCheckPrompt(st *workflow.State) (string, error) {
	draft, err := currentDraft(st)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`You are a safety reviewer for Arovi's public-health briefing.

Identify any content in the briefing below that:
- Includes political or election-related commentary.
- Advocates for specific policies or parties.
- Uses speculative, fear-inducing, or sensational language.
- Makes unverifiable or unsourced health claims.

For each issue, suggest a concrete fix (rephrase, soften, or remove).

Respond with a JSON object:
- is_safe: true/false
- issues: list of {type, excerpt, suggested_fix}
- high_level_feedback: string

Briefing:
%s`, draft), nil
}

func redraftPrompt(st *workflow.State) (string, error) {
	draft, err := currentDraft(st)
	if err != nil {
		return "", err
	}
	report, ok := st.Get(KeyRiskReport)
	if !ok {
		return "", &workflow.MissingInputError{Stage: "redraft_stage", Key: KeyRiskReport}
	}
	return fmt.Sprintf(`You are an editor applying safety fixes to a public-health briefing.

Rewrite the full briefing below:
- Apply the suggested fixes from the risk report, or safe equivalents.
- Remove political content, speculation, and sensational phrasing.
- Preserve the structure and overall length as much as reasonable.
- Maintain a warm, calm tone.

Respond with the rewritten Markdown only.

Risk report:
%s

Briefing:
%s`, mustJSON(report), draft), nil
}
