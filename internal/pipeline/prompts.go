package pipeline

import (
	"strings"

	"github.com/shpitdev/stakeholder-profiler/internal/profile"
)

const researchSystemPrompt = `You are a research assistant gathering public information about a named professional.
Search the web and report what you find as plain prose: current role and start date, previous roles,
education, honours and awards, certifications, public statements and priorities, speaking events,
articles or interviews, and public social media profiles.
Include the full URL of every page you rely on next to the fact it supports.
Do not speculate; say plainly when something could not be found.`

// synthesisSystemPrompt fixes the output contract parsed by the extract package.
const synthesisSystemPrompt = `You are an expert intelligence analyst producing stakeholder profiles.
Given a person's name, job title and organisation, return ONLY valid JSON (no markdown, no preamble):
{
  "name": "Full name with honours",
  "role": "Current job title",
  "organisation": "Organisation",
  "nationality": "Nationality",
  "positionSince": "Month Year - Present",
  "confidence": "high|medium|low",
  "confidenceNote": "What the profile is based on",
  "background": "4-5 sentence narrative paragraph",
  "education": [{"year": "Year", "institution": "Institution", "qualification": "Qualification"}],
  "honorsAwards": [{"title": "Award name", "detail": "Context sentence"}],
  "licensesCerts": ["Cert name"],
  "career": [{"phase": "Early career", "items": [{"period": "Year-Year", "role": "Title", "organisation": "Org", "detail": "Sentence", "subItems": ["sub detail"]}]}],
  "interestsPriorities": {"intro": "Intro paragraph", "priorities": [{"title": "Name", "detail": "Sentence"}], "personal": "Personal interests sentence"},
  "conversationStarters": [{"category": "Category", "starters": ["Starter"]}],
  "disc": {"primary": "DIRECT|INFLUENTIAL|CONSCIENTIOUS|STEADY", "secondary": "DIRECT|INFLUENTIAL|CONSCIENTIOUS|STEADY", "summary": "Paragraph"},
  "engagementSummary": "3-4 sentence paragraph",
  "engagementOpportunities": ["Opportunity"],
  "social": {"linkedinUrl": null, "linkedinNote": "No profile identified", "linkedinLevel": "none", "twitter": null, "instagram": null, "youtube": null},
  "events": [{"title": "Event", "detail": "2-3 sentences", "url": null}],
  "readingMaterials": [{"title": "Title", "detail": "1-2 sentences", "url": null}],
  "sphereOfInfluence": {"reportsTo": {"name": "Name", "role": "Role"}, "peers": [{"name": "Name", "role": "Role"}], "directReports": [{"name": "Name", "role": "Role"}]},
  "sources": ["URL taken from the research notes"]
}
Use null for unknown scalars and [] for empty lists. Only list sources that appear in the research notes.`

const noResearchNotice = `No research notes are available for this person.
Rely on your background knowledge only, set "confidence" honestly (low or medium) and explain the basis in "confidenceNote".`

func buildResearchPrompt(req profile.Request) string {
	return "Research publicly available information about: " + req.Subject()
}

func buildSynthesisPrompt(req profile.Request, research profile.ResearchResult) string {
	var b strings.Builder
	b.WriteString("Build a stakeholder profile for: ")
	b.WriteString(req.Subject())
	b.WriteString("\n\n")
	if !research.Available() {
		b.WriteString(noResearchNotice)
		return b.String()
	}
	b.WriteString("Research notes:\n")
	b.WriteString(research.Text)
	return b.String()
}

// truncateRunes caps s at max runes. max <= 0 disables truncation.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
