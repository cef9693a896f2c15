package profile

import "strings"

// Confidence is how strongly the synthesized record is backed by evidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free text onto the fixed enumeration. Anything unrecognised
// is treated as low.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Record is the synthesized stakeholder profile.
type Record struct {
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	Organisation   string     `json:"organisation"`
	Nationality    string     `json:"nationality"`
	PositionSince  string     `json:"positionSince"`
	Confidence     Confidence `json:"confidence"`
	ConfidenceNote string     `json:"confidenceNote"`
	Background     string     `json:"background"`

	Education     []Education `json:"education"`
	HonorsAwards  []Award     `json:"honorsAwards"`
	LicensesCerts []string    `json:"licensesCerts"`
	Career        []Phase     `json:"career"`

	InterestsPriorities  Interests      `json:"interestsPriorities"`
	ConversationStarters []StarterGroup `json:"conversationStarters"`
	DISC                 DISC           `json:"disc"`

	EngagementSummary       string   `json:"engagementSummary"`
	EngagementOpportunities []string `json:"engagementOpportunities"`

	Social            Social      `json:"social"`
	Events            []Reference `json:"events"`
	ReadingMaterials  []Reference `json:"readingMaterials"`
	SphereOfInfluence Sphere      `json:"sphereOfInfluence"`

	Sources []string `json:"sources"`
}

type Education struct {
	Year          string `json:"year"`
	Institution   string `json:"institution"`
	Qualification string `json:"qualification"`
}

type Award struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Phase groups career items, e.g. "Early career".
type Phase struct {
	Phase string       `json:"phase"`
	Items []CareerItem `json:"items"`
}

type CareerItem struct {
	Period       string   `json:"period"`
	Role         string   `json:"role"`
	Organisation string   `json:"organisation"`
	Detail       string   `json:"detail"`
	SubItems     []string `json:"subItems"`
}

type Interests struct {
	Intro      string  `json:"intro"`
	Priorities []Award `json:"priorities"`
	Personal   string  `json:"personal"`
}

type StarterGroup struct {
	Category string   `json:"category"`
	Starters []string `json:"starters"`
}

type DISC struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Summary   string `json:"summary"`
}

// Social holds public presence. Nil pointers mean nothing was found.
type Social struct {
	LinkedInURL   *string `json:"linkedinUrl"`
	LinkedInNote  string  `json:"linkedinNote"`
	LinkedInLevel string  `json:"linkedinLevel"`
	Twitter       *string `json:"twitter"`
	Instagram     *string `json:"instagram"`
	YouTube       *string `json:"youtube"`
}

type Reference struct {
	Title  string  `json:"title"`
	Detail string  `json:"detail"`
	URL    *string `json:"url"`
}

type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Sphere struct {
	ReportsTo     *Person  `json:"reportsTo"`
	Peers         []Person `json:"peers"`
	DirectReports []Person `json:"directReports"`
}

// Normalize makes every sequence non-nil, dedupes sources and coerces confidence
// into the enumeration. It is safe to call more than once.
func (r *Record) Normalize() {
	r.Confidence = ParseConfidence(string(r.Confidence))

	r.Education = nonNil(r.Education)
	r.HonorsAwards = nonNil(r.HonorsAwards)
	r.LicensesCerts = nonNil(r.LicensesCerts)
	r.Career = nonNil(r.Career)
	for i := range r.Career {
		r.Career[i].Items = nonNil(r.Career[i].Items)
		for j := range r.Career[i].Items {
			r.Career[i].Items[j].SubItems = nonNil(r.Career[i].Items[j].SubItems)
		}
	}
	r.InterestsPriorities.Priorities = nonNil(r.InterestsPriorities.Priorities)
	r.ConversationStarters = nonNil(r.ConversationStarters)
	for i := range r.ConversationStarters {
		r.ConversationStarters[i].Starters = nonNil(r.ConversationStarters[i].Starters)
	}
	r.EngagementOpportunities = nonNil(r.EngagementOpportunities)
	r.Events = nonNil(r.Events)
	r.ReadingMaterials = nonNil(r.ReadingMaterials)
	r.SphereOfInfluence.Peers = nonNil(r.SphereOfInfluence.Peers)
	r.SphereOfInfluence.DirectReports = nonNil(r.SphereOfInfluence.DirectReports)
	r.Sources = DedupePreserveOrder(r.Sources)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// DedupePreserveOrder trims values, drops empties and keeps the first occurrence
// of each. The result is never nil.
func DedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
