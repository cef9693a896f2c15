package extract

import (
	"regexp"
	"strings"

	"github.com/shpitdev/stakeholder-profiler/internal/profile"
)

// urlRe stops at whitespace, quotes and enclosing brackets.
var urlRe = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}` + "`" + `]+`)

// ScanURLs finds http(s) URLs in text, deduplicated in first-seen order and capped
// at limit (<=0 means MaxSources).
func ScanURLs(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxSources
	}
	matches := urlRe.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, ".,;:!?*")
	}
	out := profile.DedupePreserveOrder(matches)
	kept := out[:0]
	for _, u := range out {
		if u == "http://" || u == "https://" {
			continue
		}
		kept = append(kept, u)
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
