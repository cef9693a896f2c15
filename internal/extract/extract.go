// Package extract recovers a profile.Record from free text produced by the
// synthesis call.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shpitdev/stakeholder-profiler/internal/profile"
)

const (
	// MaxSources caps the number of URLs recovered from research text.
	MaxSources = 25

	// ExcerptLimit bounds the raw payload carried by an Error.
	ExcerptLimit = 300
)

// Error is returned when no valid record can be recovered. It is not retryable.
type Error struct {
	Reason string
	// Excerpt is a bounded prefix of the raw payload for diagnostics.
	Excerpt string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "extraction failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %s", e.Reason, e.Err.Error())
	}
	return "extraction failed: " + e.Reason
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var (
	openFenceRe  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	closeFenceRe = regexp.MustCompile("\r?\n?```[ \t]*$")
)

// StripFences removes one layer of leading/trailing code fences and an optional
// language tag. Text without fences is returned trimmed but otherwise unchanged.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = openFenceRe.ReplaceAllString(s, "")
	s = closeFenceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Extract parses raw into a normalized record. When the record has no sources,
// fallbackSources fill them in.
func Extract(raw string, fallbackSources []string) (profile.Record, error) {
	body := StripFences(raw)
	if body == "" {
		return profile.Record{}, &Error{Reason: "empty payload", Excerpt: Excerpt(raw, ExcerptLimit)}
	}

	doc := body
	if !strings.HasPrefix(doc, "{") {
		obj, ok := findObject(doc)
		if !ok {
			return profile.Record{}, &Error{Reason: "no json object found", Excerpt: Excerpt(raw, ExcerptLimit)}
		}
		doc = obj
	}

	var rec profile.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		// Trailing prose after a leading object.
		obj, ok := findObject(doc)
		if !ok || obj == doc {
			return profile.Record{}, &Error{Reason: "parse structured json", Excerpt: Excerpt(raw, ExcerptLimit), Err: err}
		}
		rec = profile.Record{}
		if err := json.Unmarshal([]byte(obj), &rec); err != nil {
			return profile.Record{}, &Error{Reason: "parse structured json", Excerpt: Excerpt(raw, ExcerptLimit), Err: err}
		}
	}
	rec.Normalize()

	if len(rec.Sources) == 0 && len(fallbackSources) > 0 {
		rec.Sources = profile.DedupePreserveOrder(fallbackSources)
		if len(rec.Sources) > MaxSources {
			rec.Sources = rec.Sources[:MaxSources]
		}
	}
	return rec, nil
}

// findObject returns the first balanced {...} span in s, honoring JSON strings.
func findObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Excerpt returns at most limit runes of s, never splitting a multi-byte rune.
func Excerpt(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
