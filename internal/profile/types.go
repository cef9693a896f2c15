package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyName is returned by Request.Validate when the subject name is missing.
var ErrEmptyName = errors.New("name is required")

// Request is the immutable input to one pipeline run.
type Request struct {
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Organisation string `json:"organisation,omitempty"`
}

// Validate checks the request before any external call is made.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Normalized returns a copy with surrounding whitespace removed from every field.
func (r Request) Normalized() Request {
	return Request{
		Name:         strings.TrimSpace(r.Name),
		Role:         strings.TrimSpace(r.Role),
		Organisation: strings.TrimSpace(r.Organisation),
	}
}

// Subject renders the descriptor sent to the external service.
func (r Request) Subject() string {
	r = r.Normalized()
	role := r.Role
	if role == "" {
		role = "unknown role"
	}
	org := r.Organisation
	if org == "" {
		org = "unknown org"
	}
	return fmt.Sprintf("%s, %s, %s", r.Name, role, org)
}

// ResearchResult is the output of the research stage. Text is empty when research
// was unavailable.
type ResearchResult struct {
	Text string `json:"text"`
	// Sources are URLs found in the research text. They are the only candidates
	// for a record's fallback sources.
	Sources []string `json:"sources"`
	// Citations are grounding URIs reported by the service. They are never
	// copied into a record.
	Citations []string `json:"citations,omitempty"`
}

// Available reports whether any research text was retained.
func (r ResearchResult) Available() bool {
	return strings.TrimSpace(r.Text) != ""
}
