package llm

import (
	"context"
	"strings"
)

// CallKind names the two call shapes the pipeline makes.
type CallKind string

const (
	CallResearch  CallKind = "research"
	CallSynthesis CallKind = "synthesis"
)

// Call is one outbound request to the external reasoning service.
type Call struct {
	Kind   CallKind
	System string
	Prompt string

	// UseSearch permits the service to use its retrieval capability.
	UseSearch bool

	// JSONOutput asks the service to answer with a single JSON document.
	JSONOutput bool

	MaxTokens int32
}

// SegmentKind distinguishes text from tool or metadata output.
type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentOther SegmentKind = "other"
)

type Segment struct {
	Kind SegmentKind
	Text string
}

// Response is the text-bearing result of a Call.
type Response struct {
	Model    string
	Segments []Segment

	// Citations are URLs the service reported using, if any.
	Citations []string
}

// Text concatenates every text segment, ignoring everything else.
func (r Response) Text() string {
	var b strings.Builder
	for _, s := range r.Segments {
		if s.Kind != SegmentText {
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// TextResponse is a convenience for single-segment responses.
func TextResponse(text string) Response {
	return Response{Segments: []Segment{{Kind: SegmentText, Text: text}}}
}

// Client performs one external call.
type Client interface {
	Generate(ctx context.Context, call Call) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, call Call) (Response, error)

func (f ClientFunc) Generate(ctx context.Context, call Call) (Response, error) {
	return f(ctx, call)
}
