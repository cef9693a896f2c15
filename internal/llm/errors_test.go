package llm

import (
	"errors"
	"fmt"
	"testing"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want Kind
	}{
		{name: "nil", in: nil, want: ""},
		{name: "typed_overloaded", in: &APIError{Kind: KindOverloaded}, want: KindOverloaded},
		{name: "typed_fatal_wins_over_message", in: &APIError{Kind: KindFatal, Message: "overloaded"}, want: KindFatal},
		{name: "untyped_code_429", in: &APIError{Code: 429}, want: KindRateLimited},
		{name: "untyped_code_529", in: &APIError{Code: 529}, want: KindOverloaded},
		{name: "wrapped_typed", in: fmt.Errorf("research: %w", &APIError{Kind: KindRateLimited}), want: KindRateLimited},
		{name: "status_coder_503", in: statusErr(503), want: KindOverloaded},
		{name: "status_coder_400", in: statusErr(400), want: KindFatal},
		{name: "message_overloaded", in: errors.New("Overloaded: try later"), want: KindOverloaded},
		{name: "message_rate_limit", in: errors.New(`{"type":"rate_limit_error"}`), want: KindRateLimited},
		{name: "plain", in: errors.New("invalid api key"), want: KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Fatalf("Classify()=%q want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&APIError{Kind: KindOverloaded}) {
		t.Fatalf("overloaded should be retryable")
	}
	if IsRetryable(&APIError{Kind: KindFatal, Code: 401}) {
		t.Fatalf("fatal should not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil should not be retryable")
	}
}

func TestResponseTextIgnoresNonText(t *testing.T) {
	r := Response{Segments: []Segment{
		{Kind: SegmentText, Text: "a"},
		{Kind: SegmentOther, Text: "tool"},
		{Kind: SegmentText, Text: "b"},
	}}
	if got := r.Text(); got != "ab" {
		t.Fatalf("Text()=%q", got)
	}
}
