package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/shpitdev/stakeholder-profiler/internal/extract"
	"github.com/shpitdev/stakeholder-profiler/internal/llm"
	"github.com/shpitdev/stakeholder-profiler/internal/redact"
	"github.com/shpitdev/stakeholder-profiler/internal/retry"
)

// ErrorKind is the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindExternalOverloaded  ErrorKind = "external_service_overloaded"
	KindExternalRateLimited ErrorKind = "external_service_rate_limited"
	KindExternalFatal       ErrorKind = "external_service_fatal"
	KindExtraction          ErrorKind = "extraction"
	KindTimeout             ErrorKind = "timeout"
	KindCanceled            ErrorKind = "canceled"
)

// Error ends a run. Message is safe to show to a client; Raw is only set for
// extraction failures and is already bounded.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Raw     string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "pipeline error"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func invalidRequest(err error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: "Name is required", Err: err}
}

func extractionError(err error) *Error {
	pe := &Error{Kind: KindExtraction, Stage: string(StateExtracting), Message: "JSON parse failed", Err: err}
	var xe *extract.Error
	if errors.As(err, &xe) {
		pe.Raw = xe.Excerpt
	}
	return pe
}

func timeoutError(stage string, budget fmt.Stringer, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Stage:   stage,
		Message: fmt.Sprintf("profile run exceeded its %s budget", budget),
		Err:     err,
	}
}

// stageError maps an external-call failure into the taxonomy.
func stageError(stage string, budget fmt.Stringer, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return timeoutError(stage, budget, err)
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Stage: stage, Message: "profile run canceled", Err: err}
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		switch llm.Classify(exhausted.Err) {
		case llm.KindRateLimited:
			return &Error{
				Kind:    KindExternalRateLimited,
				Stage:   stage,
				Message: fmt.Sprintf("%s failed: external service rate limited after %d attempts", stage, exhausted.Attempts),
				Err:     err,
			}
		default:
			return &Error{
				Kind:    KindExternalOverloaded,
				Stage:   stage,
				Message: fmt.Sprintf("%s failed: external service overloaded after %d attempts", stage, exhausted.Attempts),
				Err:     err,
			}
		}
	}

	return &Error{
		Kind:    KindExternalFatal,
		Stage:   stage,
		Message: fmt.Sprintf("%s failed: %s", stage, redact.Secrets(err.Error())),
		Err:     err,
	}
}
