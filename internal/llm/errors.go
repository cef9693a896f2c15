package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of failure classes produced by a Client.
type Kind string

const (
	KindOverloaded  Kind = "overloaded"
	KindRateLimited Kind = "rate_limited"
	KindFatal       Kind = "fatal"
)

// APIError is the error model every Client implementation maps its failures into.
type APIError struct {
	Kind    Kind
	Code    int
	Status  string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e == nil {
		return "llm api error"
	}
	parts := []string{fmt.Sprintf("llm api error: kind=%s", e.Kind)}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if strings.TrimSpace(e.Status) != "" {
		parts = append(parts, "status="+strings.TrimSpace(e.Status))
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	return strings.Join(parts, " ")
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindForStatus maps an HTTP-like status code onto a Kind.
// 529 is the overloaded code some providers use; 503 is the standard one.
func KindForStatus(code int) Kind {
	switch code {
	case 429:
		return KindRateLimited
	case 503, 529:
		return KindOverloaded
	default:
		return KindFatal
	}
}

// Classify returns the Kind of err. Typed errors win, then status codes, and only
// then message matching.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind != "" {
			return apiErr.Kind
		}
		if k := KindForStatus(apiErr.Code); k != KindFatal {
			return k
		}
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		if k := KindForStatus(sc.StatusCode()); k != KindFatal {
			return k
		}
	}
	return kindFromMessage(err.Error())
}

func kindFromMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "overloaded"):
		return KindOverloaded
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource_exhausted"):
		return KindRateLimited
	default:
		return KindFatal
	}
}

// IsRetryable reports whether err signals overload or rate limiting.
func IsRetryable(err error) bool {
	k := Classify(err)
	return k == KindOverloaded || k == KindRateLimited
}
