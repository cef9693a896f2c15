package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shpitdev/stakeholder-profiler/internal/llm"
)

// Strategy selects how the wait between attempts grows.
type Strategy string

const (
	// Exponential starts at BaseDelay and doubles after each retryable failure.
	Exponential Strategy = "exponential"
	// Fixed waits BaseDelay every time, sized to clear a rate-limit window.
	Fixed Strategy = "fixed"
)

// ParseStrategy accepts "exponential" or "fixed" (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Exponential, "":
		return Exponential, nil
	case Fixed:
		return Fixed, nil
	default:
		return "", fmt.Errorf("unknown retry strategy %q (want exponential or fixed)", s)
	}
}

// Policy configures retries for one call site.
type Policy struct {
	Strategy    Strategy
	BaseDelay   time.Duration
	MaxAttempts int
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry: base delay must be >= 0, got %s", p.BaseDelay)
	}
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	return nil
}

// MaxDelay caps a single exponential wait.
const MaxDelay = time.Hour

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Strategy == Fixed {
		return p.BaseDelay
	}
	d := p.BaseDelay
	for i := 1; i < attempt && d < MaxDelay; i++ {
		d *= 2
	}
	if d > MaxDelay {
		d = MaxDelay
	}
	return d
}

// State is the retry bookkeeping for one external call. It is handed to the
// notify callback before each wait.
type State struct {
	Attempt     int
	MaxAttempts int
	NextDelay   time.Duration
	Err         error
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e == nil || e.Err == nil {
		return "retries exhausted"
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %s", e.Attempts, e.Err.Error())
}

func (e *ExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type options struct {
	retryable func(error) bool
	notify    func(State)
	wait      func(context.Context, time.Duration) error
}

type Option func(*options)

// WithClassifier overrides llm.IsRetryable.
func WithClassifier(f func(error) bool) Option {
	return func(o *options) { o.retryable = f }
}

// WithNotify registers a callback invoked once per retry, before the wait.
func WithNotify(f func(State)) Option {
	return func(o *options) { o.notify = f }
}

// WithWait replaces the timer-based wait.
func WithWait(f func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.wait = f }
}

// Do runs op until it succeeds, fails with a non-retryable error, or the policy's
// attempt ceiling is reached. Waits are interrupted by ctx.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		retryable: llm.IsRetryable,
		wait:      sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
		}
		lastErr = err
		if !o.retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if o.notify != nil {
			o.notify(State{
				Attempt:     attempt,
				MaxAttempts: p.MaxAttempts,
				NextDelay:   delay,
				Err:         err,
			})
		}
		if err := o.wait(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
