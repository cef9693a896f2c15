package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"github.com/shpitdev/stakeholder-profiler/internal/retry"
)

// State is a Coordinator state. A run moves strictly forward through them.
type State string

const (
	StateAccepted     State = "accepted"
	StateResearching  State = "researching"
	StateSynthesizing State = "synthesizing"
	StateExtracting   State = "extracting"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Run is the record of one pipeline execution. It is owned by the goroutine
// executing Coordinator.Run and must not be shared until Run returns.
type Run struct {
	ID       string
	Request  profile.Request
	State    State
	Research *profile.ResearchResult
	Raw      string
	Record   *profile.Record
	Err      *Error
	Events   []progress.Event

	StartedAt  time.Time
	FinishedAt time.Time

	sink progress.Sink
	now  func() time.Time
}

func newRun(req profile.Request, sink progress.Sink, now func() time.Time) *Run {
	if sink == nil {
		sink = progress.Discard
	}
	return &Run{
		ID:        uuid.NewString(),
		Request:   req,
		StartedAt: now(),
		sink:      sink,
		now:       now,
	}
}

// RetryCount returns the number of retry notifications logged by the run.
func (r *Run) RetryCount() int {
	n := 0
	for _, e := range r.Events {
		if e.Type == progress.EventRetry {
			n++
		}
	}
	return n
}

// States returns the states entered, in order.
func (r *Run) States() []State {
	var out []State
	for _, e := range r.Events {
		if e.Type == progress.EventState {
			out = append(out, State(e.State))
		}
	}
	return out
}

func (r *Run) emit(e progress.Event) {
	e.Seq = len(r.Events) + 1
	e.At = r.now()
	if e.State == "" {
		e.State = string(r.State)
	}
	r.Events = append(r.Events, e)
	r.sink.Emit(e)
}

func (r *Run) enter(s State, message string) {
	r.State = s
	r.emit(progress.Event{Type: progress.EventState, State: string(s), Message: message})
}

func (r *Run) note(stage, message string) {
	r.emit(progress.Event{Type: progress.EventNote, Stage: stage, Message: message})
}

func (r *Run) retryNotice(stage string, s retry.State) {
	r.emit(progress.Event{
		Type:    progress.EventRetry,
		Stage:   stage,
		Attempt: s.Attempt,
		Delay:   s.NextDelay,
		Message: fmt.Sprintf("%s service busy, retrying in %s (attempt %d/%d)", stage, s.NextDelay.Round(time.Millisecond), s.Attempt, s.MaxAttempts),
	})
}

func (r *Run) fail(err *Error) {
	r.Err = err
	r.FinishedAt = r.now()
	r.enter(StateFailed, err.Message)
}

func (r *Run) complete(rec profile.Record) {
	r.Record = &rec
	r.FinishedAt = r.now()
	r.enter(StateCompleted, "Profile complete")
}
