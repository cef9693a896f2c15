// Package progress carries advisory status events from a pipeline run to
// whichever transport is waiting on it.
package progress

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	// EventState marks entry into a pipeline state.
	EventState EventType = "state"
	// EventRetry reports a retry wait inside a stage.
	EventRetry EventType = "retry"
	// EventNote is any other human-readable status, e.g. degraded research.
	EventNote EventType = "note"
)

type Event struct {
	Seq     int
	Type    EventType
	State   string
	Stage   string
	Message string
	Attempt int
	Delay   time.Duration
	At      time.Time
}

// Sink receives events. Emit must not block indefinitely; events are advisory.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Buffer collects events in order. Safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Emit(e Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

// Events returns a copy of everything emitted so far.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// ChannelSink forwards events to a channel until ctx is done, after which events
// are dropped instead of blocking the run.
type ChannelSink struct {
	ctx context.Context
	ch  chan Event
}

func NewChannelSink(ctx context.Context, buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ctx: ctx, ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(e Event) {
	select {
	case s.ch <- e:
	case <-s.ctx.Done():
	}
}

// Events is the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Multi fans an event out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}
