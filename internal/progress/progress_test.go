package progress

import (
	"context"
	"testing"
	"time"
)

func TestBufferPreservesOrder(t *testing.T) {
	var b Buffer
	for i := 1; i <= 3; i++ {
		b.Emit(Event{Seq: i})
	}
	got := b.Events()
	if len(got) != 3 || got[0].Seq != 1 || got[2].Seq != 3 {
		t.Fatalf("unexpected events: %+v", got)
	}
	got[0].Seq = 99
	if b.Events()[0].Seq != 1 {
		t.Fatalf("Events must return a copy")
	}
}

func TestChannelSinkDropsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewChannelSink(ctx, 0)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Emit(Event{Message: "late"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked after context cancel")
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	s := NewChannelSink(context.Background(), 1)
	s.Emit(Event{Message: "hello"})
	select {
	case e := <-s.Events():
		if e.Message != "hello" {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatalf("expected buffered event")
	}
}

func TestMulti(t *testing.T) {
	var a, b Buffer
	Multi(&a, nil, &b).Emit(Event{Message: "x"})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected fan-out to both buffers")
	}
	Discard.Emit(Event{})
}
