package events

import (
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventRunStarted)

	bus.Publish(NewTypedEvent(SourceAgent, RunStartedPayload{Channel: "sms", Message: "hi"}, "tr_1"))
	bus.Publish(NewTypedEvent(SourceTracer, TraceEntryPayload{Level: "info"}, "tr_1"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) >= 1
	})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventRunStarted || received[0].TraceID != "tr_1" {
		t.Errorf("unexpected event %+v", received[0])
	}
}

func TestBusSubscribeAllInOrder(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var seen []string

	bus.Subscribe(func(e Event) {
		mu.Lock()
		seen = append(seen, e.Payload["event"].(string))
		mu.Unlock()
	})

	for _, name := range []string{"a", "b", "c"} {
		bus.Publish(NewTypedEvent(SourceTracer, TraceEntryPayload{Event: name}, ""))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	if seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Errorf("events out of order: %v", seen)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewEvent(EventTraceEntry, SourceTracer, map[string]any{"i": i}))
	}

	events := rb.Get(10)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Payload["i"] != 2 || events[2].Payload["i"] != 4 {
		t.Errorf("expected oldest-first 2..4, got %v .. %v", events[0].Payload["i"], events[2].Payload["i"])
	}
}

func TestSubscribeChan(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(8, EventRunCompleted)
	defer unsub()

	bus.Publish(NewTypedEvent(SourceAgent, RunCompletedPayload{Success: true, Message: "done"}, "tr_2"))

	select {
	case e := <-ch:
		p, ok := ExtractPayload[RunCompletedPayload](e)
		if !ok || !p.Success || p.Message != "done" {
			t.Errorf("unexpected payload %+v (ok=%v)", p, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestExtractPayloadWrongType(t *testing.T) {
	e := NewTypedEvent(SourceAgent, RunStartedPayload{Channel: "sms"}, "")
	if _, ok := ExtractPayload[ActionPayload](e); ok {
		t.Error("expected extraction of a different payload type to fail")
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus(4)
	bus.Close()
	bus.Close()
	bus.Publish(NewEvent(EventTraceEntry, SourceTracer, nil))
}
