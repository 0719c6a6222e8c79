package events_test

import (
	"testing"

	"scribe/internal/events"
)

func TestSubscribeIsIdempotent(t *testing.T) {
	bus := events.NewBus()
	var count int
	listener := &events.FuncListener{Fn: func(events.Event) { count++ }}

	if err := bus.Subscribe(listener); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if err := bus.Subscribe(listener); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	if bus.ListenerCount() != 1 {
		t.Fatalf("expected 1 listener, got %d", bus.ListenerCount())
	}

	bus.Publish(events.StageStarted{RunID: "r", Stage: "transcribe"})
	if count != 1 {
		t.Fatalf("expected exactly one delivery, got %d", count)
	}
}

func TestUnsubscribeUnknownListener(t *testing.T) {
	bus := events.NewBus()
	listener := &events.FuncListener{Fn: func(events.Event) {}}
	bus.Unsubscribe(listener)
	if err := bus.Subscribe(listener); err != nil {
		t.Fatalf("subscribe after no-op unsubscribe: %v", err)
	}
	bus.Unsubscribe(listener)
	bus.Unsubscribe(listener)
	if bus.ListenerCount() != 0 {
		t.Fatalf("expected 0 listeners, got %d", bus.ListenerCount())
	}
}

func TestListenerCeiling(t *testing.T) {
	bus := events.NewBus(events.WithMaxListeners(2))
	for i := 0; i < 2; i++ {
		if err := bus.Subscribe(&events.FuncListener{Fn: func(events.Event) {}}); err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
	}
	if err := bus.Subscribe(&events.FuncListener{Fn: func(events.Event) {}}); err == nil {
		t.Fatal("expected listener limit error")
	}
}

func TestResetDropsListeners(t *testing.T) {
	bus := events.NewBus()
	var delivered int
	_ = bus.Subscribe(&events.FuncListener{Fn: func(events.Event) { delivered++ }})

	bus.Reset()
	bus.Publish(events.PipelineStarted{RunID: "r", Pipeline: "produce"})

	if delivered != 0 {
		t.Fatalf("expected no deliveries after reset, got %d", delivered)
	}
	if bus.ListenerCount() != 0 {
		t.Fatalf("expected 0 listeners after reset, got %d", bus.ListenerCount())
	}
}

func TestPublishDispatchesByType(t *testing.T) {
	bus := events.NewBus()
	var sawError, willRetry bool
	_ = bus.Subscribe(&events.FuncListener{Fn: func(ev events.Event) {
		switch typed := ev.(type) {
		case events.StageErrored:
			sawError = true
			willRetry = typed.WillRetry
		}
	}})

	bus.Publish(events.StageErrored{RunID: "r", Stage: "research", Attempt: 1, WillRetry: true})

	if !sawError || !willRetry {
		t.Fatalf("expected typed stage error delivery, sawError=%v willRetry=%v", sawError, willRetry)
	}
}
