package events

import (
	"context"
	"errors"
	"testing"
)

func TestSubscribeAndEmit(t *testing.T) {
	bus := NewBus(nil)

	var got []Event
	unsub := bus.Subscribe(NoteCreated, func(ctx context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	})
	defer unsub()

	err := bus.Emit(context.Background(), Event{Type: NoteCreated, NoteID: "n1", Source: SourceCore})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].NoteID != "n1" {
		t.Errorf("expected note n1, got %s", got[0].NoteID)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be stamped")
	}
}

func TestEmitOnlyMatchingType(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	bus.Subscribe(NoteDeleted, func(ctx context.Context, ev Event) error {
		calls++
		return nil
	})

	if err := bus.Emit(context.Background(), Event{Type: NoteCreated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if calls != 0 {
		t.Errorf("handler for note:deleted ran on note:created")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	unsub := bus.Subscribe(NoteUpdated, func(ctx context.Context, ev Event) error {
		calls++
		return nil
	})

	unsub()
	unsub() // second call must be a no-op

	if err := bus.Emit(context.Background(), Event{Type: NoteUpdated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if calls != 0 {
		t.Errorf("handler ran after unsubscribe, calls=%d", calls)
	}
	if n := bus.HandlerCount(NoteUpdated); n != 0 {
		t.Errorf("expected 0 handlers, got %d", n)
	}
}

func TestEmitPropagatesHandlerErrors(t *testing.T) {
	bus := NewBus(nil)

	boom := errors.New("boom")
	bus.Subscribe(NoteCreated, func(ctx context.Context, ev Event) error {
		return boom
	})

	ran := false
	bus.Subscribe(NoteCreated, func(ctx context.Context, ev Event) error {
		ran = true
		return nil
	})

	err := bus.Emit(context.Background(), Event{Type: NoteCreated})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}
	if !ran {
		t.Error("later handler should still run after an earlier failure")
	}
}

func TestScopedEmitterStampsSource(t *testing.T) {
	bus := NewBus(nil)

	var src string
	bus.Subscribe(NoteUpdated, func(ctx context.Context, ev Event) error {
		src = ev.Source
		return nil
	})

	em := bus.Emitter("sample-plugin")
	if err := em.Emit(context.Background(), NoteUpdated, "n2", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if src != "sample-plugin" {
		t.Errorf("expected source sample-plugin, got %q", src)
	}
}

func TestHandlersRunInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(NoteCreated, func(ctx context.Context, ev Event) error {
			order = append(order, i)
			return nil
		})
	}

	if err := bus.Emit(context.Background(), Event{Type: NoteCreated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	for i, v := range order {
		if i != v {
			t.Fatalf("expected subscription order, got %v", order)
		}
	}
}
