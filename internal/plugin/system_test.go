package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/registry"
)

func newTestSystem(t *testing.T) (*System, *events.Bus) {
	t.Helper()
	bus := events.NewBus(nil)
	sys := NewSystem(registry.New(nil), bus, testContextFactory(bus), nil)
	return sys, bus
}

func hookedDescriptor(id string, seen *[]string) Descriptor {
	return Descriptor{
		ID: id,
		Factory: func(pctx *Context) (Instance, error) {
			return &fakePlugin{
				manifest: registry.Manifest{
					ID: id, Name: id, Version: "1.0.0",
					Capabilities: []registry.Capability{
						registry.EventHookCapability{Events: []events.Type{events.NoteCreated}},
					},
				},
				handlers: map[events.Type]events.Handler{
					events.NoteCreated: func(ctx context.Context, ev events.Event) error {
						*seen = append(*seen, id)
						return nil
					},
				},
			}, nil
		},
	}
}

func TestSystemSubscribesHooksOnActivation(t *testing.T) {
	sys, bus := newTestSystem(t)
	ctx := context.Background()

	var seen []string
	sys.Load([]Descriptor{hookedDescriptor("hooked", &seen)})

	// Before activation the hook must not be live.
	if err := bus.Emit(ctx, events.Event{Type: events.NoteCreated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(seen) != 0 {
		t.Fatal("handler ran before activation")
	}

	res := sys.ActivateAll(ctx)
	if len(res.Failed) != 0 {
		t.Fatalf("activate all: %+v", res.Failed)
	}

	if err := bus.Emit(ctx, events.Event{Type: events.NoteCreated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected handler to run once after activation, ran %d times", len(seen))
	}

	// Deactivation tears the subscription down symmetrically.
	res = sys.DeactivateAll(ctx)
	if len(res.Failed) != 0 {
		t.Fatalf("deactivate all: %+v", res.Failed)
	}
	if err := bus.Emit(ctx, events.Event{Type: events.NoteCreated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("handler ran after deactivation, total %d", len(seen))
	}
}

func TestSystemActivateAllAccumulatesFailures(t *testing.T) {
	sys, _ := newTestSystem(t)
	ctx := context.Background()

	boom := errors.New("bad hook")
	sys.Load([]Descriptor{
		{ID: "failing", Factory: func(pctx *Context) (Instance, error) {
			return &fakePlugin{
				manifest:   registry.Manifest{ID: "failing", Name: "f", Version: "1.0.0"},
				onActivate: func(ctx context.Context) error { return boom },
			}, nil
		}},
		fakeDescriptor("working"),
	})

	res := sys.ActivateAll(ctx)
	if len(res.Failed) != 1 || res.Failed[0].PluginID != "failing" {
		t.Fatalf("expected failing to fail, got %+v", res)
	}
	if len(res.Succeeded) != 1 || res.Succeeded[0] != "working" {
		t.Fatalf("one plugin's failure must not abort others, got %+v", res)
	}
	if !sys.IsActive("working") {
		t.Error("working plugin should be active")
	}
	if sys.IsActive("failing") {
		t.Error("failing plugin must not be active")
	}
}

func TestSystemDeactivatesInReverseOrder(t *testing.T) {
	sys, _ := newTestSystem(t)
	ctx := context.Background()

	var torndown []string
	mk := func(id string) Descriptor {
		return Descriptor{ID: id, Factory: func(pctx *Context) (Instance, error) {
			return &fakePlugin{
				manifest: registry.Manifest{ID: id, Name: id, Version: "1.0.0"},
				onDeactivate: func(ctx context.Context) error {
					torndown = append(torndown, id)
					return nil
				},
			}, nil
		}}
	}

	sys.Load([]Descriptor{mk("first"), mk("second"), mk("third")})
	if res := sys.ActivateAll(ctx); len(res.Failed) != 0 {
		t.Fatalf("activate: %+v", res.Failed)
	}

	if res := sys.DeactivateAll(ctx); len(res.Failed) != 0 {
		t.Fatalf("deactivate: %+v", res.Failed)
	}

	want := []string{"third", "second", "first"}
	if len(torndown) != len(want) {
		t.Fatalf("expected %v, got %v", want, torndown)
	}
	for i := range want {
		if torndown[i] != want[i] {
			t.Fatalf("expected reverse activation order %v, got %v", want, torndown)
		}
	}
}

func TestSystemUnregisterRemovesEverything(t *testing.T) {
	sys, bus := newTestSystem(t)
	ctx := context.Background()

	var seen []string
	sys.Load([]Descriptor{hookedDescriptor("gone", &seen)})
	sys.ActivateAll(ctx)

	if !sys.Unregister("gone") {
		t.Fatal("expected unregister to succeed")
	}
	if sys.Unregister("gone") {
		t.Error("second unregister should report not found")
	}

	if err := bus.Emit(ctx, events.Event{Type: events.NoteCreated}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(seen) != 0 {
		t.Error("handler survived unregister")
	}
	if sys.Registry().Count() != 0 {
		t.Error("registry entry survived unregister")
	}
}
