package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inkwell-notes/inkwell/internal/registry"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})
}

func activeAll(string) bool  { return true }
func activeNone(string) bool { return false }

func TestMergeCoreOnly(t *testing.T) {
	reg := registry.New(nil)
	res := Merge(map[string]http.Handler{
		"notes":  okHandler("notes"),
		"search": okHandler("search"),
	}, reg, activeAll, nil)

	if len(res.Merged) != 2 {
		t.Fatalf("expected 2 merged namespaces, got %+v", res.Merged)
	}

	srv := httptest.NewServer(res.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from core namespace, got %d", resp.StatusCode)
	}

	// Unmatched path gets a JSON 404.
	resp, err = http.Get(srv.URL + "/nowhere")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got %s", ct)
	}
}

func TestMergePluginNamespace(t *testing.T) {
	reg := registry.New(nil)
	if _, err := reg.Register(registry.Manifest{
		ID: "ext", Name: "ext", Version: "1.0.0",
		Capabilities: []registry.Capability{
			registry.RouterCapability{Namespace: "ext", Handler: okHandler("ext")},
		},
	}); err != nil {
		t.Fatal(err)
	}

	res := Merge(map[string]http.Handler{"notes": okHandler("notes")}, reg, activeAll, nil)

	if len(res.Merged) != 2 {
		t.Fatalf("expected core + plugin merged, got %+v", res.Merged)
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("expected nothing skipped, got %+v", res.Skipped)
	}

	srv := httptest.NewServer(res.Handler)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/ext")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from plugin namespace, got %d", resp.StatusCode)
	}
}

func TestMergeSkipsCoreCollision(t *testing.T) {
	reg := registry.New(nil)
	if _, err := reg.Register(registry.Manifest{
		ID: "imposter", Name: "imposter", Version: "1.0.0",
		Capabilities: []registry.Capability{
			registry.RouterCapability{Namespace: "notes", Handler: okHandler("fake")},
		},
	}); err != nil {
		t.Fatal(err)
	}

	res := Merge(map[string]http.Handler{"notes": okHandler("real")}, reg, activeAll, nil)

	if len(res.Skipped) != 1 || res.Skipped[0].PluginID != "imposter" {
		t.Fatalf("expected imposter skipped, got %+v", res.Skipped)
	}

	srv := httptest.NewServer(res.Handler)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/notes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 16)
	n, _ := resp.Body.Read(buf)
	if string(buf[:n]) != "real" {
		t.Errorf("core namespace must win, got body %q", buf[:n])
	}
}

func TestMergeSkipsInactivePlugins(t *testing.T) {
	reg := registry.New(nil)
	if _, err := reg.Register(registry.Manifest{
		ID: "sleepy", Name: "sleepy", Version: "1.0.0",
		Capabilities: []registry.Capability{
			registry.RouterCapability{Namespace: "sleepy", Handler: okHandler("zzz")},
		},
	}); err != nil {
		t.Fatal(err)
	}

	res := Merge(nil, reg, activeNone, nil)

	if len(res.Merged) != 0 {
		t.Fatalf("inactive plugin must not be mounted, got %+v", res.Merged)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "plugin not active" {
		t.Fatalf("expected not-active skip, got %+v", res.Skipped)
	}
}

func TestMergeFirstRegisteredWins(t *testing.T) {
	reg := registry.New(nil)

	// Registration-time conflict handling already skips the second claim;
	// the merger must expose exactly the surviving owner.
	for _, id := range []string{"early", "late"} {
		if _, err := reg.Register(registry.Manifest{
			ID: id, Name: id, Version: "1.0.0",
			Capabilities: []registry.Capability{
				registry.RouterCapability{Namespace: "contested", Handler: okHandler(id)},
			},
		}); err != nil {
			t.Fatal(err)
		}
	}

	res := Merge(nil, reg, activeAll, nil)

	if len(res.Merged) != 1 || res.Merged[0].PluginID != "early" {
		t.Fatalf("expected early to own contested namespace, got %+v", res.Merged)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	build := func() MergeResult {
		reg := registry.New(nil)
		for _, id := range []string{"p1", "p2", "p3"} {
			reg.Register(registry.Manifest{
				ID: id, Name: id, Version: "1.0.0",
				Capabilities: []registry.Capability{
					registry.RouterCapability{Namespace: "ns-" + id, Handler: okHandler(id)},
				},
			})
		}
		return Merge(map[string]http.Handler{"notes": okHandler("core")}, reg, activeAll, nil)
	}

	a, b := build(), build()
	if len(a.Merged) != len(b.Merged) {
		t.Fatalf("merge not deterministic: %+v vs %+v", a.Merged, b.Merged)
	}
	for i := range a.Merged {
		if a.Merged[i] != b.Merged[i] {
			t.Fatalf("merge order differs at %d: %+v vs %+v", i, a.Merged, b.Merged)
		}
	}
}
