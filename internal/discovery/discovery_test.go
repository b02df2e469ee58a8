package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// deadPID is far above any real PID on Linux (max is ~4 million), so the
// signal-0 probe reliably fails.
const deadPID = 1 << 30

func stateFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "daemon.json")
}

func TestDiscoverNoStateFile(t *testing.T) {
	res, err := Discover(context.Background(), Options{StateFile: stateFile(t)})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Status != StatusNotFound {
		t.Errorf("expected not-found, got %s", res.Status)
	}
}

func TestDiscoverReclaimsStalePID(t *testing.T) {
	path := stateFile(t)
	info := DaemonInfo{PID: deadPID, Port: 1234, VaultPath: "/tmp/vault", StartedAt: time.Now(), Version: "1.0.0"}
	if err := WriteStateFile(path, info); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Discover(context.Background(), Options{StateFile: path})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Status != StatusNotFound {
		t.Errorf("expected not-found for dead PID, got %s", res.Status)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale state file should have been deleted")
	}
}

func TestDiscoverReclaimsCorruptStateFile(t *testing.T) {
	path := stateFile(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := Discover(context.Background(), Options{StateFile: path})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Status != StatusNotFound {
		t.Errorf("expected not-found for corrupt file, got %s", res.Status)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt state file should have been deleted")
	}
}

func TestDiscoverSkipHealthCheck(t *testing.T) {
	path := stateFile(t)
	// Our own PID is certainly alive.
	info := DaemonInfo{PID: os.Getpid(), Port: 1, StartedAt: time.Now(), Version: "1.0.0"}
	if err := WriteStateFile(path, info); err != nil {
		t.Fatal(err)
	}

	res, err := Discover(context.Background(), Options{StateFile: path, SkipHealthCheck: true})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Status != StatusHealthy {
		t.Errorf("expected healthy with health check skipped, got %s", res.Status)
	}
	if res.Info == nil || res.Info.PID != os.Getpid() {
		t.Errorf("expected daemon info, got %+v", res.Info)
	}
}

func TestDiscoverLiveButUnresponsive(t *testing.T) {
	path := stateFile(t)
	// Port 1 is privileged and unbound; the health check will fail fast.
	info := DaemonInfo{PID: os.Getpid(), Port: 1, StartedAt: time.Now(), Version: "1.0.0"}
	if err := WriteStateFile(path, info); err != nil {
		t.Fatal(err)
	}

	res, err := Discover(context.Background(), Options{
		StateFile:     path,
		HealthTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Status != StatusUnhealthy {
		t.Errorf("a live but unresponsive process is unhealthy, got %s", res.Status)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("state file of a live process must not be deleted")
	}
}

func TestDiscoverHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "uptime": 1, "version": "1.0.0"})
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	path := stateFile(t)
	info := DaemonInfo{PID: os.Getpid(), Port: port, StartedAt: time.Now(), Version: "1.0.0"}
	if err := WriteStateFile(path, info); err != nil {
		t.Fatal(err)
	}

	res, err := Discover(context.Background(), Options{StateFile: path})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", res.Status)
	}
	if res.Info.Port != port {
		t.Errorf("expected port %d, got %d", port, res.Info.Port)
	}
}

func TestWaitForDaemonTimesOutAsResult(t *testing.T) {
	res, err := WaitForDaemon(context.Background(), Options{StateFile: stateFile(t)}, 3, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("exhausted attempts must not error: %v", err)
	}
	if res.Status != StatusNotFound {
		t.Errorf("expected not-found after exhaustion, got %s", res.Status)
	}
}

func TestStateFileRoundTrip(t *testing.T) {
	path := stateFile(t)
	want := DaemonInfo{
		PID:       42,
		Port:      8765,
		VaultPath: "/home/me/vault",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Version:   "2.1.0",
	}
	if err := WriteStateFile(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadStateFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.PID != want.PID || got.Port != want.Port || got.VaultPath != want.VaultPath || got.Version != want.Version {
		t.Errorf("round trip mismatch: %+v vs %+v", got, want)
	}
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("startedAt mismatch: %v vs %v", got.StartedAt, want.StartedAt)
	}
}

func TestRemoveStateFileIdempotent(t *testing.T) {
	path := stateFile(t)
	if err := RemoveStateFile(path); err != nil {
		t.Errorf("removing a missing state file should not error: %v", err)
	}
}

func TestIsProcessAlive(t *testing.T) {
	if !IsProcessAlive(os.Getpid()) {
		t.Error("our own PID should be alive")
	}
	if IsProcessAlive(deadPID) {
		t.Error("absurd PID should be dead")
	}
	if IsProcessAlive(0) || IsProcessAlive(-1) {
		t.Error("non-positive PIDs are never alive")
	}
}
