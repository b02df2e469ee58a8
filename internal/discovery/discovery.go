// Package discovery locates and validates a running daemon from any process:
// the daemon itself uses it to enforce the single-instance invariant, client
// processes use it to find the API port.
//
// Ownership is arbitrated by PID liveness. A state file whose recorded PID is
// dead is stale and is deleted on sight (self-healing); whether a live daemon
// is actually serving is checked with a bounded-timeout health request so a
// wedged process can be distinguished from an absent one.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// Status classifies the outcome of a discovery probe.
type Status string

const (
	// StatusNotFound means no live daemon exists (no state file, or a
	// stale one that has been reclaimed).
	StatusNotFound Status = "not-found"
	// StatusUnhealthy means the recorded PID is alive but the daemon did
	// not answer its health endpoint in time.
	StatusUnhealthy Status = "unhealthy"
	// StatusHealthy means a live daemon answered the health check.
	StatusHealthy Status = "healthy"
)

// Result is the outcome of one discovery probe. Info is set unless the
// status is StatusNotFound.
type Result struct {
	Status Status
	Info   *DaemonInfo
}

const defaultHealthTimeout = 2 * time.Second

// Options configures a discovery probe.
type Options struct {
	// StateFile is the path of the daemon state file. Required.
	StateFile string
	// SkipHealthCheck trusts PID liveness alone. Default is to verify.
	SkipHealthCheck bool
	// HealthTimeout bounds the health request. Defaults to 2s.
	HealthTimeout time.Duration
	// HTTPClient overrides the client used for health checks.
	HTTPClient *http.Client
}

// Discover reads the state file, verifies the recorded PID is alive and, by
// default, that the daemon answers its health endpoint. A stale state file
// (dead PID or unparseable content) is deleted and reported as not-found
// rather than surfaced as an error.
func Discover(ctx context.Context, opts Options) (Result, error) {
	info, err := ReadStateFile(opts.StateFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Status: StatusNotFound}, nil
		}
		// Unreadable or corrupt state is stale state: reclaim it.
		if rmErr := RemoveStateFile(opts.StateFile); rmErr != nil {
			return Result{}, fmt.Errorf("reclaim corrupt state file: %w", rmErr)
		}
		return Result{Status: StatusNotFound}, nil
	}

	if !IsProcessAlive(info.PID) {
		if err := RemoveStateFile(opts.StateFile); err != nil {
			return Result{}, fmt.Errorf("reclaim stale state file: %w", err)
		}
		return Result{Status: StatusNotFound}, nil
	}

	if opts.SkipHealthCheck {
		return Result{Status: StatusHealthy, Info: info}, nil
	}

	if healthy := checkHealth(ctx, opts, info.Port); !healthy {
		return Result{Status: StatusUnhealthy, Info: info}, nil
	}
	return Result{Status: StatusHealthy, Info: info}, nil
}

// checkHealth performs a bounded-timeout GET /health against the recorded
// port. Any failure (timeout, refused connection, non-200) counts as
// unhealthy; errors never escape the discovery boundary.
func checkHealth(ctx context.Context, opts Options, port int) bool {
	timeout := opts.HealthTimeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok"
}

var errDaemonNotReady = errors.New("daemon not ready")

// WaitForDaemon polls Discover until a healthy daemon appears or maxAttempts
// probes have been spent. Exhausting the attempts returns the last observed
// result rather than an error; only context cancellation is returned as one.
func WaitForDaemon(ctx context.Context, opts Options, maxAttempts uint64, interval time.Duration) (Result, error) {
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	last := Result{Status: StatusNotFound}
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewConstant(interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := Discover(ctx, opts)
		if err != nil {
			return retry.RetryableError(err)
		}
		last = res
		if res.Status != StatusHealthy {
			return retry.RetryableError(errDaemonNotReady)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return last, ctxErr
		}
		// Attempts exhausted: a timeout is a result, not an error.
		return last, nil
	}
	return last, nil
}
