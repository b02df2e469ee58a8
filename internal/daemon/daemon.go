// Package daemon runs the Inkwell background process: one singleton per
// machine that owns the vault store, hosts the plugin runtime and serves the
// merged HTTP surface on loopback.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/api"
	"github.com/inkwell-notes/inkwell/internal/auth"
	"github.com/inkwell-notes/inkwell/internal/collab"
	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/discovery"
	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/middleware"
	"github.com/inkwell-notes/inkwell/internal/plugin"
	"github.com/inkwell-notes/inkwell/internal/registry"
	"github.com/inkwell-notes/inkwell/internal/router"
	"github.com/inkwell-notes/inkwell/internal/services"
	"github.com/inkwell-notes/inkwell/internal/storage"
)

// Version is stamped into the state file and the health endpoint.
const Version = "0.1.0"

// AlreadyRunningError reports that another daemon owns the state file.
type AlreadyRunningError struct {
	PID  int
	Port int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("daemon already running (pid %d, port %d)", e.PID, e.Port)
}

// Daemon is the background process. Start brings up every subsystem in
// order; Stop tears them down in strict reverse order and is idempotent.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	descriptors []plugin.Descriptor

	store    *storage.Store
	bus      *events.Bus
	system   *plugin.System
	hub      *collab.Hub
	sessions *auth.Sessions
	services *services.Container

	srv       *http.Server
	listener  net.Listener
	port      int
	stateFile string
	hubUnsubs []func()
	sigCh     chan os.Signal
	done      chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a daemon. descriptors is the compile-time plugin table.
func New(cfg *config.Config, descriptors []plugin.Descriptor, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		descriptors: descriptors,
		done:        make(chan struct{}),
	}
}

// Start brings the daemon up: singleton gate, vault store, services, plugin
// runtime, merged router, loopback listener, plugin activation, state file,
// signal handling. A failure part-way unwinds whatever already started.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("daemon already started")
	}
	d.started = true
	d.mu.Unlock()

	d.stateFile = discovery.StateFilePath(d.cfg.Vault.StateDir)

	// Singleton gate: any live daemon blocks startup, healthy or not. A
	// wedged-but-alive daemon should be dealt with explicitly, not raced.
	res, err := discovery.Discover(ctx, discovery.Options{
		StateFile:     d.stateFile,
		HealthTimeout: d.cfg.Discovery.GetHealthTimeout(),
	})
	if err != nil {
		return fmt.Errorf("discovery probe: %w", err)
	}
	if res.Status != discovery.StatusNotFound {
		return &AlreadyRunningError{PID: res.Info.PID, Port: res.Info.Port}
	}

	d.store, err = storage.Open(d.cfg.Vault.DatabasePath(), d.logger)
	if err != nil {
		return fmt.Errorf("open vault store: %w", err)
	}

	d.bus = events.NewBus(d.logger)
	d.services = services.NewContainer(d.store, d.bus.Emitter(events.SourceCore), d.logger)

	d.sessions, err = auth.NewSessions(d.cfg.Collab.SessionSecret, d.cfg.Collab.GetSessionTTL())
	if err != nil {
		d.store.Close()
		return fmt.Errorf("init collab sessions: %w", err)
	}

	d.hub = collab.NewHub(d.sessions, d.logger)
	go d.hub.Run()
	d.bindHubToBus()

	reg := registry.New(d.logger)
	d.system = plugin.NewSystem(reg, d.bus, d.pluginContext, d.logger)
	loadResult := d.system.Load(d.descriptors)
	for _, le := range loadResult.Failed {
		d.logger.Warn("plugin failed to load", "plugin", le.PluginID, "error", le.Err)
	}
	d.logger.Info("plugins loaded", "loaded", len(loadResult.Loaded), "failed", len(loadResult.Failed))

	// Activation precedes the merge: the merger only mounts namespaces of
	// plugins that are active at merge time.
	actRes := d.system.ActivateAll(ctx)
	for _, pe := range actRes.Failed {
		d.logger.Warn("plugin failed to activate", "plugin", pe.PluginID, "error", pe.Err)
	}

	core := api.CoreNamespaces(d.services, d.sessions, d.hub)
	merged := router.Merge(core, reg, d.system.IsActive, d.logger)
	for _, m := range merged.Merged {
		d.logger.Debug("namespace mounted", "namespace", m.Namespace, "plugin", m.PluginID)
	}

	health := api.NewHealthHandler(Version)
	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger(d.logger))
	root.Use(middleware.Recovery(d.logger))
	root.Use(middleware.CORS(300))
	root.Get("/health", health.Health)
	root.Mount("/", merged.Handler)

	// Bind before writing the state file so the recorded port is the one
	// actually serving; port 0 asks the OS for a free port.
	d.listener, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", d.cfg.Server.Port))
	if err != nil {
		d.unwind(ctx)
		return fmt.Errorf("bind loopback listener: %w", err)
	}
	d.port = d.listener.Addr().(*net.TCPAddr).Port

	d.srv = &http.Server{
		Handler:      root,
		ReadTimeout:  d.cfg.Server.GetReadTimeout(),
		WriteTimeout: d.cfg.Server.GetWriteTimeout(),
	}
	go func() {
		if err := d.srv.Serve(d.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("http server failed", "error", err)
		}
	}()

	info := discovery.DaemonInfo{
		PID:       os.Getpid(),
		Port:      d.port,
		VaultPath: d.cfg.Vault.Path,
		StartedAt: time.Now().UTC(),
		Version:   Version,
	}
	if err := discovery.WriteStateFile(d.stateFile, info); err != nil {
		d.unwind(ctx)
		return fmt.Errorf("write state file: %w", err)
	}

	d.sigCh = make(chan os.Signal, 1)
	signal.Notify(d.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go d.watchSignals()

	// Plugins are active and subscribed by now, so they all see the open.
	if err := d.bus.Emit(ctx, events.Event{
		Type:    events.VaultOpened,
		Source:  events.SourceCore,
		Payload: d.cfg.Vault.Path,
	}); err != nil {
		d.logger.Warn("vault open handlers failed", "error", err)
	}

	d.logger.Info("daemon started",
		"pid", info.PID,
		"port", d.port,
		"vault", d.cfg.Vault.Path,
		"version", Version,
	)
	return nil
}

// Stop tears the daemon down in reverse startup order. Calling it again
// after a completed stop is a no-op.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	d.logger.Info("daemon stopping")
	var errs []error

	if d.sigCh != nil {
		signal.Stop(d.sigCh)
		// Releases the watcher goroutine blocked on the channel.
		close(d.sigCh)
	}

	// Emitted while plugin hooks are still subscribed.
	if d.bus != nil {
		if err := d.bus.Emit(ctx, events.Event{
			Type:    events.VaultClosed,
			Source:  events.SourceCore,
			Payload: d.cfg.Vault.Path,
		}); err != nil {
			d.logger.Warn("vault close handlers failed", "error", err)
		}
	}

	if d.system != nil {
		res := d.system.DeactivateAll(ctx)
		for _, pe := range res.Failed {
			d.logger.Warn("plugin failed to deactivate", "plugin", pe.PluginID, "error", pe.Err)
			errs = append(errs, pe.Err)
		}
	}

	for _, unsub := range d.hubUnsubs {
		unsub()
	}
	d.hubUnsubs = nil
	if d.hub != nil {
		d.hub.Close()
	}

	if d.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, d.cfg.Server.GetShutdownGrace())
		if err := d.srv.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("http server shutdown", "error", err)
			errs = append(errs, err)
		}
		cancel()
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("close vault store", "error", err)
			errs = append(errs, err)
		}
	}

	if d.stateFile != "" {
		if err := discovery.RemoveStateFile(d.stateFile); err != nil {
			d.logger.Warn("remove state file", "error", err)
			errs = append(errs, err)
		}
	}

	close(d.done)
	d.logger.Info("daemon stopped")
	return errors.Join(errs...)
}

// Done is closed once a stop has completed, whether it came from Stop or a
// termination signal.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Port reports the bound port. Valid after Start returns nil.
func (d *Daemon) Port() int {
	return d.port
}

// StateFile reports the path of the daemon's state file.
func (d *Daemon) StateFile() string {
	return d.stateFile
}

// Services exposes the core service container. Valid after Start.
func (d *Daemon) Services() *services.Container {
	return d.services
}

// System exposes the plugin runtime. Valid after Start.
func (d *Daemon) System() *plugin.System {
	return d.system
}

// pluginContext builds the scoped server context one plugin receives.
func (d *Daemon) pluginContext(pluginID string) (*plugin.Context, error) {
	return &plugin.Context{
		PluginID: pluginID,
		Storage:  d.store.Namespace(pluginID),
		Events:   d.bus.Emitter(pluginID),
		Logger:   d.logger.With("plugin", pluginID),
	}, nil
}

// bindHubToBus forwards every note event to connected collab clients.
func (d *Daemon) bindHubToBus() {
	forward := func(ctx context.Context, ev events.Event) error {
		d.hub.BroadcastEvent(ev)
		return nil
	}
	for _, t := range []events.Type{events.NoteCreated, events.NoteUpdated, events.NoteDeleted} {
		d.hubUnsubs = append(d.hubUnsubs, d.bus.Subscribe(t, forward))
	}
}

func (d *Daemon) watchSignals() {
	sig, ok := <-d.sigCh
	if !ok {
		return
	}
	d.logger.Info("signal received", "signal", sig.String())
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Server.GetShutdownGrace()+5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		d.logger.Error("shutdown error", "error", err)
	}
}

// unwind releases resources after a failed Start, in reverse order of what
// had been brought up so far. Mirrors Stop, minus the state file that was
// never written.
func (d *Daemon) unwind(ctx context.Context) {
	if d.system != nil {
		res := d.system.DeactivateAll(ctx)
		for _, pe := range res.Failed {
			d.logger.Warn("plugin failed to deactivate", "plugin", pe.PluginID, "error", pe.Err)
		}
	}
	for _, unsub := range d.hubUnsubs {
		unsub()
	}
	d.hubUnsubs = nil
	if d.hub != nil {
		d.hub.Close()
	}
	if d.srv != nil {
		d.srv.Close()
	} else if d.listener != nil {
		d.listener.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
}
