// Package app wires adapters and domain logic into the erpkb daemon and
// manages its lifecycle: create, start, stop.
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/corey/erpkb/internal/adapters/boltstore"
	"github.com/corey/erpkb/internal/adapters/embedstore"
	"github.com/corey/erpkb/internal/adapters/fsstore"
	"github.com/corey/erpkb/internal/adapters/socket"
	"github.com/corey/erpkb/internal/adapters/watch"
	"github.com/corey/erpkb/internal/domain/cache"
	"github.com/corey/erpkb/internal/domain/registry"
	"github.com/corey/erpkb/internal/ports"
)

// App is the top-level container wiring all components together.
type App struct {
	cfg Config
	log zerolog.Logger

	Registry *registry.Registry
	Server   *socket.Server
	Watcher  *watch.Watcher
	Metrics  *Metrics

	metricsSrv *http.Server
}

// New creates an App with all backends registered. Does not start services;
// backend stores open lazily on first query.
func New(cfg Config, log zerolog.Logger) (*App, error) {
	metrics := NewMetrics()
	reg := registry.New(log)

	for _, bc := range cfg.Backends {
		desc, err := bc.Descriptor()
		if err != nil {
			return nil, err
		}
		factory := moduleFactory(bc, cfg, metrics, log)
		if err := reg.Register(desc, factory); err != nil {
			return nil, err
		}
	}

	sockPath := cfg.Socket
	if sockPath == "" {
		sockPath = socket.SocketPath(cfg.Backends[0].Store.Path)
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		Registry: reg,
		Metrics:  metrics,
		Server:   socket.NewServer(reg, cfg.Thresholds, sockPath, metrics.Registry(), log),
	}

	if err := a.initWatcher(); err != nil {
		return nil, err
	}
	return a, nil
}

// moduleFactory builds one backend's module on first facade request: open
// the configured store, attach the labeled cache metrics.
func moduleFactory(bc BackendConfig, cfg Config, metrics *Metrics, log zerolog.Logger) registry.Factory {
	return func() (*registry.Module, error) {
		cacheOpts := cache.Options{
			TTL:        time.Duration(cfg.Cache.TTL),
			MaxEntries: cfg.Cache.MaxEntries,
			Metrics:    metrics.ForBackend(bc.Key),
		}
		blog := log.With().Str("backend", bc.Key).Logger()

		var store ports.KnowledgeStore
		var closer func() error
		switch bc.Store.Kind {
		case StoreFS:
			store = fsstore.New(bc.Store.Path)
		case StoreBolt:
			bs, err := boltstore.Open(bc.Store.Path)
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", bc.Key, err)
			}
			store = bs
			closer = bs.Close
		case StoreEmbedded:
			store = embedstore.NewDemo()
		default:
			return nil, fmt.Errorf("backend %s: unknown store kind %q", bc.Key, bc.Store.Kind)
		}

		mod := registry.NewModule(store, cfg.Thresholds, cacheOpts, blog)
		if closer != nil {
			mod.OnClose(closer)
		}
		return mod, nil
	}
}

// flusherFunc adapts a closure to watch.Flusher.
type flusherFunc func()

func (f flusherFunc) Flush() { f() }

// initWatcher wires cache invalidation for every watched fs backend.
func (a *App) initWatcher() error {
	var watched []BackendConfig
	for _, bc := range a.cfg.Backends {
		if bc.Watch && bc.Store.Kind == StoreFS {
			watched = append(watched, bc)
		}
	}
	if len(watched) == 0 {
		return nil
	}

	w, err := watch.New(a.log)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, bc := range watched {
		key := bc.Key
		// The module may not be built yet; flush only reaches caches that
		// exist by the time the knowledge changes.
		f := flusherFunc(func() {
			if mod, ok := a.Registry.Module(key); ok {
				mod.Flush()
			}
		})
		if err := w.Add(key, bc.Store.Path, f); err != nil {
			w.Close()
			return fmt.Errorf("watch backend %s: %w", key, err)
		}
	}
	a.Watcher = w
	return nil
}

// Start begins the daemon: socket server, file watcher and the optional
// metrics endpoint.
func (a *App) Start() error {
	if err := a.Server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if a.Watcher != nil {
		a.Watcher.Start()
	}
	if a.cfg.MetricsAddr != "" {
		a.metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: a.Metrics.Handler()}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Warn().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics endpoint unavailable")
			}
		}()
		a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("metrics listening")
	}
	return nil
}

// Stop gracefully shuts down all services and closes every backend.
func (a *App) Stop() error {
	if a.Watcher != nil {
		a.Watcher.Close()
	}
	if a.metricsSrv != nil {
		a.metricsSrv.Close()
	}
	a.Server.Stop()
	if err := a.Registry.Close(); err != nil {
		a.log.Error().Err(err).Msg("close backends")
		return err
	}
	return nil
}

// ShutdownCh exposes the server's remote shutdown signal.
func (a *App) ShutdownCh() <-chan struct{} {
	return a.Server.ShutdownCh()
}

// SocketPath returns the socket path the daemon serves on.
func (a *App) SocketPath() string {
	return a.Server.Addr()
}
