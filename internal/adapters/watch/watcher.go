// Package watch invalidates backend caches when catalog files change on
// disk, using github.com/fsnotify/fsnotify. Events are debounced per backend
// because editors and sync tools often emit several writes per save.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceInterval = 200 * time.Millisecond

// Flusher drops cached knowledge for one backend. Satisfied by
// registry.Module.
type Flusher interface {
	Flush()
}

// Watcher maps watched knowledge directories to backend flushers.
type Watcher struct {
	fw  *fsnotify.Watcher
	log zerolog.Logger

	mu      sync.Mutex
	targets map[string]target // absolute dir -> target
	timers  map[string]*time.Timer
	done    chan struct{}
	stopped bool
}

type target struct {
	backend string
	flusher Flusher
}

// New creates a watcher. Call Add for each backend directory, then Start.
func New(log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:      fw,
		log:     log.With().Str("component", "watch").Logger(),
		targets: make(map[string]target),
		timers:  make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}, nil
}

// Add watches a backend's knowledge root recursively (the root and its
// catalog subdirectories).
func (w *Watcher) Add(backend, root string, f Flusher) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.targets[abs] = target{backend: backend, flusher: f}
	w.mu.Unlock()

	if err := w.fw.Add(abs); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(abs, "*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		// Non-directories are rejected by fsnotify on some platforms;
		// ignore errors and rely on the root watch for those.
		_ = w.fw.Add(m)
	}
	return nil
}

// Start begins dispatching events. Returns immediately.
func (w *Watcher) Start() {
	go w.loop()
}

// Close stops watching. Idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	for _, t := range w.timers {
		t.Stop()
	}
	return w.fw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// schedule finds the backend owning path and (re)arms its debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	for root, tgt := range w.targets {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		tgt := tgt
		if timer, ok := w.timers[tgt.backend]; ok {
			timer.Reset(debounceInterval)
			return
		}
		w.timers[tgt.backend] = time.AfterFunc(debounceInterval, func() {
			w.mu.Lock()
			delete(w.timers, tgt.backend)
			w.mu.Unlock()
			w.log.Info().Str("backend", tgt.backend).Msg("knowledge changed, flushing caches")
			tgt.flusher.Flush()
		})
		return
	}
}
