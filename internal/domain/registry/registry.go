package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/corey/erpkb/internal/ports"
)

// Registry maps backend keys and aliases to descriptors and lazily-built
// facades. Registration happens at startup; after that the descriptor set is
// read-only and safe for concurrent lookups.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	descs   map[string]ports.BackendDescriptor
	index   map[string]string // lowercased key/alias -> canonical key
	entries map[string]*moduleEntry
	log     zerolog.Logger
}

// moduleEntry builds its module exactly once, outside the registry lock.
// mu guards built/mod/err: the watch adapter reads them from its own
// goroutine while the first facade request may still be building.
type moduleEntry struct {
	factory Factory

	mu    sync.Mutex
	built bool
	mod   *Module
	err   error
}

// module returns the backend's module, building it on first call. Later
// calls return the same result, even after a failed build.
func (e *moduleEntry) module() (*Module, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built {
		e.mod, e.err = e.factory()
		e.built = true
	}
	return e.mod, e.err
}

// builtModule returns the module only if a facade request already built it.
func (e *moduleEntry) builtModule() (*Module, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built || e.err != nil {
		return nil, false
	}
	return e.mod, true
}

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		descs:   make(map[string]ports.BackendDescriptor),
		index:   make(map[string]string),
		entries: make(map[string]*moduleEntry),
		log:     log,
	}
}

// Register adds a backend. The key and every alias must be unused by any
// registered backend (and distinct within the descriptor itself); any
// collision fails with ports.ErrDuplicateKey and registers nothing.
func (r *Registry) Register(desc ports.BackendDescriptor, factory Factory) error {
	if desc.Key == "" {
		return errors.New("backend key must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("backend %s: nil factory", desc.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	claims := append([]string{desc.Key}, desc.Aliases...)
	seen := make(map[string]bool, len(claims))
	for _, c := range claims {
		lower := strings.ToLower(c)
		if seen[lower] {
			return fmt.Errorf("backend %s claims %q twice: %w", desc.Key, c, ports.ErrDuplicateKey)
		}
		seen[lower] = true
		if owner, taken := r.index[lower]; taken {
			return fmt.Errorf("backend %s: %q already claimed by %s: %w",
				desc.Key, c, owner, ports.ErrDuplicateKey)
		}
	}

	for lower := range seen {
		r.index[lower] = desc.Key
	}
	key := desc.Key
	build := factory
	r.order = append(r.order, key)
	r.descs[key] = desc
	r.entries[key] = &moduleEntry{factory: func() (*Module, error) {
		mod, err := build()
		if err == nil {
			r.log.Debug().Str("backend", key).Msg("backend module initialized")
		}
		return mod, err
	}}

	r.log.Debug().
		Str("backend", desc.Key).
		Strs("aliases", desc.Aliases).
		Str("capabilities", desc.Capabilities.String()).
		Msg("backend registered")
	return nil
}

// ResolveKey maps an input key or alias to the canonical backend key,
// case-insensitively.
func (r *Registry) ResolveKey(input string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.index[strings.ToLower(input)]
	return key, ok
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []ports.BackendDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.BackendDescriptor, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.descs[key])
	}
	return out
}

// Facade returns the backend's facade, building its module on first request.
// Unknown keys fail with ports.ErrUnknownBackend.
func (r *Registry) Facade(key string) (*Facade, error) {
	canonical, ok := r.ResolveKey(key)
	if !ok {
		return nil, fmt.Errorf("backend %q: %w", key, ports.ErrUnknownBackend)
	}

	r.mu.RLock()
	desc := r.descs[canonical]
	entry := r.entries[canonical]
	r.mu.RUnlock()

	mod, err := entry.module()
	if err != nil {
		return nil, fmt.Errorf("initialize backend %s: %w", canonical, err)
	}
	return &Facade{desc: desc, mod: mod}, nil
}

// Module returns the backend's module if its facade has been built.
// Used by the watch adapter to flush caches on knowledge changes.
func (r *Registry) Module(key string) (*Module, bool) {
	canonical, ok := r.ResolveKey(key)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	entry := r.entries[canonical]
	r.mu.RUnlock()
	return entry.builtModule()
}

// Close disposes every built module. Safe to call once at shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, key := range r.order {
		mod, ok := r.entries[key].builtModule()
		if !ok {
			continue
		}
		if err := mod.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
