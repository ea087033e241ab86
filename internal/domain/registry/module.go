// Package registry holds one descriptor per pluggable ERP backend and hands
// out capability-gated facades. The descriptor set is built once at startup
// and read-only afterward; facades and their modules are created lazily and
// own their backend's private caches and resolvers.
package registry

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/corey/erpkb/internal/domain/cache"
	"github.com/corey/erpkb/internal/domain/catalog"
	"github.com/corey/erpkb/internal/domain/match"
	"github.com/corey/erpkb/internal/ports"
)

// Conventional catalog names served by a backend's knowledge store.
const (
	CatalogOperations      = "operations"
	CatalogFlows           = "flows"
	CatalogErrors          = "errors"
	CatalogRecommendations = "recommendations"
)

// Factory builds a backend's module on first facade request.
type Factory func() (*Module, error)

// Module is one backend's private dependency scope: its knowledge store and
// one resolver (with its own cache) per catalog. Caches are never shared
// across backends, so keys cannot collide across tenants.
type Module struct {
	store      ports.KnowledgeStore
	thresholds match.Thresholds
	cacheOpts  cache.Options
	log        zerolog.Logger

	mu        sync.Mutex
	resolvers map[string]*catalog.Resolver
	closers   []func() error
}

// NewModule creates a module over a backend's knowledge store. cacheOpts is
// used as a template; every resolver gets its own Cache built from it.
func NewModule(store ports.KnowledgeStore, th match.Thresholds, cacheOpts cache.Options, log zerolog.Logger) *Module {
	return &Module{
		store:      store,
		thresholds: th,
		cacheOpts:  cacheOpts,
		log:        log,
		resolvers:  make(map[string]*catalog.Resolver),
	}
}

// Resolver returns the backend's resolver for a catalog, creating it (and
// its private cache) on first use.
func (m *Module) Resolver(catalogName string) *catalog.Resolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resolvers[catalogName]
	if !ok {
		r = catalog.New(m.store, catalogName, cache.New(m.cacheOpts), m.thresholds, m.log)
		m.resolvers[catalogName] = r
	}
	return r
}

// Flush drops every resolver cache. Called when the backing knowledge
// changes (watch adapter) so the next query reloads from the store.
func (m *Module) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resolvers {
		r.Flush()
	}
}

// OnClose registers a cleanup to run when the module is disposed, e.g. the
// store's Close.
func (m *Module) OnClose(fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, fn)
}

// Close releases the backend's private resources. Other backends are
// unaffected.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, fn := range m.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	m.resolvers = make(map[string]*catalog.Resolver)
	return errors.Join(errs...)
}
