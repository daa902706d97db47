package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/example/schema-migrator/internal/migrate"
)

// Registry is an in-memory identifier to script mapping for migrations
// written in Go. It is populated explicitly rather than discovered, so
// callers control exactly which scripts exist.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]migrate.Script
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scripts: make(map[string]migrate.Script)}
}

// Register adds a script under its identifier. Identifiers are
// normalized and validated; registering the same identifier twice is an
// error.
func (r *Registry) Register(name string, script migrate.Script) error {
	name = migrate.Normalize(name)
	if !migrate.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidScriptName, name)
	}
	if script == nil {
		return fmt.Errorf("catalog: nil script for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scripts[name]; exists {
		return fmt.Errorf("catalog: script %q already registered", name)
	}
	r.scripts[name] = script
	return nil
}

// MustRegister is Register for program-initialisation time, panicking
// on error.
func (r *Registry) MustRegister(name string, script migrate.Script) {
	if err := r.Register(name, script); err != nil {
		panic(err)
	}
}

// Names lists registered identifiers in ascending order.
func (r *Registry) Names() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load resolves an identifier to its registered script.
func (r *Registry) Load(name string) (migrate.Script, error) {
	name = migrate.Normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	script, ok := r.scripts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", migrate.ErrScriptNotFound, name)
	}
	return script, nil
}

var _ migrate.Catalog = (*Registry)(nil)
