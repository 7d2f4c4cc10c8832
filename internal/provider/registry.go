package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anushkapunekar/agentops/internal/config"
)

// Factory builds a Backend from the service configuration. A factory returns
// an error when the backend cannot run with conf, e.g. a missing API key.
type Factory func(conf config.Config) (Backend, error)

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry is a thread-safe store of backend factories. Backend packages
// self-register at init() time and are resolved by kind.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// globalRegistry is the package-level registry used by the convenience
// functions Register / Get / Names.
var globalRegistry = NewRegistry()

// NewRegistry creates an empty Registry. Useful for testing.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a backend factory under the given name. It panics if the
// name is already registered, preventing silent overwrites.
//
// Backend packages should call the package-level Register() in their init():
//
//	func init() {
//	    provider.Register(string(provider.KindHosted), NewProvider)
//	}
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("provider: factory already registered for %q", name))
	}
	r.factories[name] = f
}

// Get creates a backend by name using the given config.
func (r *Registry) Get(name string, conf config.Config) (Backend, error) {
	r.mu.RLock()
	f, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider: unknown backend %q (registered: %v)",
			name, r.Names())
	}
	return f(conf)
}

// Names returns a sorted list of registered backend names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Package-level convenience functions (delegate to globalRegistry)
// ---------------------------------------------------------------------------

// Register adds a backend factory to the global registry.
func Register(name string, f Factory) {
	globalRegistry.Register(name, f)
}

// Get resolves a backend by name from the global registry.
func Get(name string, conf config.Config) (Backend, error) {
	return globalRegistry.Get(name, conf)
}

// Names returns all registered backend names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}
