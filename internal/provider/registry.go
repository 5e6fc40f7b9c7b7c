package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/danshapiro/chorus/internal/providerspec"
)

// Registry holds live adapters keyed by canonical provider id. It is handed
// to consumers explicitly; nothing in chorus reaches for an ambient registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

func (r *Registry) Register(a Adapter) {
	key := providerspec.CanonicalProviderKey(a.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[key] = a
}

// GetAdapter returns the adapter for a provider id (aliases resolve), or nil.
func (r *Registry) GetAdapter(providerID string) Adapter {
	key := providerspec.CanonicalProviderKey(providerID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[key]
}

// IsAvailable reports whether a provider has a registered adapter that
// currently passes its health check.
func (r *Registry) IsAvailable(ctx context.Context, providerID string) bool {
	a := r.GetAdapter(providerID)
	return a != nil && a.HealthCheck(ctx)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
