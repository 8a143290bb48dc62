package vendors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
)

// Factory constructs a source from client settings.
type Factory func(cfg ClientConfig, log *telemetry.Logger) (migrate.Source, error)

// Info describes a registered vendor for display purposes.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EntityKind  string `json:"entity_kind"`
}

// Registry holds the known vendor source factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	info      map[string]Info
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		info:      make(map[string]Info),
	}
}

// Register adds a vendor factory. Registering the same name twice is a
// programming error and panics.
func (r *Registry) Register(info Info, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[info.Name]; exists {
		panic(fmt.Sprintf("vendor %q registered twice", info.Name))
	}
	r.factories[info.Name] = factory
	r.info[info.Name] = info
}

// New constructs a source for the named vendor.
func (r *Registry) New(name string, cfg ClientConfig, log *telemetry.Logger) (migrate.Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, migrate.NewPermanentError(
			fmt.Sprintf("unknown vendor: %s", name), nil).
			WithCode(migrate.ErrCodeValidation)
	}
	return factory(cfg, log)
}

// List returns every registered vendor, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.info))
	for _, info := range r.info {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
