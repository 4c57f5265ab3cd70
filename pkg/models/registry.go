package models

import (
	"fmt"
	"time"

	"github.com/tberndt/dbprune/pkg/blob"
)

// Registry holds the model descriptors known to the application. It is
// populated once at startup and preserves registration order.
type Registry struct {
	order  []string
	byName map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds a descriptor. Names must be unique.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("register model: name is required")
	}
	if d.New == nil {
		return fmt.Errorf("register model %s: factory is required", d.Name)
	}
	if _, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("register model %s: already registered", d.Name)
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Lookup resolves a model name to its descriptor.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every descriptor in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// DefaultRegistry builds the registry of the application's models.
// store may be nil when no blob store is configured; the uploads model
// then prunes rows without touching backing objects.
func DefaultRegistry(cfg Config, store blob.Deleter) (*Registry, error) {
	retention := time.Duration(cfg.AuditRetentionDays) * 24 * time.Hour

	r := NewRegistry()
	for _, d := range []Descriptor{
		SessionsModel(),
		AuditEventsModel(retention),
		UploadsModel(store),
		MonthlyRollupsModel(),
	} {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
