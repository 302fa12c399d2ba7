// Package collab is the registry of external collaborators the core talks
// to: history loaders and history transformers (spec.md §1 — "Out of
// scope... history loaders... and history transformers... They supply a
// typed History and consume a Verdict"). The registry only holds interface
// contracts and descriptors; concrete text/binary/DBCop/Cobra loaders and
// the SI→Serializable transformer are explicitly out of scope for the core
// and are not implemented here.
//
// Adapted from the teacher repo's hooks.PluginBroker/hooks.Registry
// descriptor-catalog pattern.
package collab

import (
	"fmt"
	"sync"

	"github.com/dbcop/siverify/history"
)

// Kind categorizes a registered collaborator.
type Kind string

const (
	// KindLoader covers implementations of HistoryLoader.
	KindLoader Kind = "loader"
	// KindTransformer covers implementations of HistoryTransformer.
	KindTransformer Kind = "transformer"
)

// Descriptor describes a collaborator registered with the registry.
type Descriptor struct {
	Name        string
	Kind        Kind
	Description string
}

// HistoryLoader produces a History for the core to verify. Concrete
// implementations (text, binary DBCop, Cobra binary log) live outside this
// module; the core only depends on this interface. K and V mirror the key
// and value types carried by history.History.
type HistoryLoader[K comparable, V comparable] interface {
	LoadHistory() (*history.History[K, V], error)
}

// HistoryTransformer rewrites a History before or after verification (e.g.
// an SI→Serializable rewriting pass). Out of scope for the core itself.
type HistoryTransformer[K comparable, V comparable] interface {
	Transform(h *history.History[K, V]) (*history.History[K, V], error)
}

// Registry catalogs collaborators by name so a driver can look one up by
// configuration instead of importing it directly.
type Registry[K comparable, V comparable] struct {
	mu           sync.RWMutex
	loaders      map[string]HistoryLoader[K, V]
	transformers map[string]HistoryTransformer[K, V]
	catalog      map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable, V comparable]() *Registry[K, V] {
	return &Registry[K, V]{
		loaders:      make(map[string]HistoryLoader[K, V]),
		transformers: make(map[string]HistoryTransformer[K, V]),
		catalog:      make(map[string]Descriptor),
	}
}

// RegisterLoader registers a HistoryLoader under desc.Name.
func (r *Registry[K, V]) RegisterLoader(desc Descriptor, loader HistoryLoader[K, V]) error {
	if r == nil {
		return fmt.Errorf("collab: registry is nil")
	}
	if desc.Name == "" {
		return fmt.Errorf("collab: descriptor name cannot be empty")
	}
	desc.Kind = KindLoader

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.catalog[desc.Name]; exists {
		return fmt.Errorf("collab: %q already registered", desc.Name)
	}
	r.catalog[desc.Name] = desc
	r.loaders[desc.Name] = loader
	return nil
}

// RegisterTransformer registers a HistoryTransformer under desc.Name.
func (r *Registry[K, V]) RegisterTransformer(desc Descriptor, transformer HistoryTransformer[K, V]) error {
	if r == nil {
		return fmt.Errorf("collab: registry is nil")
	}
	if desc.Name == "" {
		return fmt.Errorf("collab: descriptor name cannot be empty")
	}
	desc.Kind = KindTransformer

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.catalog[desc.Name]; exists {
		return fmt.Errorf("collab: %q already registered", desc.Name)
	}
	r.catalog[desc.Name] = desc
	r.transformers[desc.Name] = transformer
	return nil
}

// Loader looks up a registered loader by name.
func (r *Registry[K, V]) Loader(name string) (HistoryLoader[K, V], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[name]
	return l, ok
}

// Transformer looks up a registered transformer by name.
func (r *Registry[K, V]) Transformer(name string) (HistoryTransformer[K, V], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transformers[name]
	return t, ok
}

// List returns descriptors for every registered collaborator of kind. A
// zero Kind lists everything.
func (r *Registry[K, V]) List(kind Kind) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.catalog))
	for _, d := range r.catalog {
		if kind == "" || d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
