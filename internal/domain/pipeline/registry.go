package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// Builder runs the risk-assessment step of one pipeline version.
type Builder func(ctx context.Context, run Run) (model.RiskAssessmentResult, error)

// Registry maps pipeline versions to builders. It is populated at startup
// and read on every call.
type Registry struct {
	mu       sync.RWMutex
	builders map[int]Builder
	latest   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[int]Builder)}
}

// NewDefaultRegistry returns a registry holding the v1 and v2 builders.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister(1, V1)
	r.mustRegister(2, V2)
	return r
}

func (r *Registry) mustRegister(version int, b Builder) {
	if err := r.Register(version, b); err != nil {
		panic(err)
	}
}

// Register adds or replaces the builder for version. The highest registered
// version becomes the latest.
func (r *Registry) Register(version int, b Builder) error {
	if version < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	if b == nil {
		return fmt.Errorf("%w: nil builder for version %d", ErrInvalidVersion, version)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[version] = b
	if version > r.latest {
		r.latest = version
	}
	return nil
}

// Latest returns the highest registered version and its builder.
func (r *Registry) Latest() (int, Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[r.latest]
	if !ok {
		return 0, nil, ErrNoFallbackVersion
	}
	return r.latest, b, nil
}

// Select returns the builder for version. An unknown version resolves to the
// latest one and fellBack is true.
func (r *Registry) Select(version int) (selected int, b Builder, fellBack bool, err error) {
	r.mu.RLock()
	b, ok := r.builders[version]
	r.mu.RUnlock()
	if ok {
		return version, b, false, nil
	}
	latest, b, err := r.Latest()
	if err != nil {
		return 0, nil, false, err
	}
	return latest, b, true, nil
}

// Versions returns the number of registered versions.
func (r *Registry) Versions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builders)
}
