package breaker

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry is a process-wide by-name map of breakers, per spec.md
// §4.1's "Registry" subsection: created on first use, config supplied
// only at creation.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	logger   zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		logger:   logger.With().Str("component", "breaker_registry").Logger(),
	}
}

// Get returns the breaker named name, creating it with cfg if it does
// not already exist. cfg is ignored on a cache hit.
func (r *Registry) Get(name string, cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, cfg, r.logger)
	r.breakers[name] = b
	return b
}

// Remove detaches a breaker and its event listeners.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		b.mu.Lock()
		b.listeners = nil
		b.mu.Unlock()
		delete(r.breakers, name)
	}
}

// All returns a snapshot slice of every registered breaker.
func (r *Registry) All() []*Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b)
	}
	return out
}
