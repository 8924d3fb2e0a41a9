package permission

import (
	"errors"
	"sync"
)

// Registry holds the set of codenames known to the deployment. An engine
// built with a registry consults it on every permission check: a codename
// nobody ever registered answers false outright, and superuser resolution
// is clipped to the registered universe.
type Registry struct {
	mu     sync.RWMutex
	known  map[Codename]struct{}
	frozen bool
}

// NewRegistry creates an empty codename registry.
func NewRegistry() *Registry {
	return &Registry{known: make(map[Codename]struct{})}
}

// Register validates and records a codename. Must be called before
// [Registry.Freeze].
func (r *Registry) Register(name string) (Codename, error) {
	c, err := ParseCodename(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return "", errors.New("registry frozen")
	}
	if _, exists := r.known[c]; exists {
		return "", errors.New("codename already registered")
	}

	r.known[c] = struct{}{}
	return c, nil
}

// Known reports whether the codename was registered.
func (r *Registry) Known(c Codename) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[c]
	return ok
}

// Freeze prevents further registrations. Callers register their full
// codename set at startup, freeze, and treat the registry as immutable
// afterwards.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered codenames.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}
