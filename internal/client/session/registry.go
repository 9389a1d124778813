package session

import "sync"

// Registry maps an originalKey to the upload attempt interested in it.
// Entries are removed when an attempt reaches a terminal phase or is
// superseded, so the map cannot grow without bound across many uploads in
// one process lifetime.
type Registry struct {
	mu sync.Mutex
	m  map[string]int
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]int)}
}

func (r *Registry) Register(key string, attempt int) {
	if key == "" {
		return
	}
	r.mu.Lock()
	r.m[key] = attempt
	r.mu.Unlock()
}

func (r *Registry) Remove(key string) {
	if key == "" {
		return
	}
	r.mu.Lock()
	delete(r.m, key)
	r.mu.Unlock()
}

// Lookup returns the attempt registered for key, if any.
func (r *Registry) Lookup(key string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.m[key]
	return attempt, ok
}

// Len reports how many keys are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
