package spool

import "github.com/bft-labs/shardspool/internal/domain"

// Registry tracks the spool files currently known to be pending, in
// observation order. Observation order is the send order, which keeps batch
// membership reproducible across retries.
type Registry struct {
	order []string
	files map[string]domain.PendingFile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]domain.PendingFile)}
}

// Observe records a pending file. Returns false if the path is already known.
func (r *Registry) Observe(f domain.PendingFile) bool {
	if _, ok := r.files[f.Path]; ok {
		return false
	}
	r.files[f.Path] = f
	r.order = append(r.order, f.Path)
	return true
}

// Forget removes a path from the registry, typically after delivery or
// quarantine.
func (r *Registry) Forget(path string) {
	if _, ok := r.files[path]; !ok {
		return
	}
	delete(r.files, path)
	for i, p := range r.order {
		if p == path {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Pending returns the known files in observation order.
func (r *Registry) Pending() []domain.PendingFile {
	out := make([]domain.PendingFile, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.files[p])
	}
	return out
}

// Known reports whether path is already registered.
func (r *Registry) Known(path string) bool {
	_, ok := r.files[path]
	return ok
}

// Len returns the number of pending files.
func (r *Registry) Len() int { return len(r.order) }
