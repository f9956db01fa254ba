package storage

import (
	"sync"

	"creative-pipeline/internal/pipeline"
)

// Registry keeps completed reports in memory for the read API, keyed by
// run ID. Reports are immutable, so readers get the shared pointer.
type Registry struct {
	mu    sync.RWMutex
	runs  map[string]*pipeline.Report
	order []string // insertion order, oldest first
}

func NewRegistry() *Registry {
	return &Registry{runs: map[string]*pipeline.Report{}}
}

func (r *Registry) Put(rep *pipeline.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[rep.RunID]; !exists {
		r.order = append(r.order, rep.RunID)
	}
	r.runs[rep.RunID] = rep
}

func (r *Registry) Get(runID string) (*pipeline.Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.runs[runID]
	return rep, ok
}

// List returns all reports, newest first.
func (r *Registry) List() []*pipeline.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pipeline.Report, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.runs[r.order[i]])
	}
	return out
}
