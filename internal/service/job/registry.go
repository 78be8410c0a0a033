package job

import (
	"errors"
	"sync"
)

// ErrNotFound is returned for unknown or evicted job IDs.
var ErrNotFound = errors.New("job not found")

// DefaultCapacity is the number of jobs a registry remembers.
const DefaultCapacity = 1024

// Registry keeps the most recent jobs in submission order. When full, the
// oldest finished job is evicted; running jobs are never evicted.
type Registry struct {
	mu       sync.Mutex
	gen      *Generator
	capacity int
	jobs     map[string]*Lifecycle
	order    []string
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		gen:      NewGenerator(),
		capacity: capacity,
		jobs:     make(map[string]*Lifecycle),
	}
}

// Create registers a new PENDING job for filename.
func (r *Registry) Create(filename string) *Lifecycle {
	l := NewLifecycle(r.gen.Next(), filename)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[l.ID()] = l
	r.order = append(r.order, l.ID())
	r.evict()
	return l
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Snapshot, error) {
	r.mu.Lock()
	l, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return l.Snapshot(), nil
}

// Len returns the number of remembered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *Registry) evict() {
	for i := 0; len(r.jobs) > r.capacity && i < len(r.order); {
		id := r.order[i]
		if !r.jobs[id].State().IsTerminal() {
			i++
			continue
		}
		delete(r.jobs, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}
