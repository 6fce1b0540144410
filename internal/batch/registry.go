package batch

import "sync"

// Registry holds every live batch job. Callers only ever see copies.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Job{}}
}

func (r *Registry) Insert(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = &job
}

// Update applies fn to the job under the write lock and returns the
// resulting copy. ok is false when id is unknown.
func (r *Registry) Update(id string, fn func(*Job)) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	fn(job)
	return clone(job), true
}

func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return clone(job), true
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func clone(j *Job) Job {
	out := *j
	out.Reports = append([]Descriptor(nil), j.Reports...)
	out.Skipped = append([]Skipped(nil), j.Skipped...)
	return out
}
