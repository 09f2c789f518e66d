package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rosterkit/roster-api/internal/models"
)

// Registry owns every job created during the process lifetime. Jobs
// are insert-only: nothing is evicted, and job history does not
// survive a restart.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*models.Job)}
}

// Create registers a new pending job under a fresh identifier.
func (r *Registry) Create() *models.Job {
	job := models.NewJob(uuid.NewString())
	r.mu.Lock()
	r.jobs[job.ID()] = job
	r.mu.Unlock()
	return job
}

func (r *Registry) Get(id string) (*models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// List returns all jobs, newest first.
func (r *Registry) List() []*models.Job {
	r.mu.RLock()
	jobs := make([]*models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt().Equal(jobs[j].CreatedAt()) {
			return jobs[i].ID() < jobs[j].ID()
		}
		return jobs[i].CreatedAt().After(jobs[j].CreatedAt())
	})
	return jobs
}
