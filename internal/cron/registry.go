package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs keyed by name, in registration order.
type Registry struct {
	order  []string
	byName map[string]Job
}

// NewRegistry registers jobs in order. nil jobs are ignored.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds job. Names must be unique because metrics and logs key on them.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("cron job name required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.byName[name])
	}
	return jobs
}

// Select narrows the registry to the named jobs, keeping registration order.
// No names keeps every job.
func (r *Registry) Select(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	wanted := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		wanted[name] = true
	}
	selected := &Registry{byName: map[string]Job{}}
	for _, name := range r.order {
		if wanted[name] {
			selected.byName[name] = r.byName[name]
			selected.order = append(selected.order, name)
		}
	}
	return selected, nil
}
