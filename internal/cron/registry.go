package cron

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Job is one unit of maintenance work. Run must honour ctx cancellation;
// the service cancels it when the job's timeout elapses.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// TimeoutJob overrides the service-wide job timeout.
type TimeoutJob interface {
	Job
	Timeout() time.Duration
}

// Registry holds jobs in run order, keyed by unique name.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends job. Names label logs and metrics, so blanks and
// duplicates are refused.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
