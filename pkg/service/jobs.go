package service

import (
	"context"
	"sync"
	"time"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const JobServiceKey = "JobService"

// jobQueueSize bounds the number of plans waiting for execution. Submitting
// beyond it fails fast instead of blocking a request handler.
const jobQueueSize = 128

// JobService queues deployment plans and applies them one at a time on a
// single background worker. Every submitted plan runs exactly once.
type JobService interface {
	// Submit enqueues the plan and returns its job id immediately.
	Submit(plan model.DeploymentPlan) (string, error)

	Get(id string) (model.Job, error)

	// Start runs the worker loop until the context is cancelled.
	Start(ctx context.Context)

	// RunNext executes a single queued job. It reports whether one was
	// available.
	RunNext(ctx context.Context) bool
}

type jobService struct {
	ApplyService ApplyService `inject:"ApplyService"`

	lock  sync.RWMutex
	jobs  map[string]*model.Job
	queue chan string
	once  sync.Once
}

func (j *jobService) init() {
	j.once.Do(func() {
		j.jobs = map[string]*model.Job{}
		j.queue = make(chan string, jobQueueSize)
	})
}

func (j *jobService) Submit(plan model.DeploymentPlan) (string, error) {
	j.init()

	job := &model.Job{
		Id:      uuid.NewString(),
		Status:  model.JobQueued,
		Plan:    plan,
		Created: time.Now(),
	}

	j.lock.Lock()
	j.jobs[job.Id] = job
	j.lock.Unlock()

	select {
	case j.queue <- job.Id:
	default:
		j.lock.Lock()
		delete(j.jobs, job.Id)
		j.lock.Unlock()
		return "", except.NewError("job queue is full", except.ErrUnavailable)
	}

	log.WithField("job_id", job.Id).Info("Queued deployment plan")
	return job.Id, nil
}

func (j *jobService) Get(id string) (model.Job, error) {
	j.init()

	j.lock.RLock()
	defer j.lock.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return model.Job{}, except.NewError("job %s not found", except.ErrNotFound, id)
	}
	return *job, nil
}

func (j *jobService) Start(ctx context.Context) {
	j.init()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-j.queue:
			j.run(ctx, id)
		}
	}
}

func (j *jobService) RunNext(ctx context.Context) bool {
	j.init()

	select {
	case id := <-j.queue:
		j.run(ctx, id)
		return true
	default:
		return false
	}
}

func (j *jobService) run(ctx context.Context, id string) {
	j.setStatus(id, model.JobRunning, nil)

	var plan model.DeploymentPlan
	j.lock.RLock()
	if job, ok := j.jobs[id]; ok {
		plan = job.Plan
	}
	j.lock.RUnlock()

	err := j.ApplyService.Apply(ctx, plan)
	if err != nil {
		log.WithField("job_id", id).WithError(err).Error("Deployment plan failed")
		j.setStatus(id, model.JobFailed, err)
		return
	}
	log.WithField("job_id", id).Info("Deployment plan applied")
	j.setStatus(id, model.JobSucceeded, nil)
}

func (j *jobService) setStatus(id string, status model.JobStatus, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	if err != nil {
		job.Error = err.Error()
	}
	if status == model.JobSucceeded || status == model.JobFailed {
		job.Done = time.Now()
	}
}
