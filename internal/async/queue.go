// Package async runs uploads through the pipeline on a pool of background
// workers and keeps their status for polling.
package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/constants"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("job queue is shutting down")

// Job is one queued upload.
type Job struct {
	ID          string
	Profile     string
	Document    pipeline.Document
	SubmittedAt time.Time
	RequestID   string
}

// Processor is satisfied by *pipeline.Processor.
type Processor interface {
	Process(ctx context.Context, profile string, doc pipeline.Document) (*pipeline.Report, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) (*entity.UploadJob, error)
	Get(id string) (*entity.UploadJob, bool)
	Shutdown(ctx context.Context)
}

type ProcessorQueue struct {
	proc      Processor
	logger    *zap.Logger
	workers   int
	retention int

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// sendMu guards closed and sends on ch; mu guards the job registry.
	sendMu sync.RWMutex
	closed bool

	mu    sync.Mutex
	jobs  map[string]*entity.UploadJob
	order []string
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithRetention caps how many jobs are remembered; the oldest finished ones go first.
func WithRetention(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.retention = n
		}
	}
}

func NewProcessorQueue(proc Processor, logger *zap.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &ProcessorQueue{
		proc:      proc,
		logger:    logger,
		workers:   2,
		retention: 1000,
		ch:        make(chan Job, 64),
		jobs:      map[string]*entity.UploadJob{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", zap.Int("worker_id", workerID))
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("async.worker.stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	log := q.logger.With(zap.Int("worker_id", workerID), zap.String("job_id", job.ID), zap.String("req_id", job.RequestID))
	q.update(job.ID, func(j *entity.UploadJob) {
		now := time.Now().UTC()
		j.Status = constants.JobStatusRunning
		j.StartedAt = &now
	})

	// the pipeline bounds itself with its own process timeout
	report, err := q.proc.Process(context.Background(), job.Profile, job.Document)

	q.update(job.ID, func(j *entity.UploadJob) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		if err != nil {
			j.Status = constants.JobStatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = constants.JobStatusDone
		summary := report.Summary
		j.Summary = &summary
		j.Transactions = report.Transactions
	})
	if err != nil {
		log.Error("async.job.failed", zap.Error(err))
		return
	}
	log.Info("async.job.done", zap.Int("persisted", report.Summary.Persisted))
}

// Enqueue registers the job and hands it to a worker. When the buffer is full
// it waits for room or for ctx to end.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) (*entity.UploadJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}

	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		q.logger.Warn("async.enqueue.closed", zap.String("job_id", job.ID))
		return nil, ErrQueueClosed
	}

	rec := &entity.UploadJob{
		ID:           job.ID,
		Filename:     job.Document.Filename,
		Profile:      job.Profile,
		Status:       constants.JobStatusQueued,
		Transactions: []*entity.Transaction{},
		CreatedAt:    job.SubmittedAt,
	}
	q.mu.Lock()
	q.jobs[job.ID] = rec
	q.order = append(q.order, job.ID)
	q.evictLocked()
	out := *rec
	q.mu.Unlock()

	select {
	case q.ch <- job:
		q.logger.Info("async.job.queued", zap.String("job_id", job.ID), zap.String("file", job.Document.Filename))
	default:
		q.logger.Warn("async.queue.full", zap.String("job_id", job.ID))
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.jobs, job.ID)
			q.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	return &out, nil
}

// Get returns a snapshot of the job.
func (q *ProcessorQueue) Get(id string) (*entity.UploadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	out := *j
	return &out, true
}

func (q *ProcessorQueue) update(id string, fn func(*entity.UploadJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok {
		fn(j)
	}
}

// evictLocked drops the oldest finished jobs beyond the retention cap.
func (q *ProcessorQueue) evictLocked() {
	if len(q.order) <= q.retention {
		return
	}
	kept := q.order[:0]
	excess := len(q.order) - q.retention
	for _, id := range q.order {
		j, ok := q.jobs[id]
		if !ok {
			continue
		}
		if excess > 0 && j.Status.Terminal() {
			delete(q.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
