package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/constants"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/pipeline"
)

type procFunc func(ctx context.Context, profile string, doc pipeline.Document) (*pipeline.Report, error)

func (f procFunc) Process(ctx context.Context, profile string, doc pipeline.Document) (*pipeline.Report, error) {
	return f(ctx, profile, doc)
}

func waitTerminal(t *testing.T, q *ProcessorQueue, id string) *entity.UploadJob {
	t.Helper()
	var job *entity.UploadJob
	require.Eventually(t, func() bool {
		j, ok := q.Get(id)
		if !ok {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestProcessorQueue_RunsJobs(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessorQueue(procFunc(func(_ context.Context, profile string, doc pipeline.Document) (*pipeline.Report, error) {
		<-release
		if doc.Filename == "bad.pdf" {
			return nil, errors.New("no text")
		}
		return &pipeline.Report{
			Transactions: []*entity.Transaction{{DocumentNumber: "1/2013"}},
			Summary:      entity.Summary{Profile: profile, Persisted: 1},
		}, nil
	}), nil, WithWorkers(2), WithQueueSize(4))
	defer q.Shutdown(context.Background())

	good, err := q.Enqueue(context.Background(), Job{Profile: "registry", Document: pipeline.Document{Filename: "ec.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusQueued, good.Status)
	assert.NotEmpty(t, good.ID)

	bad, err := q.Enqueue(context.Background(), Job{Document: pipeline.Document{Filename: "bad.pdf"}})
	require.NoError(t, err)
	close(release)

	done := waitTerminal(t, q, good.ID)
	assert.Equal(t, constants.JobStatusDone, done.Status)
	require.NotNil(t, done.Summary)
	assert.Equal(t, 1, done.Summary.Persisted)
	assert.Len(t, done.Transactions, 1)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)

	failed := waitTerminal(t, q, bad.ID)
	assert.Equal(t, constants.JobStatusFailed, failed.Status)
	assert.Equal(t, "no text", failed.Error)

	_, ok := q.Get("missing")
	assert.False(t, ok)
}

func TestProcessorQueue_ShutdownDrainsAndRejects(t *testing.T) {
	processed := make(chan string, 4)
	q := NewProcessorQueue(procFunc(func(_ context.Context, _ string, doc pipeline.Document) (*pipeline.Report, error) {
		processed <- doc.Filename
		return &pipeline.Report{}, nil
	}), nil, WithWorkers(1))

	for _, name := range []string{"a.pdf", "b.pdf"} {
		_, err := q.Enqueue(context.Background(), Job{Document: pipeline.Document{Filename: name}})
		require.NoError(t, err)
	}
	q.Shutdown(context.Background())
	assert.Len(t, processed, 2)

	_, err := q.Enqueue(context.Background(), Job{})
	require.ErrorIs(t, err, ErrQueueClosed)
	q.Shutdown(context.Background())
}

func TestProcessorQueue_FullQueueHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := NewProcessorQueue(procFunc(func(context.Context, string, pipeline.Document) (*pipeline.Report, error) {
		<-block
		return &pipeline.Report{}, nil
	}), nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	// one job held by the worker, one in the buffer
	first, err := q.Enqueue(context.Background(), Job{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := q.Get(first.ID)
		return j.Status == constants.JobStatusRunning
	}, time.Second, time.Millisecond)
	_, err = q.Enqueue(context.Background(), Job{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Enqueue(ctx, Job{ID: "overflow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := q.Get("overflow")
	assert.False(t, ok)
}

func TestProcessorQueue_Retention(t *testing.T) {
	q := NewProcessorQueue(procFunc(func(context.Context, string, pipeline.Document) (*pipeline.Report, error) {
		return &pipeline.Report{}, nil
	}), nil, WithWorkers(1), WithRetention(2))
	defer q.Shutdown(context.Background())

	var ids []string
	for range 3 {
		j, err := q.Enqueue(context.Background(), Job{})
		require.NoError(t, err)
		waitTerminal(t, q, j.ID)
		ids = append(ids, j.ID)
	}
	_, err := q.Enqueue(context.Background(), Job{ID: "latest"})
	require.NoError(t, err)

	_, ok := q.Get(ids[0])
	assert.False(t, ok)
	_, ok = q.Get("latest")
	assert.True(t, ok)
}
