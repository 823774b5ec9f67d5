package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReaper(t *testing.T, env *testEnv, cfg ReaperConfig) *Reaper {
	t.Helper()
	r, err := NewReaper(env.stores.Queue, env.stores.Documents, env.manager, cfg, nil)
	require.NoError(t, err)
	// Pretend an hour has passed.
	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	return r
}

// stall dequeues a job and marks it processing without finishing it.
func stall(t *testing.T, env *testEnv) *core.Job {
	t.Helper()
	ctx := context.Background()
	job, err := env.stores.Queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	job, err = env.stores.Queue.UpdateStatus(ctx, job.ID, core.JobStatusProcessing, "")
	require.NoError(t, err)
	return job
}

func TestReaperFailsStaleJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, _ := env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
	job := stall(t, env)

	r := newTestReaper(t, env, ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute})
	reaped, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	record, err := env.stores.Queue.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, record.Status)
	assert.Equal(t, LeaseExpiredMessage, record.Error)

	stored, err := env.stores.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingStatusFailed, stored.ProcessingStatus)
	assert.Equal(t, LeaseExpiredMessage, stored.ErrorMessage)

	msgs := env.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.TypeDocumentProcessed, msgs[0].Type)
	assert.Equal(t, "failed", msgs[0].Data.Status)

	again, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestReaperRequeuesWithinAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, _ := env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
	stall(t, env)

	r := newTestReaper(t, env, ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute, Requeue: true, MaxAttempts: 2})
	reaped, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	stored, err := env.stores.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingStatusQueued, stored.ProcessingStatus)

	// The fresh job carries the attempt count and completes normally.
	w := env.worker(t)
	processOne(t, w)

	record, err := env.stores.Queue.GetStatus(ctx, stored.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, record.Status)
	assert.Equal(t, 2, record.Attempts)

	stored, err = env.stores.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingStatusCompleted, stored.ProcessingStatus)
}

func TestReaperStopsRequeueingAtMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, _ := env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
	stall(t, env)

	r := newTestReaper(t, env, ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute, Requeue: true, MaxAttempts: 1})
	_, err := r.Sweep(ctx)
	require.NoError(t, err)

	n, err := env.stores.Queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := env.stores.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingStatusFailed, stored.ProcessingStatus)
}

func TestReaperIgnoresFreshJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
	job := stall(t, env)

	r, err := NewReaper(env.stores.Queue, env.stores.Documents, nil, ReaperConfig{Interval: time.Minute, StaleAfter: time.Hour}, nil)
	require.NoError(t, err)
	reaped, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)

	record, err := env.stores.Queue.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProcessing, record.Status)
}

func TestLateWorkerCannotRegressReapedJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
	job := stall(t, env)

	r := newTestReaper(t, env, ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute})
	_, err := r.Sweep(ctx)
	require.NoError(t, err)

	_, err = env.stores.Queue.UpdateStatus(ctx, job.ID, core.JobStatusCompleted, "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = env.stores.Queue.UpdateStatus(ctx, job.ID, core.JobStatusProcessing, "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	record, err := env.stores.Queue.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, record.Status)
}

// blockEmbedder makes embedding calls wait for release, or fail if their
// context ends first. started is closed once the first call is in flight.
func blockEmbedder(env *testEnv) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		once.Do(func() { close(started) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}
	return started, release
}

func TestLateWorkerLeavesReapedDocumentAlone(t *testing.T) {
	tests := []struct {
		name   string
		config ReaperConfig
		want   core.ProcessingStatus
	}{
		{"failed", ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute}, core.ProcessingStatusFailed},
		{"requeued", ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute, Requeue: true, MaxAttempts: 3}, core.ProcessingStatusQueued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			started, release := blockEmbedder(env)

			doc, job := env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
			w := env.worker(t)
			done := make(chan struct{})
			go func() {
				defer close(done)
				w.ProcessNext(ctx)
			}()
			<-started

			r := newTestReaper(t, env, tt.config)
			reaped, err := r.Sweep(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, reaped)
			reapedDoc, err := env.stores.Documents.GetDocument(ctx, doc.ID)
			require.NoError(t, err)

			close(release)
			<-done

			record, err := env.stores.Queue.GetStatus(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, core.JobStatusFailed, record.Status)
			assert.Equal(t, LeaseExpiredMessage, record.Error)

			stored, err := env.stores.Documents.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.ProcessingStatus)
			assert.Equal(t, reapedDoc.JobID, stored.JobID)
			assert.Zero(t, stored.ChunkCount)

			for _, msg := range env.messages() {
				if msg.Type == notify.TypeDocumentProcessed {
					assert.NotEqual(t, "completed", msg.Data.Status)
				}
			}
		})
	}
}

func TestReaperConfigValidate(t *testing.T) {
	assert.ErrorIs(t, ReaperConfig{}.Validate(), ErrInvalidReaperConfig)
	assert.ErrorIs(t, ReaperConfig{Interval: time.Second, StaleAfter: time.Second, Requeue: true}.Validate(), ErrInvalidReaperConfig)
	assert.NoError(t, ReaperConfig{Interval: time.Second, StaleAfter: time.Second}.Validate())
}
