package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupProcessesEveryJobOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	workers := make([]*Worker, 4)
	for i := range workers {
		workers[i] = env.worker(t)
	}
	group, err := NewGroup(workers, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, group.Size())

	const jobs = 12
	for i := 0; i < jobs; i++ {
		env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5+i)))
	}

	require.NoError(t, group.Start(ctx))
	assert.ErrorIs(t, group.Start(ctx), ErrGroupRunning)

	require.Eventually(t, func() bool {
		done, err := env.stores.Queue.ListJobs(ctx, core.JobStatusCompleted)
		return err == nil && len(done) == jobs
	}, 10*time.Second, 20*time.Millisecond)

	group.Stop()
	group.Stop()

	all, err := env.stores.Queue.ListJobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, jobs)
	for _, job := range all {
		assert.Equal(t, 1, job.Attempts, "job %s", job.ID)
	}

	// One embedding call per job: every job was processed by exactly one worker.
	assert.Equal(t, jobs, env.embedder.CallCount())
}

func TestGroupStopFinishesInFlightJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	started, release := blockEmbedder(env)

	doc, job := env.upload(t, "notes.txt", core.MimeTypePlainText, []byte(sampleText(5)))
	group, err := NewGroup([]*Worker{env.worker(t)}, nil)
	require.NoError(t, err)
	require.NoError(t, group.Start(ctx))
	<-started

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		group.Stop()
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-stopped

	stored, err := env.stores.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingStatusCompleted, stored.ProcessingStatus)
	assert.Empty(t, stored.ErrorMessage)

	record, err := env.stores.Queue.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, record.Status)
}

func TestGroupRestart(t *testing.T) {
	env := newTestEnv(t)

	group, err := NewGroup([]*Worker{env.worker(t)}, nil)
	require.NoError(t, err)

	require.NoError(t, group.Start(context.Background()))
	group.Stop()
	require.NoError(t, group.Start(context.Background()))
	group.Stop()
}

func TestNewGroupRequiresWorkers(t *testing.T) {
	_, err := NewGroup(nil, nil)
	assert.ErrorIs(t, err, ErrNoWorkers)
}
