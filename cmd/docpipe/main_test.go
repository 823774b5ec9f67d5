package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	for _, level := range []string{"debug", "INFO", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			app := &cli.App{
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
				Before: setupLogger,
				Action: func(*cli.Context) error { return nil },
			}
			require.NoError(t, app.Run([]string{"test", "--log-level", level}))
		})
	}

	t.Run("invalid", func(t *testing.T) {
		app := &cli.App{
			Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
			Before: setupLogger,
			Action: func(*cli.Context) error { return nil },
		}
		err := app.Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, loadEnv(""))
	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCPIPE_TEST_ENV_KEY=from-dotenv\n"), 0o644))
	t.Setenv("DOCPIPE_TEST_ENV_KEY", "")
	os.Unsetenv("DOCPIPE_TEST_ENV_KEY")

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("DOCPIPE_TEST_ENV_KEY"))
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{"run", "enqueue", "status", "list", "search", "delete", "reprocess", "init-config"}, names)
}

func TestOwnerIsRequired(t *testing.T) {
	for _, command := range []string{"list", "search", "delete", "reprocess", "enqueue"} {
		t.Run(command, func(t *testing.T) {
			app := newApp()
			app.Writer = &bytes.Buffer{}
			err := app.Run([]string{"docpipe", "--env-file", "", command, "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "owner")
		})
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpipe", "config.yaml")
	run := func(args ...string) error {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		return app.Run(append([]string{"docpipe", "--env-file", "", "--config", path}, args...))
	}

	require.NoError(t, run("init-config"))
	assert.FileExists(t, path)

	err := run("init-config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, run("init-config", "--force"))
}

// newEmbeddingServer serves /v1/embeddings with the mock embedder's vectors.
func newEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
			Model  string `json:"model"`
		}{Object: "list", Model: req.Model}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, item{Object: "embedding", Embedding: mock.Vector(text), Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCommandsEndToEnd(t *testing.T) {
	srv := newEmbeddingServer(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`storage:
  path: %s
vector_store:
  type: chromem
  chromem:
    path: %s
embedding:
  host: %s
  model: test-model
worker:
  count: 1
  dequeue_timeout: 50ms
  idle_sleep: 10ms
`, filepath.Join(dir, "db"), filepath.Join(dir, "vectors"), srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	content := "The harbour expansion finished in March. Cargo volume rose by a third over the year."
	file := filepath.Join(dir, "harbour.txt")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		err := app.Run(append([]string{"docpipe", "--env-file", "", "--config", cfgPath}, args...))
		return out.String(), err
	}

	out, err := run("enqueue", "--owner", "u1", "--wait", file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 3)
	docID, jobID := fields[0], fields[1]
	assert.Equal(t, "harbour.txt", fields[2])
	assert.Contains(t, lines[1], "completed")

	out, err = run("status", jobID)
	require.NoError(t, err)
	var job core.Job
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, core.JobStatusCompleted, job.Status)

	out, err = run("status", "--doc", "--owner", "u1", docID)
	require.NoError(t, err)
	var status core.DocumentStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, core.ProcessingStatusCompleted, status.Status)
	assert.Equal(t, 1, status.ChunkCount)

	out, err = run("list", "--owner", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, docID)
	assert.Contains(t, out, "completed")

	out, err = run("search", "--owner", "u1", "--context", content)
	require.NoError(t, err)
	assert.Contains(t, out, "Source: harbour.txt")
	assert.Contains(t, out, "1. harbour.txt - 1 relevant section")

	out, err = run("search", "--owner", "u2", content)
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant documents found.")

	out, err = run("reprocess", "--owner", "u1", docID)
	require.NoError(t, err)
	assert.Contains(t, out, docID)

	_, err = run("delete", "--owner", "u2", docID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	out, err = run("delete", "--owner", "u1", docID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+docID)

	out, err = run("list", "--owner", "u1")
	require.NoError(t, err)
	assert.NotContains(t, out, docID)
}

func TestRunStopsBackgroundTasks(t *testing.T) {
	srv := newEmbeddingServer(t)
	dir := t.TempDir()
	watched := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(watched, 0o755))
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`storage:
  in_memory: true
vector_store:
  type: chromem
  chromem:
    path: %s
embedding:
  host: %s
  model: test-model
worker:
  count: 1
  dequeue_timeout: 50ms
  idle_sleep: 10ms
`, filepath.Join(dir, "vectors"), srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	app := newApp()
	app.Writer = &bytes.Buffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.RunContext(ctx, []string{"docpipe", "--env-file", "", "--config", cfgPath,
			"run", "--reaper", "--owner", "u1", "--watch", watched})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunWatchRequiresOwner(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"docpipe", "--env-file", "", "--config", filepath.Join(t.TempDir(), "none.yaml"),
		"run", "--watch", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--owner")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestPrintNotificationsStopsOnWriteError(t *testing.T) {
	conn := notify.NewChannelConn(4)
	require.NoError(t, conn.Send(context.Background(), notify.Message{Type: notify.TypeJobProgress}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		printNotifications(context.Background(), failingWriter{}, conn)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("printNotifications kept running after a write error")
	}
}

type recordingUploader struct {
	mu    sync.Mutex
	names []string
}

func (u *recordingUploader) Upload(_ context.Context, _, fileName string, _ []byte, _ string) (*core.Document, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, fileName)
	return &core.Document{ID: fileName}, nil
}

func (u *recordingUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.names...)
}

func TestDirWatcher(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	w := newDirWatcher(up, "u1", slog.Default())
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("first version of the notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("skip me"), 0o644))

	require.Eventually(t, func() bool { return len(up.uploaded()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Same content again is skipped; new content is uploaded.
	require.NoError(t, os.WriteFile(path, []byte("first version of the notes"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, up.uploaded(), 1)

	require.NoError(t, os.WriteFile(path, []byte("second version of the notes"), 0o644))
	require.Eventually(t, func() bool { return len(up.uploaded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"notes.txt", "notes.txt"}, up.uploaded())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDirWatcherRapidEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes under constant rewrite"), 0o644))

	up := &recordingUploader{}
	w := newDirWatcher(up, "u1", slog.Default())
	w.settle = 50 * time.Microsecond
	ctx := context.Background()

	ev := fsnotify.Event{Name: path, Op: fsnotify.Write}
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.handle(ctx, ev)
	}
	require.Eventually(t, func() bool { return len(up.uploaded()) > 0 }, 2*time.Second, 5*time.Millisecond)

	waited := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("pending uploads never finished")
	}

	w.mu.Lock()
	assert.Empty(t, w.pending)
	w.mu.Unlock()
}

func TestDirWatcherMissingDirectory(t *testing.T) {
	w := newDirWatcher(&recordingUploader{}, "u1", slog.Default())
	err := w.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
