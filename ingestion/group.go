package ingestion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Group runs a fixed set of workers as long-lived tasks in an ants pool.
type Group struct {
	workers []*Worker
	logger  *slog.Logger

	mu      sync.Mutex
	pool    *ants.Pool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewGroup creates a group over workers. The workers should share a queue.
func NewGroup(workers []*Worker, logger *slog.Logger) (*Group, error) {
	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{
		workers: workers,
		logger:  logger.With("component", "worker-group"),
	}, nil
}

// Size returns the number of workers.
func (g *Group) Size() int {
	return len(g.workers)
}

// Start launches every worker. It returns immediately.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return ErrGroupRunning
	}

	pool, err := ants.NewPool(len(g.workers), ants.WithPanicHandler(func(r any) {
		g.logger.Error("worker exited with panic", "panic", r)
	}))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	for i, w := range g.workers {
		g.wg.Add(1)
		if err := pool.Submit(func() {
			defer g.wg.Done()
			w.Run(runCtx)
		}); err != nil {
			g.wg.Done()
			cancel()
			g.wg.Wait()
			pool.Release()
			g.logger.Error("failed to start worker", "index", i, "err", err)
			return err
		}
	}

	g.pool = pool
	g.cancel = cancel
	g.running = true
	g.logger.Info("worker group started", "workers", len(g.workers))
	return nil
}

// Stop cancels every worker, waits for in-flight jobs to finish and
// releases the pool. Stopping a stopped group is a no-op.
func (g *Group) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return
	}
	g.cancel()
	g.wg.Wait()
	g.pool.Release()
	g.running = false
	g.logger.Info("worker group stopped")
}
