package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schemalens/schemalens/internal/analysis"
	"github.com/schemalens/schemalens/internal/ledger"
)

const (
	// DefaultWorkers is the worker count when none is configured.
	DefaultWorkers = 4

	// DefaultQueueSize is the task queue capacity when none is configured.
	DefaultQueueSize = 64
)

var (
	// ErrQueueFull is returned by Enqueue when the task queue is at capacity.
	ErrQueueFull = errors.New("analysis queue is full")

	// ErrPoolStopped is returned by Enqueue after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Task is one queued analysis request bound to a pre-created ledger run.
type Task struct {
	RunID      string
	SourcePath string
	Repository string
	Stage      bool
}

// WorkerPool executes queued analysis runs on a fixed set of workers. Each
// in-flight run can be cancelled individually through Cancel.
type WorkerPool struct {
	runner     *analysis.Runner
	ledger     *ledger.Ledger
	numWorkers int
	tasks      chan Task
	stopChan   chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	logger     *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewWorkerPool creates a pool of numWorkers workers with a bounded task
// queue. Zero or negative sizes select the defaults.
func NewWorkerPool(runner *analysis.Runner, l *ledger.Ledger, numWorkers, queueSize int, logger *zap.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		runner:     runner,
		ledger:     l,
		numWorkers: numWorkers,
		tasks:      make(chan Task, queueSize),
		stopChan:   make(chan struct{}),
		logger:     logger,
		active:     make(map[string]context.CancelFunc),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.logger.Info("starting worker pool", zap.Int("workers", p.numWorkers))
		for i := 0; i < p.numWorkers; i++ {
			p.wg.Add(1)
			go p.work(ctx, i)
		}
	})
}

// Enqueue adds a task to the queue without blocking.
func (p *WorkerPool) Enqueue(task Task) error {
	select {
	case <-p.stopChan:
		return ErrPoolStopped
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel aborts the run if a worker is executing it right now and reports
// whether it was. A run still sitting in the queue is not touched here; the
// ledger guard stops it at pickup.
func (p *WorkerPool) Cancel(runID string) bool {
	p.mu.Lock()
	cancel, ok := p.active[runID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the number of runs currently executing.
func (p *WorkerPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Stop prevents further enqueues, waits for in-flight runs to finish and
// marks tasks still sitting in the queue as failed so their ledger rows do
// not stay pending forever.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.drain()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", id))
	log.Debug("worker started")

	for {
		select {
		case <-p.stopChan:
			log.Debug("worker stopped")
			return
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			p.process(ctx, log, task)
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, log *zap.Logger, task Task) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.active[task.RunID] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.active, task.RunID)
		p.mu.Unlock()
	}()

	log.Info("run picked up",
		zap.String("run_id", task.RunID),
		zap.String("repository", task.Repository))

	_, err := p.runner.WithStage(task.Stage).RunExisting(runCtx, task.RunID, task.SourcePath, task.Repository)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrRunFinished):
		// Cancelled while queued; nothing ran.
		log.Info("run skipped", zap.String("run_id", task.RunID))
	default:
		// The runner already recorded and logged the failure.
		log.Debug("run did not complete", zap.String("run_id", task.RunID), zap.Error(err))
	}
}

// drain fails every task the workers never picked up.
func (p *WorkerPool) drain() {
	for {
		select {
		case task := <-p.tasks:
			if p.ledger == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.ledger.Fail(ctx, task.RunID, "service shut down before the run started")
			cancel()
			if err != nil && !errors.Is(err, ledger.ErrRunFinished) {
				p.logger.Warn("failed to record abandoned run",
					zap.String("run_id", task.RunID), zap.Error(err))
			}
		default:
			return
		}
	}
}
