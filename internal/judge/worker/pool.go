// Package worker runs the judging loop: a fixed pool of goroutines that
// poll the queue and hand submissions to the orchestrator.
package worker

import (
	"context"
	"sync"
	"time"

	"arbiter/internal/judge/orchestrator"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	"arbiter/pkg/utils/logger"
)

// Config holds worker pool settings.
type Config struct {
	Size         int           `yaml:"size"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// DefaultConfig returns worker defaults.
func DefaultConfig() Config {
	return Config{
		Size:         4,
		PollInterval: 100 * time.Millisecond,
	}
}

// Pool owns the judging goroutines. One submission failing never stops
// the loop; the next pull proceeds regardless.
type Pool struct {
	cfg  Config
	q    *queue.Queue
	orch *orchestrator.Orchestrator
	reg  registry.Registry

	wg sync.WaitGroup
}

// NewPool creates a worker pool.
func NewPool(cfg Config, q *queue.Queue, orch *orchestrator.Orchestrator, reg registry.Registry) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Pool{cfg: cfg, q: q, orch: orch, reg: reg}
}

// Start launches the pool. Workers stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.loop(ctx, id)
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	logger.Debugf(ctx, "worker %d started", id)
	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "worker %d stopping", id)
			return
		default:
		}

		item := p.q.Pull()
		if item == nil {
			select {
			case <-ctx.Done():
				logger.Debugf(ctx, "worker %d stopping", id)
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}
		p.process(ctx, item)
	}
}

// process restores spilled sources and judges the item.
func (p *Pool) process(ctx context.Context, item *queue.Item) {
	if item.Spilled {
		src, err := p.reg.LoadSource(ctx, item.SubmissionID)
		if err != nil {
			logger.Errorf(ctx, "restore source for submission %s: %v", item.SubmissionID, err)
			p.orch.Fail(ctx, item.SubmissionID, "archived source could not be restored")
			return
		}
		item.Source = src
		item.Spilled = false
	}
	p.orch.Judge(ctx, item)
}
