// Package queue holds admitted submissions until a worker picks them up.
package queue

import (
	"context"
	"sync"
	"time"

	"arbiter/internal/judge/registry"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// Item is one queued submission. When Spilled is set the source bytes
// live in the registry archive instead of memory.
type Item struct {
	SubmissionID string
	ProblemID    string
	Language     string
	Source       []byte
	Spilled      bool
	EnqueuedAt   time.Time
}

// Config holds queue settings.
type Config struct {
	// Capacity is the hard admission bound; Push rejects beyond it.
	Capacity int `yaml:"capacity"`

	// SpillHighWater is the depth above which source bytes are moved to
	// the registry archive before enqueueing, keeping queue memory
	// bounded during bursts.
	SpillHighWater int `yaml:"spillHighWater"`
}

// DefaultConfig returns queue defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       10000,
		SpillHighWater: 256,
	}
}

// Queue is an in-memory FIFO with source spilling under pressure.
type Queue struct {
	cfg Config
	reg registry.Registry

	mu    sync.Mutex
	items []*Item
}

// NewQueue creates a queue backed by reg for spilled sources.
func NewQueue(cfg Config, reg registry.Registry) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	if cfg.SpillHighWater <= 0 {
		cfg.SpillHighWater = 256
	}
	return &Queue{cfg: cfg, reg: reg}
}

// Push admits an item. Above the spill high-water mark the source is
// archived first so the queue holds only the reference. The capacity
// check and the append share one critical section so the bound is exact
// under concurrent pushes; archiving happens outside the lock and the
// depth is re-checked afterwards.
func (q *Queue) Push(ctx context.Context, item *Item) error {
	for {
		q.mu.Lock()
		depth := len(q.items)
		if depth >= q.cfg.Capacity {
			q.mu.Unlock()
			return appErr.New(appErr.JudgeQueueFull)
		}
		if depth >= q.cfg.SpillHighWater && !item.Spilled {
			q.mu.Unlock()
			if err := q.reg.SaveSource(ctx, item.SubmissionID, item.Source); err != nil {
				return err
			}
			item.Source = nil
			item.Spilled = true
			logger.Debugf(ctx, "spilled source for submission %s at depth %d", item.SubmissionID, depth)
			continue
		}
		if item.EnqueuedAt.IsZero() {
			item.EnqueuedAt = time.Now()
		}
		q.items = append(q.items, item)
		q.mu.Unlock()
		return nil
	}
}

// Pull removes and returns the oldest item, or nil when the queue is
// empty. Workers poll; there is no blocking variant.
func (q *Queue) Pull() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item
}

// Depth reports the current number of queued items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
