package queue_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	appErr "arbiter/pkg/errors"
)

type spillRecorder struct {
	registry.Registry

	saved map[string][]byte
}

func (r *spillRecorder) SaveSource(ctx context.Context, id string, code []byte) error {
	if r.saved == nil {
		r.saved = make(map[string][]byte)
	}
	r.saved[id] = append([]byte(nil), code...)
	return nil
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(queue.Config{Capacity: 10, SpillHighWater: 10}, &spillRecorder{})
	for _, id := range []string{"1", "2", "3"} {
		item := &queue.Item{SubmissionID: id, Source: []byte("code")}
		if err := q.Push(context.Background(), item); err != nil {
			t.Fatalf("push %s failed: %v", id, err)
		}
	}
	if q.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", q.Depth())
	}
	for _, want := range []string{"1", "2", "3"} {
		item := q.Pull()
		if item == nil || item.SubmissionID != want {
			t.Fatalf("expected %s, got %+v", want, item)
		}
	}
	if q.Pull() != nil {
		t.Fatalf("empty queue must return nil")
	}
}

func TestQueueSpillsAboveHighWater(t *testing.T) {
	t.Parallel()
	rec := &spillRecorder{}
	q := queue.NewQueue(queue.Config{Capacity: 10, SpillHighWater: 2}, rec)

	for i, id := range []string{"1", "2", "3"} {
		item := &queue.Item{SubmissionID: id, Source: []byte("source-" + id)}
		if err := q.Push(context.Background(), item); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}

	// Items below the mark keep their source in memory.
	first := q.Pull()
	if first.Spilled || string(first.Source) != "source-1" {
		t.Fatalf("first item must not spill, got %+v", first)
	}
	q.Pull()

	third := q.Pull()
	if !third.Spilled || third.Source != nil {
		t.Fatalf("third item must be spilled, got %+v", third)
	}
	if string(rec.saved["3"]) != "source-3" {
		t.Fatalf("spilled source must be archived before enqueue")
	}
}

func TestQueueCapacityExactUnderConcurrentPush(t *testing.T) {
	t.Parallel()
	const capacity = 4
	q := queue.NewQueue(queue.Config{Capacity: capacity, SpillHighWater: 100}, &spillRecorder{})

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 4*capacity; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			item := &queue.Item{SubmissionID: strconv.Itoa(id), Source: []byte("code")}
			if err := q.Push(context.Background(), item); err == nil {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if n := admitted.Load(); int(n) != capacity {
		t.Fatalf("expected exactly %d admissions, got %d", capacity, n)
	}
	if q.Depth() != capacity {
		t.Fatalf("expected depth %d, got %d", capacity, q.Depth())
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	t.Parallel()
	q := queue.NewQueue(queue.Config{Capacity: 1, SpillHighWater: 100}, &spillRecorder{})
	if err := q.Push(context.Background(), &queue.Item{SubmissionID: "1"}); err != nil {
		t.Fatalf("first push failed: %v", err)
	}
	err := q.Push(context.Background(), &queue.Item{SubmissionID: "2"})
	if !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected queue full error, got %v", err)
	}
}
