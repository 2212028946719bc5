package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"arbiter/internal/common/cache"
	"arbiter/internal/judge/catalog"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/orchestrator"
	"arbiter/internal/judge/provision"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/runner"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/worker"
	appErr "arbiter/pkg/errors"
)

type syncRegistry struct {
	registry.Registry

	mu      sync.Mutex
	results map[string]model.JudgeResult
	sources map[string][]byte
}

func newSyncRegistry() *syncRegistry {
	return &syncRegistry{
		results: make(map[string]model.JudgeResult),
		sources: make(map[string][]byte),
	}
}

func (r *syncRegistry) SaveResult(ctx context.Context, res model.JudgeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.SubmissionID] = res
	return nil
}

func (r *syncRegistry) LoadResult(ctx context.Context, id string) (model.JudgeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	if !ok {
		return model.JudgeResult{}, appErr.Newf(appErr.SubmissionNotFound, "result for submission %s not found", id)
	}
	return res, nil
}

func (r *syncRegistry) SaveSource(ctx context.Context, id string, code []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[id] = append([]byte(nil), code...)
	return nil
}

func (r *syncRegistry) LoadSource(ctx context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[id]
	if !ok {
		return nil, appErr.Newf(appErr.SubmissionNotFound, "source for submission %s not found", id)
	}
	return src, nil
}

func (r *syncRegistry) result(id string) (model.JudgeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	return res, ok
}

type stubSandbox struct {
	sandbox.Client
}

func (stubSandbox) PrepareProgram(ctx context.Context, req sandbox.PrepareRequest) (sandbox.RunSpec, error) {
	return sandbox.RunSpec{Args: []string{"./run"}, Files: map[string]string{"run": "f"}}, nil
}

func (stubSandbox) RunOne(ctx context.Context, spec sandbox.ExecSpec) (sandbox.ExecResult, error) {
	return sandbox.ExecResult{Status: sandbox.StatusAccepted, Stderr: []byte("ok\n")}, nil
}

func (stubSandbox) DeleteFile(ctx context.Context, fileID string) error { return nil }

type routingCatalog struct {
	catalog.Catalog
}

func (routingCatalog) LoadProblem(ctx context.Context, problemID string) (model.Problem, error) {
	if problemID == "bad" {
		return model.Problem{}, appErr.Newf(appErr.ProblemNotFound, "problem %s not found", problemID)
	}
	limits := model.ResourceLimit{TimeLimitMs: 1000, MemoryLimitMB: 256}
	return model.Problem{
		ID:         problemID,
		Mode:       model.ModeStandard,
		CheckerRef: "chk.cc",
		Limits:     limits,
		Cases:      []model.TestCase{{InputRef: "1.in", AnswerRef: "1.ans", Limits: limits}},
	}, nil
}

func (routingCatalog) ReadTestFile(ctx context.Context, problemID, ref string) ([]byte, error) {
	return []byte("1\n"), nil
}

func (routingCatalog) ReadVerifierSource(ctx context.Context, problemID, ref string) ([]byte, error) {
	return []byte("//"), nil
}

func (routingCatalog) VerifierBinary(ctx context.Context, problemID string, kind model.VerifierKind) (string, bool) {
	return "", false
}

func newTestPool(t *testing.T, reg *syncRegistry, q *queue.Queue) *worker.Pool {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisCacheWithClient(client)
	t.Cleanup(func() { _ = c.Close() })

	repo := repository.NewResultRepository(c, reg, nil, repository.DefaultConfig())
	sb := stubSandbox{}
	cat := routingCatalog{}
	prov := provision.NewProvisioner(sb, cat, provision.Config{CacheEnabled: false})
	orch := orchestrator.NewOrchestrator(sb, cat, prov, runner.NewCaseRunner(sb), repo)
	return worker.NewPool(worker.Config{Size: 1, PollInterval: 5 * time.Millisecond}, q, orch, reg)
}

func waitForResult(t *testing.T, reg *syncRegistry, id string) model.JudgeResult {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if res, ok := reg.result(id); ok {
			return res
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for result of submission %s", id)
	return model.JudgeResult{}
}

func TestPoolContinuesAfterFailure(t *testing.T) {
	t.Parallel()
	reg := newSyncRegistry()
	q := queue.NewQueue(queue.DefaultConfig(), reg)

	bad := &queue.Item{SubmissionID: "1", ProblemID: "bad", Language: "cpp17", Source: []byte("x")}
	good := &queue.Item{SubmissionID: "2", ProblemID: "p1", Language: "cpp17", Source: []byte("y")}
	for _, it := range []*queue.Item{bad, good} {
		if err := q.Push(context.Background(), it); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := newTestPool(t, reg, q)
	pool.Start(ctx)

	if res := waitForResult(t, reg, "1"); res.Status != model.StatusError {
		t.Fatalf("expected error result for bad problem, got %+v", res)
	}
	if res := waitForResult(t, reg, "2"); res.Status != model.StatusDone {
		t.Fatalf("a failed submission must not block the next, got %+v", res)
	}

	cancel()
	pool.Wait()
}

func TestPoolRestoresSpilledSource(t *testing.T) {
	t.Parallel()
	reg := newSyncRegistry()
	if err := reg.SaveSource(context.Background(), "7", []byte("archived code")); err != nil {
		t.Fatalf("seed source failed: %v", err)
	}
	q := queue.NewQueue(queue.DefaultConfig(), reg)
	spilled := &queue.Item{SubmissionID: "7", ProblemID: "p1", Language: "cpp17", Spilled: true}
	if err := q.Push(context.Background(), spilled); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := newTestPool(t, reg, q)
	pool.Start(ctx)

	if res := waitForResult(t, reg, "7"); res.Status != model.StatusDone {
		t.Fatalf("spilled submission must judge after restore, got %+v", res)
	}

	cancel()
	pool.Wait()
}

func TestPoolFailsWhenArchivedSourceMissing(t *testing.T) {
	t.Parallel()
	reg := newSyncRegistry()
	q := queue.NewQueue(queue.DefaultConfig(), reg)
	lost := &queue.Item{SubmissionID: "8", ProblemID: "p1", Language: "cpp17", Spilled: true}
	if err := q.Push(context.Background(), lost); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := newTestPool(t, reg, q)
	pool.Start(ctx)

	if res := waitForResult(t, reg, "8"); res.Status != model.StatusError {
		t.Fatalf("expected error result for lost source, got %+v", res)
	}

	cancel()
	pool.Wait()
}
