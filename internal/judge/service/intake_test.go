package service_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"arbiter/internal/common/cache"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/service"
	appErr "arbiter/pkg/errors"
)

type fakeRegistry struct {
	registry.Registry

	nextID int64
	metas  []model.SubmissionMeta
}

func (r *fakeRegistry) NextSubmissionID(ctx context.Context) (string, error) {
	r.nextID++
	return strconv.FormatInt(r.nextID, 10), nil
}

func (r *fakeRegistry) SaveMeta(ctx context.Context, meta model.SubmissionMeta) error {
	r.metas = append(r.metas, meta)
	return nil
}

func (r *fakeRegistry) SaveSource(ctx context.Context, id string, code []byte) error {
	return nil
}

func newTestService(t *testing.T, cfg service.Config) (*service.IntakeService, *fakeRegistry, *queue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisCacheWithClient(client)
	t.Cleanup(func() { _ = c.Close() })

	reg := &fakeRegistry{}
	q := queue.NewQueue(queue.DefaultConfig(), reg)
	repo := repository.NewResultRepository(c, reg, nil, repository.DefaultConfig())
	return service.NewIntakeService(cfg, q, reg, repo), reg, q
}

func TestSubmitHappyPath(t *testing.T) {
	t.Parallel()
	svc, reg, q := newTestService(t, service.DefaultConfig())

	id, err := svc.Submit(context.Background(), "p1", "cpp17", []byte("int main(){}"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if id != "1" {
		t.Fatalf("expected id 1, got %s", id)
	}
	if len(reg.metas) != 1 || reg.metas[0].ProblemID != "p1" || reg.metas[0].Language != "cpp17" {
		t.Fatalf("metadata must be recorded on admission: %+v", reg.metas)
	}
	item := q.Pull()
	if item == nil || item.SubmissionID != "1" || string(item.Source) != "int main(){}" {
		t.Fatalf("unexpected queued item: %+v", item)
	}

	view, err := svc.GetResult(context.Background(), "1")
	if err != nil {
		t.Fatalf("get result failed: %v", err)
	}
	if view.Status != model.StatusQueued {
		t.Fatalf("expected queued status, got %s", view.Status)
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, service.DefaultConfig())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "", "cpp17", []byte("x")); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error for missing problem, got %v", err)
	}
	if _, err := svc.Submit(ctx, "p1", "", []byte("x")); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error for missing language, got %v", err)
	}
	if _, err := svc.Submit(ctx, "p1", "cpp17", nil); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error for empty source, got %v", err)
	}
}

func TestSubmitCodeTooLarge(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, service.Config{MaxCodeBytes: 8})
	_, err := svc.Submit(context.Background(), "p1", "cpp17", []byte("0123456789"))
	if !appErr.Is(err, appErr.CodeTooLarge) {
		t.Fatalf("expected code too large, got %v", err)
	}
}

func TestSubmitLanguageAllowlist(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, service.Config{Languages: []string{"cpp17", "python3"}})

	if _, err := svc.Submit(context.Background(), "p1", "cobol", []byte("x")); !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected unsupported language, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), "p1", "python3", []byte("print(7)")); err != nil {
		t.Fatalf("allowed language rejected: %v", err)
	}
}

func TestGetResultRequiresID(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, service.DefaultConfig())
	if _, err := svc.GetResult(context.Background(), ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
