// Package repository serves judge results: a redis fast path consumed
// destructively on terminal reads, backed by the durable registry.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/registry"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

const (
	progressKeyPrefix = "judge:progress:"
	finalKeyPrefix    = "judge:final:"
)

// ResultEventPublisher announces terminal results to downstream
// consumers.
type ResultEventPublisher interface {
	PublishFinal(ctx context.Context, res model.JudgeResult) error
}

// Config holds result repository settings.
type Config struct {
	// ProgressTTL bounds how long in-flight status markers live.
	ProgressTTL time.Duration `yaml:"progressTTL"`

	// FinalTTL bounds how long an unconsumed terminal result stays on
	// the fast path. The durable copy outlives it.
	FinalTTL time.Duration `yaml:"finalTTL"`
}

// DefaultConfig returns repository defaults.
func DefaultConfig() Config {
	return Config{
		ProgressTTL: 30 * time.Minute,
		FinalTTL:    24 * time.Hour,
	}
}

// ResultRepository coordinates the cache fast path, the durable registry
// and the optional event stream. Terminal results are written durably
// first; the fast path and event stream are best effort on top.
type ResultRepository struct {
	cache     cache.Cache
	reg       registry.Registry
	publisher ResultEventPublisher
	cfg       Config
}

// NewResultRepository creates a result repository. publisher may be nil.
func NewResultRepository(c cache.Cache, reg registry.Registry, publisher ResultEventPublisher, cfg Config) *ResultRepository {
	if cfg.ProgressTTL == 0 {
		cfg.ProgressTTL = 30 * time.Minute
	}
	if cfg.FinalTTL == 0 {
		cfg.FinalTTL = 24 * time.Hour
	}
	return &ResultRepository{cache: c, reg: reg, publisher: publisher, cfg: cfg}
}

// SaveProgress records a non-terminal lifecycle status on the fast path.
func (r *ResultRepository) SaveProgress(ctx context.Context, id string, status model.SubmissionStatus) error {
	if status.Terminal() {
		return appErr.Newf(appErr.JudgeSystemError, "terminal status %s must go through SaveFinal", status)
	}
	view := model.ResultView{SubmissionID: id, Status: status}
	raw, err := json.Marshal(view)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "encode progress for submission %s", id)
	}
	if err := r.cache.Set(ctx, progressKeyPrefix+id, string(raw), r.cfg.ProgressTTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store progress for submission %s", id)
	}
	return nil
}

// SaveFinal persists a terminal result. The durable write is the source
// of truth; fast-path and event failures are logged, not propagated.
func (r *ResultRepository) SaveFinal(ctx context.Context, res model.JudgeResult) error {
	if err := r.reg.SaveResult(ctx, res); err != nil {
		return err
	}

	view := model.ResultView{SubmissionID: res.SubmissionID, Status: res.Status, Result: &res}
	raw, err := json.Marshal(view)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "encode result for submission %s", res.SubmissionID)
	}
	if err := r.cache.Set(ctx, finalKeyPrefix+res.SubmissionID, string(raw), r.cfg.FinalTTL); err != nil {
		logger.Warnf(ctx, "fast path write for submission %s: %v", res.SubmissionID, err)
	}
	if err := r.cache.Del(ctx, progressKeyPrefix+res.SubmissionID); err != nil {
		logger.Warnf(ctx, "drop progress marker for submission %s: %v", res.SubmissionID, err)
	}

	if r.publisher != nil {
		if err := r.publisher.PublishFinal(ctx, res); err != nil {
			logger.Warnf(ctx, "publish final result for submission %s: %v", res.SubmissionID, err)
		}
	}
	return nil
}

// Get returns the current view of a submission. A terminal result on the
// fast path is consumed atomically on read; later reads fall through to
// the durable registry and remain idempotent.
func (r *ResultRepository) Get(ctx context.Context, id string) (model.ResultView, error) {
	if raw, err := r.cache.GetDel(ctx, finalKeyPrefix+id); err == nil {
		var view model.ResultView
		if uerr := json.Unmarshal([]byte(raw), &view); uerr == nil {
			return view, nil
		}
		logger.Warnf(ctx, "corrupt fast path entry for submission %s, falling back", id)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warnf(ctx, "fast path read for submission %s: %v", id, err)
	}

	if raw, err := r.cache.Get(ctx, progressKeyPrefix+id); err == nil {
		var view model.ResultView
		if uerr := json.Unmarshal([]byte(raw), &view); uerr == nil {
			return view, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warnf(ctx, "progress read for submission %s: %v", id, err)
	}

	res, err := r.reg.LoadResult(ctx, id)
	if err == nil {
		return model.ResultView{SubmissionID: id, Status: res.Status, Result: &res}, nil
	}
	if !appErr.Is(err, appErr.SubmissionNotFound) {
		return model.ResultView{}, err
	}

	// No terminal result and no fast-path marker. An admitted submission
	// whose progress marker expired or whose cache is unreachable is
	// still in flight; its durable metadata record answers for it.
	if _, merr := r.reg.LoadMeta(ctx, id); merr == nil {
		return model.ResultView{SubmissionID: id, Status: model.StatusQueued}, nil
	}
	return model.ResultView{}, err
}
