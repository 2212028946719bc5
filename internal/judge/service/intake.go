// Package service implements the submission intake: validation, id
// allocation, durable admission and enqueueing.
package service

import (
	"context"
	"time"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	"arbiter/internal/judge/repository"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// Config holds intake settings.
type Config struct {
	// MaxCodeBytes bounds accepted source size.
	MaxCodeBytes int `yaml:"maxCodeBytes"`

	// Languages lists the accepted language identifiers. Empty means
	// accept anything and let the execution service decide.
	Languages []string `yaml:"languages"`
}

// DefaultConfig returns intake defaults.
func DefaultConfig() Config {
	return Config{
		MaxCodeBytes: 256 << 10,
	}
}

// IntakeService admits submissions and serves result lookups.
type IntakeService struct {
	cfg   Config
	queue *queue.Queue
	reg   registry.Registry
	repo  *repository.ResultRepository

	languages map[string]bool
}

// NewIntakeService creates an intake service.
func NewIntakeService(cfg Config, q *queue.Queue, reg registry.Registry, repo *repository.ResultRepository) *IntakeService {
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = 256 << 10
	}
	langs := make(map[string]bool, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langs[l] = true
	}
	return &IntakeService{cfg: cfg, queue: q, reg: reg, repo: repo, languages: langs}
}

// Submit validates and admits a submission, returning its id. The
// metadata record and the queued status marker are written before the
// item becomes visible to workers.
func (s *IntakeService) Submit(ctx context.Context, problemID, language string, code []byte) (string, error) {
	if problemID == "" {
		return "", appErr.ValidationError("problem_id", "required")
	}
	if language == "" {
		return "", appErr.ValidationError("language", "required")
	}
	if len(code) == 0 {
		return "", appErr.ValidationError("source_code", "required")
	}
	if len(code) > s.cfg.MaxCodeBytes {
		return "", appErr.Newf(appErr.CodeTooLarge, "source exceeds %d bytes", s.cfg.MaxCodeBytes)
	}
	if len(s.languages) > 0 && !s.languages[language] {
		return "", appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", language)
	}

	id, err := s.reg.NextSubmissionID(ctx)
	if err != nil {
		return "", err
	}
	meta := model.SubmissionMeta{
		SubmissionID: id,
		ProblemID:    problemID,
		Language:     language,
		CreatedAt:    time.Now().Unix(),
	}
	if err := s.reg.SaveMeta(ctx, meta); err != nil {
		return "", err
	}
	if err := s.repo.SaveProgress(ctx, id, model.StatusQueued); err != nil {
		logger.Warnf(ctx, "mark queued for submission %s: %v", id, err)
	}

	item := &queue.Item{
		SubmissionID: id,
		ProblemID:    problemID,
		Language:     language,
		Source:       code,
	}
	if err := s.queue.Push(ctx, item); err != nil {
		return "", err
	}
	logger.Infof(ctx, "admitted submission %s for problem %s (%s, %d bytes)", id, problemID, language, len(code))
	return id, nil
}

// GetResult returns the current view of a submission.
func (s *IntakeService) GetResult(ctx context.Context, id string) (model.ResultView, error) {
	if id == "" {
		return model.ResultView{}, appErr.ValidationError("submission_id", "required")
	}
	return s.repo.Get(ctx, id)
}
