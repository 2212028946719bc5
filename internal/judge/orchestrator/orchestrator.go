// Package orchestrator drives one submission through its judging
// lifecycle: queued, preparing, judging, finalizing, then done or error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arbiter/internal/judge/catalog"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/provision"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/runner"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/scoring"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/contextkey"
	"arbiter/pkg/utils/logger"
)

// Orchestrator judges submissions end to end. It never lets a failure
// escape: every path ends with exactly one terminal result, and sandbox
// resources are released unconditionally.
type Orchestrator struct {
	sandbox     sandbox.Client
	catalog     catalog.Catalog
	provisioner *provision.Provisioner
	runner      *runner.CaseRunner
	repo        *repository.ResultRepository
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(sb sandbox.Client, cat catalog.Catalog, prov *provision.Provisioner, run *runner.CaseRunner, repo *repository.ResultRepository) *Orchestrator {
	return &Orchestrator{
		sandbox:     sb,
		catalog:     cat,
		provisioner: prov,
		runner:      run,
		repo:        repo,
	}
}

// Judge processes one queued submission to a terminal state. It does not
// return an error; failures become terminal error results.
func (o *Orchestrator) Judge(ctx context.Context, item *queue.Item) {
	ctx = context.WithValue(ctx, contextkey.SubmissionID, item.SubmissionID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf(ctx, "judging panicked: %v", rec)
			o.fail(ctx, item.SubmissionID, fmt.Sprintf("internal judge fault: %v", rec))
		}
	}()

	if err := o.repo.SaveProgress(ctx, item.SubmissionID, model.StatusRunning); err != nil {
		logger.Warnf(ctx, "mark running: %v", err)
	}

	prob, err := o.catalog.LoadProblem(ctx, item.ProblemID)
	if err != nil {
		o.fail(ctx, item.SubmissionID, err.Error())
		return
	}

	// Reject unknown modes before any sandbox resources are allocated.
	switch prob.Mode {
	case model.ModeStandard, model.ModeInteractive:
	default:
		o.fail(ctx, item.SubmissionID,
			appErr.Newf(appErr.UnsupportedJudgeMode, "judging mode %q is not supported", prob.Mode).Error())
		return
	}

	prog, err := o.sandbox.PrepareProgram(ctx, sandbox.PrepareRequest{
		Language:  item.Language,
		EntryFile: prob.EntryFile,
		Code:      item.Source,
	})
	if err != nil {
		var pf *sandbox.PrepareFailure
		if errors.As(err, &pf) {
			o.fail(ctx, item.SubmissionID, "compilation failed: "+pf.Error())
		} else {
			o.fail(ctx, item.SubmissionID, err.Error())
		}
		return
	}
	defer o.releaseProgram(ctx, prog)

	verifier, err := o.provisioner.Provision(ctx, prob)
	if err != nil {
		o.fail(ctx, item.SubmissionID, err.Error())
		return
	}
	defer verifier.Release(ctx)

	outcomes := make([]model.CaseOutcome, 0, len(prob.Cases))
	for i, tc := range prob.Cases {
		input, err := o.catalog.ReadTestFile(ctx, prob.ID, tc.InputRef)
		if err != nil {
			o.fail(ctx, item.SubmissionID, err.Error())
			return
		}
		answer, err := o.catalog.ReadTestFile(ctx, prob.ID, tc.AnswerRef)
		if err != nil {
			o.fail(ctx, item.SubmissionID, err.Error())
			return
		}

		data := runner.CaseData{Input: input, Answer: answer, Limits: tc.Limits}
		var outcome model.CaseOutcome
		if prob.Mode == model.ModeInteractive {
			outcome, err = o.runner.RunInteractive(ctx, prog, verifier, data)
		} else {
			outcome, err = o.runner.RunStandard(ctx, prog, verifier, data)
		}
		if err != nil {
			o.fail(ctx, item.SubmissionID, err.Error())
			return
		}

		logger.Debugf(ctx, "case %d/%d: %s (ratio %.2f)", i+1, len(prob.Cases), outcome.Status, outcome.Ratio)
		outcomes = append(outcomes, outcome)
	}

	score, passed := scoring.Aggregate(outcomes)
	res := model.JudgeResult{
		SubmissionID: item.SubmissionID,
		Status:       model.StatusDone,
		Passed:       passed,
		Score:        score,
		Cases:        outcomes,
		FinishedAt:   time.Now().Unix(),
	}
	if err := o.repo.SaveFinal(ctx, res); err != nil {
		logger.Errorf(ctx, "persist result: %v", err)
		return
	}
	logger.Infof(ctx, "judged submission %s: score %d, passed %t", item.SubmissionID, score, passed)
}

// releaseProgram frees the contestant program's cached files.
func (o *Orchestrator) releaseProgram(ctx context.Context, prog sandbox.RunSpec) {
	for _, fileID := range prog.Files {
		if err := o.sandbox.DeleteFile(ctx, fileID); err != nil {
			logger.Warnf(ctx, "release program file %s: %v", fileID, err)
		}
	}
}

// Fail records a terminal error result without judging. Used when a
// submission cannot even reach the state machine.
func (o *Orchestrator) Fail(ctx context.Context, id, description string) {
	o.fail(ctx, id, description)
}

// fail records a terminal error result.
func (o *Orchestrator) fail(ctx context.Context, id, description string) {
	res := model.JudgeResult{
		SubmissionID: id,
		Status:       model.StatusError,
		Error:        description,
		FinishedAt:   time.Now().Unix(),
	}
	if err := o.repo.SaveFinal(ctx, res); err != nil {
		logger.Errorf(ctx, "persist error result: %v", err)
	}
}
