package runner

import (
	"context"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/provision"
	"arbiter/internal/judge/sandbox"
)

// RunInteractive executes the contestant and the interactor as a
// cross-wired pair: contestant stdout feeds interactor stdin and vice
// versa. The interactor reads the case input and answer from staged
// files and reports on stderr.
func (r *CaseRunner) RunInteractive(ctx context.Context, prog sandbox.RunSpec, verifier *provision.Handle, data CaseData) (model.CaseOutcome, error) {
	limits := caseLimits(data.Limits)
	interactorLimits := sandbox.Limits{
		CPUTimeMs:  limits.CPUTimeMs * interactorLimitFactor,
		WallTimeMs: limits.WallTimeMs * interactorLimitFactor,
		MemoryMB:   limits.MemoryMB * interactorLimitFactor,
	}

	specs := [2]sandbox.ExecSpec{
		{
			Spec:        prog,
			Limits:      limits,
			StderrLimit: stderrLimitBytes,
		},
		{
			Spec:      verifier.Spec,
			ExtraArgs: []string{inputFile, outputFile, answerFile},
			CopyIn: map[string][]byte{
				inputFile:  data.Input,
				answerFile: data.Answer,
			},
			Limits:      interactorLimits,
			StderrLimit: stderrLimitBytes,
		},
	}
	pipes := []sandbox.PipeMap{
		{OutIndex: 0, OutFd: 1, InIndex: 1, InFd: 0},
		{OutIndex: 1, OutFd: 1, InIndex: 0, InFd: 0},
	}

	results, err := r.sandbox.RunPair(ctx, specs, pipes)
	if err != nil {
		return model.CaseOutcome{}, err
	}
	contestant, interactor := results[0], results[1]

	// Classification priority: a contestant violation wins over anything
	// the interactor did; a fully clean pair is a verdict; a nonzero
	// interactor exit is a rejection; an interactor crash or resource
	// violation is still charged as a failed case.
	switch {
	case !contestant.Status.Clean():
		return violationOutcome(contestant), nil

	case interactor.Status.Clean() && interactor.ExitCode == 0:
		ratio, tagged := ParseRatio(interactor.Stderr)
		if !tagged {
			ratio = 1.0
		}
		return verdictOutcome(contestant, ratio, interactor.Stderr), nil

	case interactor.Status == sandbox.StatusNonzeroExit || interactor.Status.Clean():
		ratio, _ := ParseRatio(interactor.Stderr)
		return rejectionOutcome(contestant, ratio, interactor.Stderr), nil

	default:
		out := violationOutcome(interactor)
		out.TimeMs = contestant.TimeMs
		out.MemoryKB = contestant.MemoryKB
		if out.Message == "" {
			out.Message = "interactor fault"
		} else {
			out.Message = "interactor: " + out.Message
		}
		return out, nil
	}
}
