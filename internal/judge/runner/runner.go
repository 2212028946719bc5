// Package runner executes one test case against a prepared contestant
// program and classifies the outcome.
package runner

import (
	"context"
	"fmt"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/provision"
	"arbiter/internal/judge/sandbox"
)

const (
	// Collection bounds for contestant output.
	stdoutLimitBytes = 128 << 20
	stderrLimitBytes = 64 << 20

	// Staged file names shared with testlib-style verifiers.
	inputFile  = "input.txt"
	outputFile = "output.txt"
	answerFile = "answer.txt"

	// Interactors run under scaled contestant limits so a stalled
	// contestant is charged for the timeout, not the interactor.
	interactorLimitFactor = 4
)

// Checker runs are bounded independently of the case limits.
var checkerLimits = sandbox.Limits{
	CPUTimeMs:  10_000,
	WallTimeMs: 20_000,
	MemoryMB:   256,
}

// CaseData is one test case's payload with fully resolved limits.
type CaseData struct {
	Input  []byte
	Answer []byte
	Limits model.ResourceLimit
}

// CaseRunner evaluates single test cases. A transport or service fault
// surfaces as an error; everything the contestant or verifier did wrong
// is expressed in the returned outcome.
type CaseRunner struct {
	sandbox sandbox.Client
}

// NewCaseRunner creates a case runner.
func NewCaseRunner(sb sandbox.Client) *CaseRunner {
	return &CaseRunner{sandbox: sb}
}

func caseLimits(l model.ResourceLimit) sandbox.Limits {
	return sandbox.Limits{
		CPUTimeMs:  l.TimeLimitMs,
		WallTimeMs: 2 * l.TimeLimitMs,
		MemoryMB:   l.MemoryLimitMB,
		StackMB:    l.StackLimitMB,
		Procs:      l.ProcLimit,
	}
}

// violationOutcome renders a sandbox-classified failure, with the signal
// number when one is available.
func violationOutcome(res sandbox.ExecResult) model.CaseOutcome {
	status := res.Status.String()
	msg := ""
	if res.Signal > 0 {
		msg = fmt.Sprintf("killed by signal %d", res.Signal)
	} else if res.Status == sandbox.StatusNonzeroExit {
		msg = fmt.Sprintf("exit code %d", res.ExitCode)
	}
	return model.CaseOutcome{
		OK:       false,
		Status:   status,
		TimeMs:   res.TimeMs,
		MemoryKB: res.MemoryKB,
		Ratio:    0,
		Message:  msg,
	}
}

// verdictOutcome renders a clean verifier decision given the parsed ratio.
func verdictOutcome(res sandbox.ExecResult, ratio float64, report []byte) model.CaseOutcome {
	status := model.CaseStatusWrongAnswer
	if ratio == 1.0 {
		status = model.CaseStatusCorrect
	}
	return model.CaseOutcome{
		OK:       ratio == 1.0,
		Status:   status,
		TimeMs:   res.TimeMs,
		MemoryKB: res.MemoryKB,
		Ratio:    ratio,
		Message:  reportLine(report),
	}
}

// rejectionOutcome renders a nonzero verifier exit. A parsed ratio still
// grants partial credit, but a rejection never counts as accepted even
// when the reported ratio is full.
func rejectionOutcome(res sandbox.ExecResult, ratio float64, report []byte) model.CaseOutcome {
	return model.CaseOutcome{
		OK:       false,
		Status:   model.CaseStatusWrongAnswer,
		TimeMs:   res.TimeMs,
		MemoryKB: res.MemoryKB,
		Ratio:    ratio,
		Message:  reportLine(report),
	}
}

// verifierFaultOutcome renders a verifier crash or resource violation.
// The verdict is lost, so the case fails with zero credit and the
// contestant's measured usage.
func verifierFaultOutcome(run, verifier sandbox.ExecResult, name string) model.CaseOutcome {
	return model.CaseOutcome{
		OK:       false,
		Status:   model.CaseStatusWrongAnswer,
		TimeMs:   run.TimeMs,
		MemoryKB: run.MemoryKB,
		Ratio:    0,
		Message:  fmt.Sprintf("%s fault: %s", name, verifier.Status),
	}
}

// RunStandard executes the contestant against the case input, then runs
// the checker over (input, output, answer).
func (r *CaseRunner) RunStandard(ctx context.Context, prog sandbox.RunSpec, verifier *provision.Handle, data CaseData) (model.CaseOutcome, error) {
	run, err := r.sandbox.RunOne(ctx, sandbox.ExecSpec{
		Spec:        prog,
		Stdin:       data.Input,
		Limits:      caseLimits(data.Limits),
		StdoutLimit: stdoutLimitBytes,
		StderrLimit: stderrLimitBytes,
	})
	if err != nil {
		return model.CaseOutcome{}, err
	}
	if !run.Status.Clean() {
		return violationOutcome(run), nil
	}

	chk, err := r.sandbox.RunOne(ctx, sandbox.ExecSpec{
		Spec:      verifier.Spec,
		ExtraArgs: []string{inputFile, outputFile, answerFile},
		CopyIn: map[string][]byte{
			inputFile:  data.Input,
			outputFile: run.Stdout,
			answerFile: data.Answer,
		},
		Limits:      checkerLimits,
		StderrLimit: stderrLimitBytes,
	})
	if err != nil {
		return model.CaseOutcome{}, err
	}

	// The checker communicates its verdict through the exit code and an
	// optional ratio tag on stderr. A checker that crashes or blows its
	// own limits produced no verdict; the case fails and names the fault.
	switch chk.Status {
	case sandbox.StatusAccepted, sandbox.StatusNonzeroExit:
	default:
		return verifierFaultOutcome(run, chk, "checker"), nil
	}

	if chk.Status.Clean() && chk.ExitCode == 0 {
		ratio, tagged := ParseRatio(chk.Stderr)
		if !tagged {
			ratio = 1.0
		}
		return verdictOutcome(run, ratio, chk.Stderr), nil
	}

	// Nonzero checker exit is a rejection, possibly with partial credit.
	ratio, _ := ParseRatio(chk.Stderr)
	return rejectionOutcome(run, ratio, chk.Stderr), nil
}
