package model_test

import (
	"testing"

	"arbiter/internal/judge/model"
)

func TestTerminal(t *testing.T) {
	t.Parallel()
	if model.StatusQueued.Terminal() || model.StatusRunning.Terminal() {
		t.Fatalf("queued and running are not terminal")
	}
	if !model.StatusDone.Terminal() || !model.StatusError.Terminal() {
		t.Fatalf("done and error are terminal")
	}
}

func TestMergeLimits(t *testing.T) {
	t.Parallel()
	defaults := model.ResourceLimit{TimeLimitMs: 1000, MemoryLimitMB: 256, StackLimitMB: 64, ProcLimit: 1}

	merged := model.MergeLimits(model.ResourceLimit{}, defaults)
	if merged != defaults {
		t.Fatalf("empty override must keep defaults, got %+v", merged)
	}

	merged = model.MergeLimits(model.ResourceLimit{TimeLimitMs: 3000}, defaults)
	if merged.TimeLimitMs != 3000 || merged.MemoryLimitMB != 256 {
		t.Fatalf("partial override mismatch: %+v", merged)
	}
}

func TestVerifierSelection(t *testing.T) {
	t.Parallel()
	std := model.Problem{Mode: model.ModeStandard, CheckerRef: "chk.cc", InteractorRef: "inter.cc"}
	if std.VerifierKind() != model.VerifierChecker || std.VerifierRef() != "chk.cc" {
		t.Fatalf("standard mode must select the checker")
	}
	inter := model.Problem{Mode: model.ModeInteractive, CheckerRef: "chk.cc", InteractorRef: "inter.cc"}
	if inter.VerifierKind() != model.VerifierInteractor || inter.VerifierRef() != "inter.cc" {
		t.Fatalf("interactive mode must select the interactor")
	}
}
