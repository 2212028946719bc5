package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"arbiter/internal/judge/catalog"
	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
)

const descriptorJSON = `{
	"mode": "standard",
	"timeLimitMs": 1000,
	"memoryLimitMB": 256,
	"checker": "chk.cc",
	"cases": [
		{"input": "tests/1.in", "answer": "tests/1.ans"},
		{"input": "tests/2.in", "answer": "tests/2.ans", "timeLimitMs": 3000}
	]
}`

func writeProblem(t *testing.T, root, id string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(filepath.Join(dir, "tests"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	files := map[string]string{
		"problem.json": descriptorJSON,
		"chk.cc":       "// checker source",
		"tests/1.in":   "3 4\n",
		"tests/1.ans":  "7\n",
		"tests/2.in":   "5 6\n",
		"tests/2.ans":  "11\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s failed: %v", name, err)
		}
	}
}

func newTestCatalog(t *testing.T) (*catalog.LocalCatalog, string) {
	t.Helper()
	root := t.TempDir()
	writeProblem(t, root, "133")
	cat, err := catalog.NewLocalCatalog(root)
	if err != nil {
		t.Fatalf("create catalog failed: %v", err)
	}
	return cat, root
}

func TestLoadProblemResolvesLimits(t *testing.T) {
	t.Parallel()
	cat, _ := newTestCatalog(t)

	prob, err := cat.LoadProblem(context.Background(), "133")
	if err != nil {
		t.Fatalf("load problem failed: %v", err)
	}
	if prob.Mode != model.ModeStandard || len(prob.Cases) != 2 {
		t.Fatalf("unexpected problem: %+v", prob)
	}
	if prob.Cases[0].Limits.TimeLimitMs != 1000 {
		t.Fatalf("first case must inherit the problem default, got %d", prob.Cases[0].Limits.TimeLimitMs)
	}
	if prob.Cases[1].Limits.TimeLimitMs != 3000 {
		t.Fatalf("second case must keep its override, got %d", prob.Cases[1].Limits.TimeLimitMs)
	}
	if prob.Cases[1].Limits.MemoryLimitMB != 256 {
		t.Fatalf("unset override fields fall back to defaults, got %d", prob.Cases[1].Limits.MemoryLimitMB)
	}
	if prob.VerifierKind() != model.VerifierChecker || prob.VerifierRef() != "chk.cc" {
		t.Fatalf("unexpected verifier: %s %s", prob.VerifierKind(), prob.VerifierRef())
	}
}

func TestLoadProblemNotFound(t *testing.T) {
	t.Parallel()
	cat, _ := newTestCatalog(t)
	_, err := cat.LoadProblem(context.Background(), "999")
	if !appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("expected problem not found, got %v", err)
	}
}

func TestReadTestFile(t *testing.T) {
	t.Parallel()
	cat, _ := newTestCatalog(t)
	data, err := cat.ReadTestFile(context.Background(), "133", "tests/1.in")
	if err != nil {
		t.Fatalf("read test file failed: %v", err)
	}
	if string(data) != "3 4\n" {
		t.Fatalf("unexpected content: %q", data)
	}

	_, err = cat.ReadTestFile(context.Background(), "133", "tests/9.in")
	if !appErr.Is(err, appErr.TestDataError) {
		t.Fatalf("expected test data error, got %v", err)
	}
}

func TestReadTestFileRejectsTraversal(t *testing.T) {
	t.Parallel()
	cat, root := newTestCatalog(t)
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write secret failed: %v", err)
	}

	for _, ref := range []string{"../secret.txt", "/etc/passwd", "tests/../../secret.txt"} {
		if _, err := cat.ReadTestFile(context.Background(), "133", ref); err == nil {
			t.Fatalf("expected rejection for %q", ref)
		}
	}
}

func TestVerifierBinary(t *testing.T) {
	t.Parallel()
	cat, root := newTestCatalog(t)

	if _, ok := cat.VerifierBinary(context.Background(), "133", model.VerifierChecker); ok {
		t.Fatalf("no binary shipped, expected miss")
	}

	bin := filepath.Join(root, "133", "checker")
	if err := os.WriteFile(bin, []byte{0x7f, 'E', 'L', 'F'}, 0755); err != nil {
		t.Fatalf("write binary failed: %v", err)
	}
	path, ok := cat.VerifierBinary(context.Background(), "133", model.VerifierChecker)
	if !ok || path != bin {
		t.Fatalf("expected binary at %s, got %s %t", bin, path, ok)
	}
}

func TestLoadProblemInvalidCase(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	dir := filepath.Join(root, "p")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	bad := `{"mode": "standard", "cases": [{"input": "a.in"}]}`
	if err := os.WriteFile(filepath.Join(dir, "problem.json"), []byte(bad), 0644); err != nil {
		t.Fatalf("write descriptor failed: %v", err)
	}
	cat, err := catalog.NewLocalCatalog(root)
	if err != nil {
		t.Fatalf("create catalog failed: %v", err)
	}
	if _, err := cat.LoadProblem(context.Background(), "p"); !appErr.Is(err, appErr.TestDataError) {
		t.Fatalf("expected test data error, got %v", err)
	}
}
