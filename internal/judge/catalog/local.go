package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
)

const descriptorFile = "problem.json"

// LocalCatalog reads problems from a directory tree. Each problem lives
// under <root>/<problemID>/ with a problem.json descriptor next to its
// test data and verifier files.
type LocalCatalog struct {
	root string
}

// NewLocalCatalog creates a catalog rooted at dir.
func NewLocalCatalog(dir string) (*LocalCatalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ProblemNotFound, "catalog root %s", dir)
	}
	if !info.IsDir() {
		return nil, appErr.Newf(appErr.ProblemNotFound, "catalog root %s is not a directory", dir)
	}
	return &LocalCatalog{root: dir}, nil
}

type descriptorCase struct {
	Input         string `json:"input"`
	Answer        string `json:"answer"`
	TimeLimitMs   int64  `json:"timeLimitMs"`
	MemoryLimitMB int64  `json:"memoryLimitMB"`
}

type descriptor struct {
	Mode          string           `json:"mode"`
	TimeLimitMs   int64            `json:"timeLimitMs"`
	MemoryLimitMB int64            `json:"memoryLimitMB"`
	StackLimitMB  int64            `json:"stackLimitMB"`
	ProcLimit     int              `json:"procLimit"`
	EntryFile     string           `json:"entryFile"`
	Checker       string           `json:"checker"`
	Interactor    string           `json:"interactor"`
	Cases         []descriptorCase `json:"cases"`
}

// LoadProblem reads and validates a problem descriptor.
func (c *LocalCatalog) LoadProblem(ctx context.Context, problemID string) (model.Problem, error) {
	path, err := c.safeJoin(problemID, descriptorFile)
	if err != nil {
		return model.Problem{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Problem{}, appErr.Newf(appErr.ProblemNotFound, "problem %s not found", problemID)
		}
		return model.Problem{}, appErr.Wrapf(err, appErr.TestDataError, "read descriptor for problem %s", problemID)
	}

	var desc descriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return model.Problem{}, appErr.Wrapf(err, appErr.TestDataError, "parse descriptor for problem %s", problemID)
	}

	mode := model.JudgingMode(desc.Mode)
	if mode == "" {
		mode = model.ModeStandard
	}

	defaults := model.ResourceLimit{
		TimeLimitMs:   desc.TimeLimitMs,
		MemoryLimitMB: desc.MemoryLimitMB,
		StackLimitMB:  desc.StackLimitMB,
		ProcLimit:     desc.ProcLimit,
	}
	if defaults.TimeLimitMs <= 0 {
		defaults.TimeLimitMs = 1000
	}
	if defaults.MemoryLimitMB <= 0 {
		defaults.MemoryLimitMB = 256
	}

	prob := model.Problem{
		ID:            problemID,
		Mode:          mode,
		CheckerRef:    desc.Checker,
		InteractorRef: desc.Interactor,
		Limits:        defaults,
		EntryFile:     desc.EntryFile,
	}
	for i, dc := range desc.Cases {
		if dc.Input == "" || dc.Answer == "" {
			return model.Problem{}, appErr.Newf(appErr.TestDataError,
				"problem %s: case %d is missing input or answer", problemID, i+1)
		}
		override := model.ResourceLimit{
			TimeLimitMs:   dc.TimeLimitMs,
			MemoryLimitMB: dc.MemoryLimitMB,
		}
		prob.Cases = append(prob.Cases, model.TestCase{
			InputRef:  dc.Input,
			AnswerRef: dc.Answer,
			Limits:    model.MergeLimits(override, defaults),
		})
	}
	return prob, nil
}

// ReadTestFile reads a test data file referenced by the descriptor.
func (c *LocalCatalog) ReadTestFile(ctx context.Context, problemID, ref string) ([]byte, error) {
	return c.readFile(problemID, ref)
}

// ReadVerifierSource reads a checker or interactor source file.
func (c *LocalCatalog) ReadVerifierSource(ctx context.Context, problemID, ref string) ([]byte, error) {
	return c.readFile(problemID, ref)
}

// VerifierBinary reports whether a precompiled verifier binary is shipped
// with the problem, named after its kind.
func (c *LocalCatalog) VerifierBinary(ctx context.Context, problemID string, kind model.VerifierKind) (string, bool) {
	path, err := c.safeJoin(problemID, string(kind))
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func (c *LocalCatalog) readFile(problemID, ref string) ([]byte, error) {
	path, err := c.safeJoin(problemID, ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.Newf(appErr.TestDataError, "problem %s: file %s not found", problemID, ref)
		}
		return nil, appErr.Wrapf(err, appErr.TestDataError, "problem %s: read %s", problemID, ref)
	}
	return data, nil
}

// safeJoin resolves a reference and rejects anything that would escape
// the problem's own directory.
func (c *LocalCatalog) safeJoin(problemID string, parts ...string) (string, error) {
	if problemID == "" || filepath.IsAbs(problemID) || strings.ContainsAny(problemID, `/\`) {
		return "", appErr.Newf(appErr.TestDataError, "invalid problem id %q", problemID)
	}
	for _, p := range parts {
		if p == "" || filepath.IsAbs(p) {
			return "", appErr.Newf(appErr.TestDataError, "invalid catalog reference %q", p)
		}
	}
	rel := filepath.Clean(filepath.Join(parts...))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", appErr.Newf(appErr.TestDataError, "catalog reference escapes problem %s: %v", problemID, parts)
	}
	return filepath.Join(c.root, problemID, rel), nil
}
