// Package provision prepares checker and interactor programs in the
// execution service and hands out release-once handles for them.
package provision

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/shlex"

	"arbiter/internal/judge/catalog"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/sandbox"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// Config holds provisioner settings.
type Config struct {
	// CompileLanguage is the execution service language used to build
	// verifier sources.
	CompileLanguage string `yaml:"compileLanguage"`

	// RunTemplate is the verifier invocation command. The {bin} token is
	// replaced with the staged binary path.
	RunTemplate string `yaml:"runTemplate"`

	// CacheEnabled keeps one prepared verifier per (problem, kind) for
	// reuse across submissions.
	CacheEnabled bool `yaml:"cacheEnabled"`
}

// DefaultConfig returns provisioner defaults.
func DefaultConfig() Config {
	return Config{
		CompileLanguage: "cpp17",
		RunTemplate:     "{bin}",
		CacheEnabled:    true,
	}
}

// Handle is a provisioned verifier. Release is idempotent and must be
// called when the judging run is over, on every path.
type Handle struct {
	Kind model.VerifierKind
	Spec sandbox.RunSpec

	release func(ctx context.Context)
	once    sync.Once
}

// Release frees the sandbox resources behind the handle. Safe to call
// more than once; only the first call has effect.
func (h *Handle) Release(ctx context.Context) {
	h.once.Do(func() {
		if h.release != nil {
			h.release(ctx)
		}
	})
}

type cacheKey struct {
	problemID string
	kind      model.VerifierKind
}

// Provisioner builds verifier handles, preferring precompiled binaries
// shipped with the problem over compiling from source.
type Provisioner struct {
	sandbox sandbox.Client
	catalog catalog.Catalog
	cfg     Config

	mu    sync.Mutex
	cache map[cacheKey]*Handle
}

// NewProvisioner creates a provisioner.
func NewProvisioner(sb sandbox.Client, cat catalog.Catalog, cfg Config) *Provisioner {
	if cfg.CompileLanguage == "" {
		cfg.CompileLanguage = "cpp17"
	}
	if cfg.RunTemplate == "" {
		cfg.RunTemplate = "{bin}"
	}
	return &Provisioner{
		sandbox: sb,
		catalog: cat,
		cfg:     cfg,
		cache:   make(map[cacheKey]*Handle),
	}
}

// Provision returns a ready verifier handle for the problem's judging
// mode. Cached handles are shared; their Release is a no-op because the
// cache owns the underlying files.
func (p *Provisioner) Provision(ctx context.Context, prob model.Problem) (*Handle, error) {
	kind := prob.VerifierKind()
	key := cacheKey{problemID: prob.ID, kind: kind}

	if p.cfg.CacheEnabled {
		p.mu.Lock()
		if h, ok := p.cache[key]; ok {
			p.mu.Unlock()
			return h, nil
		}
		p.mu.Unlock()
	}

	h, err := p.build(ctx, prob, kind)
	if err != nil {
		return nil, err
	}

	if p.cfg.CacheEnabled {
		p.mu.Lock()
		if existing, ok := p.cache[key]; ok {
			p.mu.Unlock()
			// Lost the race; drop ours and share the winner.
			h.releaseNow(ctx)
			return existing, nil
		}
		// Cached handles carry no release func; the cache owns the files
		// until Shutdown.
		shared := &Handle{Kind: h.Kind, Spec: h.Spec}
		p.cache[key] = shared
		p.mu.Unlock()
		logger.Debugf(ctx, "cached verifier %s for problem %s", kind, prob.ID)
		return shared, nil
	}
	return h, nil
}

func (p *Provisioner) build(ctx context.Context, prob model.Problem, kind model.VerifierKind) (*Handle, error) {
	binName := string(kind)

	if path, ok := p.catalog.VerifierBinary(ctx, prob.ID, kind); ok {
		fileID, err := p.sandbox.CopyInBin(ctx, path)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.SandboxError, "stage %s binary for problem %s", kind, prob.ID)
		}
		args, err := p.expandTemplate(binName)
		if err != nil {
			return nil, err
		}
		spec := sandbox.RunSpec{
			Args:  args,
			Files: map[string]string{binName: fileID},
		}
		return p.newHandle(kind, spec), nil
	}

	ref := prob.VerifierRef()
	if ref == "" {
		return nil, appErr.Newf(appErr.TestDataError, "problem %s declares no %s", prob.ID, kind)
	}
	src, err := p.catalog.ReadVerifierSource(ctx, prob.ID, ref)
	if err != nil {
		return nil, err
	}
	spec, err := p.sandbox.PrepareProgram(ctx, sandbox.PrepareRequest{
		Language:  p.cfg.CompileLanguage,
		EntryFile: binName + ".cpp",
		Code:      src,
	})
	if err != nil {
		var pf *sandbox.PrepareFailure
		if errors.As(err, &pf) {
			return nil, appErr.Newf(appErr.VerifierCompileError,
				"compile %s for problem %s: %s", kind, prob.ID, pf.Error())
		}
		return nil, appErr.Wrapf(err, appErr.SandboxError, "prepare %s for problem %s", kind, prob.ID)
	}
	return p.newHandle(kind, spec), nil
}

func (p *Provisioner) newHandle(kind model.VerifierKind, spec sandbox.RunSpec) *Handle {
	h := &Handle{Kind: kind, Spec: spec}
	h.release = func(ctx context.Context) {
		for _, fileID := range fileIDsOf(spec) {
			if err := p.sandbox.DeleteFile(ctx, fileID); err != nil {
				logger.Warnf(ctx, "release verifier file %s: %v", fileID, err)
			}
		}
	}
	return h
}

// releaseNow frees the handle's files immediately, bypassing the once
// guard. Used only for handles discarded before they are handed out.
func (h *Handle) releaseNow(ctx context.Context) {
	if h.release != nil {
		h.release(ctx)
	}
}

func fileIDsOf(spec sandbox.RunSpec) []string {
	ids := make([]string, 0, len(spec.Files))
	for _, id := range spec.Files {
		ids = append(ids, id)
	}
	return ids
}

func (p *Provisioner) expandTemplate(binName string) ([]string, error) {
	cmd := strings.ReplaceAll(p.cfg.RunTemplate, "{bin}", "./"+binName)
	args, err := shlex.Split(cmd)
	if err != nil || len(args) == 0 {
		return nil, appErr.Newf(appErr.JudgeSystemError, "invalid verifier run template %q", p.cfg.RunTemplate)
	}
	return args, nil
}

// Shutdown releases all cached verifier handles.
func (p *Provisioner) Shutdown(ctx context.Context) {
	p.mu.Lock()
	handles := p.cache
	p.cache = make(map[cacheKey]*Handle)
	p.mu.Unlock()

	for key, h := range handles {
		for _, fileID := range fileIDsOf(h.Spec) {
			if err := p.sandbox.DeleteFile(ctx, fileID); err != nil {
				logger.Warnf(ctx, "release cached verifier %s/%s file %s: %v",
					key.problemID, key.kind, fileID, err)
			}
		}
	}
}
