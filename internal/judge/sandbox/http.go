package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appErr "arbiter/pkg/errors"
)

// HTTPConfig configures the REST client for the execution service.
type HTTPConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultHTTPConfig returns sane defaults for a local execution service.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL: "http://127.0.0.1:5050",
		Timeout: 300 * time.Second,
	}
}

// HTTPClient talks to the execution service over its REST API.
type HTTPClient struct {
	base string
	hc   *http.Client
}

// NewHTTPClient creates a client for the execution service.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &HTTPClient{
		base: base,
		hc:   &http.Client{Timeout: timeout},
	}
}

type prepareRequestBody struct {
	Language  string `json:"language"`
	EntryFile string `json:"entryFile,omitempty"`
	Code      []byte `json:"code"`
}

type prepareResponseBody struct {
	Args  []string          `json:"args"`
	Env   []string          `json:"env"`
	Files map[string]string `json:"files"`
	Error string            `json:"error"`
	Log   string            `json:"log"`
}

type cmdBody struct {
	Args        []string          `json:"args"`
	Env         []string          `json:"env,omitempty"`
	Stdin       []byte            `json:"stdin,omitempty"`
	CopyIn      map[string][]byte `json:"copyIn,omitempty"`
	Files       map[string]string `json:"files,omitempty"`
	CPULimitMs  int64             `json:"cpuLimitMs"`
	WallLimitMs int64             `json:"wallLimitMs"`
	MemoryMB    int64             `json:"memoryMB"`
	StackMB     int64             `json:"stackMB,omitempty"`
	ProcLimit   int               `json:"procLimit,omitempty"`
	StdoutMax   int64             `json:"stdoutMax,omitempty"`
	StderrMax   int64             `json:"stderrMax,omitempty"`
}

type runRequestBody struct {
	Cmds        []cmdBody     `json:"cmds"`
	PipeMapping []pipeMapBody `json:"pipeMapping,omitempty"`
}

type pipeMapBody struct {
	OutIndex int `json:"outIndex"`
	OutFd    int `json:"outFd"`
	InIndex  int `json:"inIndex"`
	InFd     int `json:"inFd"`
}

type execResultBody struct {
	Status   string `json:"status"`
	ExitCode int    `json:"exitStatus"`
	Signal   int    `json:"signal"`
	TimeMs   int64  `json:"timeMs"`
	MemoryKB int64  `json:"memoryKB"`
	Stdout   []byte `json:"stdout"`
	Stderr   []byte `json:"stderr"`
}

func execSpecToCmd(spec ExecSpec) cmdBody {
	args := spec.Spec.Args
	if len(spec.ExtraArgs) > 0 {
		args = append(append([]string{}, spec.Spec.Args...), spec.ExtraArgs...)
	}
	return cmdBody{
		Args:        args,
		Env:         spec.Spec.Env,
		Stdin:       spec.Stdin,
		CopyIn:      spec.CopyIn,
		Files:       spec.Spec.Files,
		CPULimitMs:  spec.Limits.CPUTimeMs,
		WallLimitMs: spec.Limits.WallTimeMs,
		MemoryMB:    spec.Limits.MemoryMB,
		StackMB:     spec.Limits.StackMB,
		ProcLimit:   spec.Limits.Procs,
		StdoutMax:   spec.StdoutLimit,
		StderrMax:   spec.StderrLimit,
	}
}

func resultFromBody(body execResultBody) ExecResult {
	return ExecResult{
		Status:   ParseStatus(body.Status),
		ExitCode: body.ExitCode,
		Signal:   body.Signal,
		TimeMs:   body.TimeMs,
		MemoryKB: body.MemoryKB,
		Stdout:   body.Stdout,
		Stderr:   body.Stderr,
	}
}

// PrepareProgram compiles or stages code in the execution service.
func (c *HTTPClient) PrepareProgram(ctx context.Context, req PrepareRequest) (RunSpec, error) {
	var resp prepareResponseBody
	status, err := c.postJSON(ctx, "/compile", prepareRequestBody{
		Language:  req.Language,
		EntryFile: req.EntryFile,
		Code:      req.Code,
	}, &resp)
	if err != nil {
		return RunSpec{}, err
	}
	if status == http.StatusBadRequest {
		return RunSpec{}, &PrepareFailure{Message: resp.Error, Log: resp.Log}
	}
	if status != http.StatusOK {
		return RunSpec{}, appErr.Newf(appErr.SandboxError, "compile: unexpected status %d", status)
	}
	return RunSpec{Args: resp.Args, Env: resp.Env, Files: resp.Files}, nil
}

// RunOne executes a single process.
func (c *HTTPClient) RunOne(ctx context.Context, spec ExecSpec) (ExecResult, error) {
	results, err := c.run(ctx, []cmdBody{execSpecToCmd(spec)}, nil)
	if err != nil {
		return ExecResult{}, err
	}
	if len(results) != 1 {
		return ExecResult{}, appErr.Newf(appErr.SandboxError, "run: expected 1 result, got %d", len(results))
	}
	return resultFromBody(results[0]), nil
}

// RunPair executes two processes concurrently with the given pipe wiring.
func (c *HTTPClient) RunPair(ctx context.Context, specs [2]ExecSpec, pipes []PipeMap) ([2]ExecResult, error) {
	cmds := []cmdBody{execSpecToCmd(specs[0]), execSpecToCmd(specs[1])}
	mapping := make([]pipeMapBody, 0, len(pipes))
	for _, p := range pipes {
		mapping = append(mapping, pipeMapBody{
			OutIndex: p.OutIndex, OutFd: p.OutFd,
			InIndex: p.InIndex, InFd: p.InFd,
		})
	}
	results, err := c.run(ctx, cmds, mapping)
	if err != nil {
		return [2]ExecResult{}, err
	}
	if len(results) != 2 {
		return [2]ExecResult{}, appErr.Newf(appErr.SandboxError, "run: expected 2 results, got %d", len(results))
	}
	return [2]ExecResult{resultFromBody(results[0]), resultFromBody(results[1])}, nil
}

func (c *HTTPClient) run(ctx context.Context, cmds []cmdBody, pipes []pipeMapBody) ([]execResultBody, error) {
	var results []execResultBody
	status, err := c.postJSON(ctx, "/run", runRequestBody{Cmds: cmds, PipeMapping: pipes}, &results)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, appErr.Newf(appErr.SandboxError, "run: unexpected status %d", status)
	}
	return results, nil
}

// CopyInBin uploads a prebuilt binary into the service file cache.
func (c *HTTPClient) CopyInBin(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxError, "read binary %s", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/files", bytes.NewReader(data))
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxError, "build file upload request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxError, "upload file")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", appErr.Newf(appErr.SandboxError, "upload file: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxError, "decode file upload response")
	}
	if body.ID == "" {
		return "", appErr.Newf(appErr.SandboxError, "upload file: empty file id")
	}
	return body.ID, nil
}

// DeleteFile drops a cached file from the execution service.
func (c *HTTPClient) DeleteFile(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/files/"+fileID, nil)
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxError, "build file delete request")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxError, "delete file")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return appErr.Newf(appErr.SandboxError, "delete file: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, in, out interface{}) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SandboxError, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SandboxError, "build request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SandboxError, "call %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SandboxError, "read response %s", path)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return 0, appErr.Wrapf(err, appErr.SandboxError, "decode response %s", path)
		}
	}
	return resp.StatusCode, nil
}
