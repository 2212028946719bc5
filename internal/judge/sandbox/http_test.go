package sandbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"arbiter/internal/judge/sandbox"
)

func newStubService(t *testing.T, handler http.HandlerFunc) *sandbox.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return sandbox.NewHTTPClient(sandbox.HTTPConfig{BaseURL: srv.URL})
}

func TestPrepareProgram(t *testing.T) {
	t.Parallel()
	client := newStubService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compile" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Language  string `json:"language"`
			EntryFile string `json:"entryFile"`
			Code      []byte `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Language != "cpp17" || string(body.Code) != "int main(){}" {
			t.Errorf("unexpected payload: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"args":  []string{"./main"},
			"files": map[string]string{"main": "cached-1"},
		})
	})

	spec, err := client.PrepareProgram(context.Background(), sandbox.PrepareRequest{
		Language: "cpp17",
		Code:     []byte("int main(){}"),
	})
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if len(spec.Args) != 1 || spec.Files["main"] != "cached-1" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestPrepareProgramCompileRejection(t *testing.T) {
	t.Parallel()
	client := newStubService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "compilation failed",
			"log":   "main.cpp:1:1: error: expected declaration",
		})
	})

	_, err := client.PrepareProgram(context.Background(), sandbox.PrepareRequest{Language: "cpp17", Code: []byte("x")})
	var pf *sandbox.PrepareFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected PrepareFailure, got %v", err)
	}
	if pf.Log == "" {
		t.Fatalf("expected compiler log in failure")
	}
}

func TestRunOne(t *testing.T) {
	t.Parallel()
	client := newStubService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Cmds []json.RawMessage `json:"cmds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Cmds) != 1 {
			t.Errorf("expected one cmd, got %d (%v)", len(body.Cmds), err)
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"status": "Time Limit Exceeded", "timeMs": 2000, "memoryKB": 1024},
		})
	})

	res, err := client.RunOne(context.Background(), sandbox.ExecSpec{
		Spec:   sandbox.RunSpec{Args: []string{"./main"}},
		Limits: sandbox.Limits{CPUTimeMs: 1000, WallTimeMs: 2000, MemoryMB: 256},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Status != sandbox.StatusTimeLimit || res.TimeMs != 2000 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunPair(t *testing.T) {
	t.Parallel()
	client := newStubService(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cmds        []json.RawMessage        `json:"cmds"`
			PipeMapping []map[string]interface{} `json:"pipeMapping"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Cmds) != 2 || len(body.PipeMapping) != 2 {
			t.Errorf("expected pair with pipes, got %d cmds %d pipes", len(body.Cmds), len(body.PipeMapping))
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"status": "Accepted"},
			{"status": "Accepted", "stderr": []byte("ok\n")},
		})
	})

	specs := [2]sandbox.ExecSpec{
		{Spec: sandbox.RunSpec{Args: []string{"./main"}}},
		{Spec: sandbox.RunSpec{Args: []string{"./interactor"}}},
	}
	pipes := []sandbox.PipeMap{
		{OutIndex: 0, OutFd: 1, InIndex: 1, InFd: 0},
		{OutIndex: 1, OutFd: 1, InIndex: 0, InFd: 0},
	}
	results, err := client.RunPair(context.Background(), specs, pipes)
	if err != nil {
		t.Fatalf("run pair failed: %v", err)
	}
	if results[0].Status != sandbox.StatusAccepted || results[1].Status != sandbox.StatusAccepted {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestCopyInBinAndDelete(t *testing.T) {
	t.Parallel()
	var deleted string
	client := newStubService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			json.NewEncoder(w).Encode(map[string]string{"id": "f-123"})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	bin := filepath.Join(t.TempDir(), "checker")
	if err := os.WriteFile(bin, []byte{0x7f, 'E', 'L', 'F'}, 0755); err != nil {
		t.Fatalf("write binary failed: %v", err)
	}

	id, err := client.CopyInBin(context.Background(), bin)
	if err != nil {
		t.Fatalf("copy in failed: %v", err)
	}
	if id != "f-123" {
		t.Fatalf("unexpected file id: %s", id)
	}
	if err := client.DeleteFile(context.Background(), id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != "/files/f-123" {
		t.Fatalf("unexpected delete path: %s", deleted)
	}
}
