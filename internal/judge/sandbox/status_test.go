package sandbox

import "testing"

func TestParseStatusKnownValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Status
	}{
		{"Accepted", StatusAccepted},
		{"Time Limit Exceeded", StatusTimeLimit},
		{"Memory Limit Exceeded", StatusMemoryLimit},
		{"Output Limit Exceeded", StatusOutputLimit},
		{"Nonzero Exit Status", StatusNonzeroExit},
		{"Signalled", StatusSignalled},
		{"File Error", StatusFileError},
		{"Dangerous Syscall", StatusDangerousSyscall},
	}
	for _, tc := range tests {
		if got := ParseStatus(tc.raw); got != tc.want {
			t.Fatalf("ParseStatus(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseStatusUnknownCollapsesToInternalError(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "Judgement Failed", "Some Future State"} {
		if got := ParseStatus(raw); got != StatusInternalError {
			t.Fatalf("ParseStatus(%q) = %v, want StatusInternalError", raw, got)
		}
	}
}

func TestStatusDisplayNames(t *testing.T) {
	t.Parallel()
	if StatusTimeLimit.String() != "Time Limit Exceeded" {
		t.Fatalf("unexpected display name: %s", StatusTimeLimit)
	}
	if StatusNonzeroExit.String() != "Runtime Error" || StatusSignalled.String() != "Runtime Error" {
		t.Fatalf("exit and signal failures should both render as runtime errors")
	}
	if StatusAccepted.Clean() != true || StatusTimeLimit.Clean() {
		t.Fatalf("only Accepted is clean")
	}
}
