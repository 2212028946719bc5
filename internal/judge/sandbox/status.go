package sandbox

// Status is the closed set of execution classifications understood by the
// judge core. Raw service strings are mapped here once, at the boundary;
// everything downstream switches on Status only.
type Status int

const (
	StatusAccepted Status = iota
	StatusTimeLimit
	StatusMemoryLimit
	StatusOutputLimit
	StatusNonzeroExit
	StatusSignalled
	StatusFileError
	StatusDangerousSyscall
	StatusInternalError
)

var statusNames = map[Status]string{
	StatusAccepted:         "Accepted",
	StatusTimeLimit:        "Time Limit Exceeded",
	StatusMemoryLimit:      "Memory Limit Exceeded",
	StatusOutputLimit:      "Output Limit Exceeded",
	StatusNonzeroExit:      "Runtime Error",
	StatusSignalled:        "Runtime Error",
	StatusFileError:        "File Error",
	StatusDangerousSyscall: "Dangerous Syscall",
	StatusInternalError:    "Internal Error",
}

// String returns the display name used in case outcomes.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Internal Error"
}

// Clean reports whether the process ran to completion without any
// resource or runtime violation.
func (s Status) Clean() bool {
	return s == StatusAccepted
}

// ParseStatus maps a raw execution service status string onto the closed
// enum. Unknown strings collapse to StatusInternalError so a service
// upgrade cannot leak new states into the core.
func ParseStatus(raw string) Status {
	switch raw {
	case "Accepted":
		return StatusAccepted
	case "Time Limit Exceeded":
		return StatusTimeLimit
	case "Memory Limit Exceeded":
		return StatusMemoryLimit
	case "Output Limit Exceeded":
		return StatusOutputLimit
	case "Nonzero Exit Status":
		return StatusNonzeroExit
	case "Signalled":
		return StatusSignalled
	case "File Error":
		return StatusFileError
	case "Dangerous Syscall":
		return StatusDangerousSyscall
	default:
		return StatusInternalError
	}
}
