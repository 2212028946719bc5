package runner

import (
	"regexp"
	"strconv"
	"strings"
)

// Verifiers report a partial score by printing "Ratio: <float>" anywhere
// in their report stream. Absent tag means full credit on acceptance and
// zero otherwise.
var ratioPattern = regexp.MustCompile(`Ratio:\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// ParseRatio extracts the score ratio from a verifier report. The second
// return is false when no tag is present. Values are clamped to [0, 1].
func ParseRatio(report []byte) (float64, bool) {
	m := ratioPattern.FindSubmatch(report)
	if m == nil {
		return 0, false
	}
	ratio, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return ratio, true
}

const maxReportLine = 256

// reportLine condenses a verifier report to its first line, trimmed and
// capped, for inclusion in case outcomes.
func reportLine(report []byte) string {
	s := strings.TrimSpace(string(report))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) > maxReportLine {
		s = s[:maxReportLine]
	}
	return s
}
