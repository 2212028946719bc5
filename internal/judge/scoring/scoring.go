// Package scoring aggregates per-case outcomes into a submission score.
package scoring

import (
	"math"

	"arbiter/internal/judge/model"
)

// Aggregate folds case outcomes into (score, passed). The score is the
// mean case ratio scaled to 100 and rounded half away from zero. Passed
// requires every case accepted outright; a rejected case never passes
// even at a full reported ratio, and a submission with no cases never
// passes.
func Aggregate(cases []model.CaseOutcome) (int, bool) {
	if len(cases) == 0 {
		return 0, false
	}
	var sum float64
	passed := true
	for _, c := range cases {
		sum += c.Ratio
		if !c.OK {
			passed = false
		}
	}
	score := int(math.Round(sum / float64(len(cases)) * 100))
	return score, passed
}
