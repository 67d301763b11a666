package engine

import (
	"fmt"
	"math"

	"github.com/Veraticus/spice-tagger/internal/common"
)

// scoreEpsilon absorbs float rounding when a score lands exactly on a cutoff.
const scoreEpsilon = 1e-9

// Threshold holds the two confidence cutoffs of one model.
type Threshold struct {
	// AutoAssign is the confidence at which the model's tag is applied directly.
	AutoAssign float64
	// Suggestion is the confidence at which the tag is offered for confirmation.
	Suggestion float64
}

// Thresholds is the decision policy of the engine.
type Thresholds struct {
	Ensemble Threshold
	Feature  Threshold
	Semantic Threshold
	Keyword  Threshold

	// MemoryConfidence is reported for every user memory hit.
	MemoryConfidence float64
	// FallbackConfidence is reported for the miscellaneous fallback.
	FallbackConfidence float64
	// MinContribution is the confidence a sub-model must exceed to count
	// toward the ensemble sum.
	MinContribution float64
}

// DefaultThresholds returns the production decision policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Ensemble:           Threshold{AutoAssign: 0.85, Suggestion: 0.65},
		Feature:            Threshold{AutoAssign: 0.80, Suggestion: 0.60},
		Semantic:           Threshold{AutoAssign: 0.80, Suggestion: 0.60},
		Keyword:            Threshold{AutoAssign: 0.75, Suggestion: 0.55},
		MemoryConfidence:   0.95,
		FallbackConfidence: 0.3,
		MinContribution:    0.1,
	}
}

// Validate checks that every cutoff is in [0,1] and that no model can
// suggest above its own auto-assign cutoff.
func (t Thresholds) Validate() error {
	pairs := []struct {
		name string
		th   Threshold
	}{
		{"ensemble", t.Ensemble},
		{"feature", t.Feature},
		{"semantic", t.Semantic},
		{"keyword", t.Keyword},
	}
	for _, p := range pairs {
		if !unit(p.th.AutoAssign) || !unit(p.th.Suggestion) {
			return fmt.Errorf("%w: %s cutoffs must be within [0,1]", common.ErrInvalidThresholds, p.name)
		}
		if p.th.AutoAssign < p.th.Suggestion {
			return fmt.Errorf("%w: %s auto-assign %.2f is below suggestion %.2f",
				common.ErrInvalidThresholds, p.name, p.th.AutoAssign, p.th.Suggestion)
		}
	}

	scalars := []struct {
		name  string
		value float64
	}{
		{"memory confidence", t.MemoryConfidence},
		{"fallback confidence", t.FallbackConfidence},
		{"min contribution", t.MinContribution},
	}
	for _, s := range scalars {
		if !unit(s.value) {
			return fmt.Errorf("%w: %s must be within [0,1]", common.ErrInvalidThresholds, s.name)
		}
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// clears reports whether score reaches cutoff.
func clears(score, cutoff float64) bool {
	return score >= cutoff-scoreEpsilon
}
