package model

import (
	"encoding/json"
	"strings"
)

// Source identifies which path of the engine produced a prediction.
type Source string

// Prediction sources.
const (
	SourceUserMemoryExact   Source = "user_memory_exact"
	SourceUserMemoryFuzzy   Source = "user_memory_fuzzy"
	SourceAIEnsemble        Source = "ai_ensemble"
	SourceFeatureAuto       Source = "feature_auto"
	SourceSemanticAuto      Source = "semantic_auto"
	SourceKeywordSuggestion Source = "keyword_suggestion"
	SourceSuggestions       Source = "suggestions"
	SourceFallback          Source = "fallback"
	SourceFallbackEmpty     Source = "fallback_empty"
	SourceNoSuggestion      Source = "no_suggestion"
)

// Sources lists every source in decision order.
var Sources = []Source{
	SourceUserMemoryExact,
	SourceUserMemoryFuzzy,
	SourceAIEnsemble,
	SourceFeatureAuto,
	SourceSemanticAuto,
	SourceKeywordSuggestion,
	SourceSuggestions,
	SourceFallback,
	SourceFallbackEmpty,
	SourceNoSuggestion,
}

// IsMemory reports whether the source is a user memory hit.
func (s Source) IsMemory() bool {
	return strings.HasPrefix(string(s), "user_memory")
}

// Outcome is the shape of a prediction.
type Outcome int

// Prediction outcomes.
const (
	// OutcomeEmpty carries no category and no suggestions.
	OutcomeEmpty Outcome = iota
	// OutcomeDecided carries a category the caller may apply directly.
	OutcomeDecided
	// OutcomeUndecided carries ranked suggestions for the user to choose from.
	OutcomeUndecided
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDecided:
		return "decided"
	case OutcomeUndecided:
		return "undecided"
	default:
		return "empty"
	}
}

// Suggestion is a candidate category offered for confirmation.
type Suggestion struct {
	Category   string  `json:"category"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the engine's answer for one payee. It is immutable.
type Prediction struct {
	category    string
	source      Source
	suggestions []Suggestion
	confidence  float64
	outcome     Outcome
}

// Decided builds a prediction that assigns category.
func Decided(category string, confidence float64, source Source) Prediction {
	return Prediction{
		outcome:    OutcomeDecided,
		category:   category,
		confidence: clamp01(confidence),
		source:     source,
	}
}

// Undecided builds a prediction that only offers suggestions, in the given order.
// Its confidence is that of the first suggestion.
func Undecided(suggestions []Suggestion) Prediction {
	list := make([]Suggestion, len(suggestions))
	copy(list, suggestions)

	p := Prediction{
		outcome:     OutcomeUndecided,
		source:      SourceSuggestions,
		suggestions: list,
	}
	if len(list) > 0 {
		p.confidence = clamp01(list[0].Confidence)
	}
	return p
}

// Empty builds a prediction with no category.
func Empty(source Source) Prediction {
	return Prediction{outcome: OutcomeEmpty, source: source}
}

// Outcome returns the shape of the prediction.
func (p Prediction) Outcome() Outcome { return p.outcome }

// Category returns the assigned category, if any.
func (p Prediction) Category() (string, bool) {
	return p.category, p.outcome == OutcomeDecided
}

// Confidence returns a value in [0,1].
func (p Prediction) Confidence() float64 { return p.confidence }

// Source returns the path that produced the prediction.
func (p Prediction) Source() Source { return p.source }

// Suggestions returns a copy of the ranked suggestions.
func (p Prediction) Suggestions() []Suggestion {
	if len(p.suggestions) == 0 {
		return nil
	}
	out := make([]Suggestion, len(p.suggestions))
	copy(out, p.suggestions)
	return out
}

// Equal reports whether two predictions are identical.
func (p Prediction) Equal(other Prediction) bool {
	if p.outcome != other.outcome ||
		p.category != other.category ||
		p.source != other.source ||
		p.confidence != other.confidence ||
		len(p.suggestions) != len(other.suggestions) {
		return false
	}
	for i := range p.suggestions {
		if p.suggestions[i] != other.suggestions[i] {
			return false
		}
	}
	return true
}

type predictionJSON struct {
	Category    *string      `json:"category"`
	Outcome     string       `json:"outcome"`
	Source      Source       `json:"source"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Confidence  float64      `json:"confidence"`
}

// MarshalJSON renders an absent category as null.
func (p Prediction) MarshalJSON() ([]byte, error) {
	out := predictionJSON{
		Outcome:     p.outcome.String(),
		Source:      p.source,
		Suggestions: p.suggestions,
		Confidence:  p.confidence,
	}
	if p.outcome == OutcomeDecided {
		category := p.category
		out.Category = &category
	}
	return json.Marshal(out)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
