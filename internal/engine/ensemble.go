package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Ensemble errors.
var (
	ErrModelPanic    = errors.New("sub-model panicked")
	ErrInvalidResult = errors.New("sub-model returned an invalid result")
)

// Vote is what one sub-model produced during an ensemble run.
type Vote struct {
	Err    error     `json:"-"`
	Result *Result   `json:"result,omitempty"`
	Model  ModelName `json:"model"`
	Error  string    `json:"error,omitempty"`
}

// TagScore is a tag's accumulated ensemble score.
type TagScore struct {
	Tag   string  `json:"tag"`
	Score float64 `json:"score"`
}

// EnsembleResult is the combined decision plus every sub-model's vote.
// Tag is empty when no sub-model contributed.
type EnsembleResult struct {
	Tag        string     `json:"tag,omitempty"`
	Votes      []Vote     `json:"votes"`
	Scores     []TagScore `json:"scores,omitempty"`
	Confidence float64    `json:"confidence"`
}

// Vote returns the named sub-model's result, or nil if it abstained or failed.
func (r *EnsembleResult) Vote(name ModelName) *Result {
	if r == nil {
		return nil
	}
	for _, v := range r.Votes {
		if v.Model == name {
			return v.Result
		}
	}
	return nil
}

// Ensemble sums sub-model confidences per tag.
type Ensemble struct {
	models          []SubModel
	minContribution float64
	sequential      bool
}

// NewEnsemble combines models. Votes at or below minContribution are ignored.
func NewEnsemble(minContribution float64, sequential bool, models ...SubModel) *Ensemble {
	return &Ensemble{
		models:          models,
		minContribution: minContribution,
		sequential:      sequential,
	}
}

// Predict runs every sub-model and combines their votes. A sub-model that
// errors or panics abstains; Predict itself never fails.
func (e *Ensemble) Predict(ctx context.Context, q Query) *EnsembleResult {
	votes := make([]Vote, len(e.models))

	if e.sequential {
		for i, m := range e.models {
			votes[i] = runSubModel(ctx, m, q)
		}
	} else {
		var wg conc.WaitGroup
		for i, m := range e.models {
			wg.Go(func() {
				votes[i] = runSubModel(ctx, m, q)
			})
		}
		wg.Wait()
	}

	result := &EnsembleResult{Votes: votes}
	index := make(map[string]int)

	// Votes are summed in model order so results are reproducible.
	for _, v := range votes {
		if v.Err != nil {
			common.LogWarn(ctx, v.Err, "Sub-model abstained", common.Fields{
				"model": v.Model,
				"payee": q.Payee,
			})
			continue
		}
		if v.Result == nil || v.Result.Confidence <= e.minContribution {
			continue
		}
		i, ok := index[v.Result.Tag]
		if !ok {
			i = len(result.Scores)
			index[v.Result.Tag] = i
			result.Scores = append(result.Scores, TagScore{Tag: v.Result.Tag})
		}
		result.Scores[i].Score += v.Result.Confidence
	}

	for _, s := range result.Scores {
		if s.Score > result.Confidence {
			result.Tag = s.Tag
			result.Confidence = s.Score
		}
	}
	result.Confidence = min(1, result.Confidence)

	return result
}

func runSubModel(ctx context.Context, m SubModel, q Query) Vote {
	vote := Vote{Model: m.Name()}

	var pc panics.Catcher
	pc.Try(func() {
		vote.Result, vote.Err = m.Predict(ctx, q)
	})
	if r := pc.Recovered(); r != nil {
		vote.Result = nil
		vote.Err = fmt.Errorf("%w: %s: %v", ErrModelPanic, vote.Model, r.Value)
	}

	if vote.Err == nil && vote.Result != nil {
		res := vote.Result
		if res.Tag == "" || math.IsNaN(res.Confidence) || res.Confidence < 0 || res.Confidence > 1 {
			vote.Err = fmt.Errorf("%w: %s: tag=%q confidence=%v", ErrInvalidResult, vote.Model, res.Tag, res.Confidence)
		}
	}

	if vote.Err != nil {
		vote.Result = nil
		vote.Error = vote.Err.Error()
	}
	return vote
}
