package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsemble_SumsAgreeingVotes(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		e := NewEnsemble(0.1, sequential,
			vote(ModelFeature, "Groceries", 0.455),
			vote(ModelSemantic, "Groceries", 0.3),
			vote(ModelStatistical, "Transport", 0.7),
		)

		got := e.Predict(context.Background(), Query{Payee: "tesco"})
		assert.Equal(t, "Groceries", got.Tag)
		assert.InDelta(t, 0.755, got.Confidence, 1e-9)
		require.Len(t, got.Scores, 2)
		assert.Equal(t, "Groceries", got.Scores[0].Tag)
		assert.Equal(t, "Transport", got.Scores[1].Tag)
		require.Len(t, got.Votes, 3)
		assert.Equal(t, ModelFeature, got.Votes[0].Model)
	}
}

func TestEnsemble_CapsAtOne(t *testing.T) {
	e := NewEnsemble(0.1, false,
		vote(ModelFeature, "Groceries", 0.455),
		vote(ModelSemantic, "Groceries", 1),
	)
	got := e.Predict(context.Background(), Query{})
	assert.Equal(t, "Groceries", got.Tag)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	assert.InDelta(t, 1.455, got.Scores[0].Score, 1e-9)
}

func TestEnsemble_MinContribution(t *testing.T) {
	e := NewEnsemble(0.1, false,
		vote(ModelFeature, "Food & Drinks", 0.1),
		vote(ModelSemantic, "Fuel", 0.11),
	)
	got := e.Predict(context.Background(), Query{})
	assert.Equal(t, "Fuel", got.Tag)
	require.Len(t, got.Scores, 1)

	e = NewEnsemble(0.1, false, vote(ModelFeature, "Food & Drinks", 0.06))
	got = e.Predict(context.Background(), Query{})
	assert.Empty(t, got.Tag)
	assert.Zero(t, got.Confidence)
	assert.Empty(t, got.Scores)
	assert.NotNil(t, got.Vote(ModelFeature), "sub-threshold votes stay visible in the trace")
}

func TestEnsemble_TiesGoToFirstModel(t *testing.T) {
	e := NewEnsemble(0.1, false,
		vote(ModelFeature, "A", 0.5),
		vote(ModelSemantic, "B", 0.5),
	)
	assert.Equal(t, "A", e.Predict(context.Background(), Query{}).Tag)
}

func TestEnsemble_FailingModelsAbstain(t *testing.T) {
	boom := errors.New("boom")
	e := NewEnsemble(0.1, false,
		&stubModel{name: ModelFeature, panic: "index out of range"},
		&stubModel{name: ModelSemantic, err: boom},
		vote(ModelStatistical, "Transport", 0.8),
	)

	got := e.Predict(context.Background(), Query{})
	assert.Equal(t, "Transport", got.Tag)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)

	assert.ErrorIs(t, got.Votes[0].Err, ErrModelPanic)
	assert.Contains(t, got.Votes[0].Error, "index out of range")
	assert.Nil(t, got.Votes[0].Result)
	assert.ErrorIs(t, got.Votes[1].Err, boom)
	assert.Nil(t, got.Vote(ModelSemantic))
}

func TestEnsemble_RejectsInvalidResults(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
	}{
		{name: "confidence above one", result: &Result{Tag: "A", Confidence: 1.5}},
		{name: "negative confidence", result: &Result{Tag: "A", Confidence: -0.2}},
		{name: "missing tag", result: &Result{Confidence: 0.9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnsemble(0.1, false, &stubModel{name: ModelFeature, result: tt.result})
			got := e.Predict(context.Background(), Query{})
			assert.Empty(t, got.Tag)
			assert.ErrorIs(t, got.Votes[0].Err, ErrInvalidResult)
		})
	}
}

func TestEnsemble_RunsEveryModel(t *testing.T) {
	calls := make(chan struct{}, 3)
	e := NewEnsemble(0.1, false,
		&stubModel{name: ModelFeature, calls: calls},
		&stubModel{name: ModelSemantic, calls: calls},
		&stubModel{name: ModelStatistical, calls: calls},
	)
	got := e.Predict(context.Background(), Query{})
	assert.Len(t, calls, 3)
	assert.Empty(t, got.Tag)
}

func TestEnsembleResult_VoteOnNil(t *testing.T) {
	var r *EnsembleResult
	assert.Nil(t, r.Vote(ModelFeature))
}
