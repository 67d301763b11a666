package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-tagger/internal/model"
)

func TestStatisticalModel_Load(t *testing.T) {
	m := NewStatisticalModel()
	d, err := m.Load(history(
		record("bus", "Transport", 2),
		record("cafe", "Food & Drinks", 2),
		record("taxi", "Transport", 1),
		record("bad", "", 4),
	))
	require.NoError(t, err)

	assert.Equal(t, 5, d.Total())
	assert.Equal(t, 3, d.Count("Transport"))
	tag, count := d.Top()
	assert.Equal(t, "Transport", tag)
	assert.Equal(t, 3, count)
}

func TestTagDistribution_TopTiesGoToFirstSeen(t *testing.T) {
	d, err := NewStatisticalModel().Load(history(
		record("cafe", "Food & Drinks", 1),
		record("bus", "Transport", 1),
	))
	require.NoError(t, err)
	tag, _ := d.Top()
	assert.Equal(t, "Food & Drinks", tag)
}

func TestStatisticalModel_Predict(t *testing.T) {
	tests := []struct {
		name       string
		wantTag    string
		records    []model.UserTagMemory
		confidence float64
	}{
		{
			name:       "dominant tag is capped",
			records:    []model.UserTagMemory{record("bus", "Transport", 2), record("taxi", "Transport", 1), record("cafe", "Food & Drinks", 1)},
			wantTag:    "Transport",
			confidence: 0.8,
		},
		{
			name:       "even split",
			records:    []model.UserTagMemory{record("bus", "Transport", 1), record("cafe", "Food & Drinks", 1)},
			wantTag:    "Transport",
			confidence: 0.75,
		},
		{
			name:       "three way split",
			records:    []model.UserTagMemory{record("a", "A", 1), record("b", "B", 1), record("c", "C", 1)},
			wantTag:    "A",
			confidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStatisticalModel().Predict(context.Background(), Query{History: history(tt.records...)})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantTag, got.Tag)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestStatisticalModel_AbstainsWithoutHistory(t *testing.T) {
	got, err := NewStatisticalModel().Predict(context.Background(), Query{History: history()})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = NewStatisticalModel().Predict(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatisticalModel_HistoryError(t *testing.T) {
	boom := errors.New("boom")
	h := &History{records: func() ([]model.UserTagMemory, error) { return nil, boom }}

	_, err := NewStatisticalModel().Predict(context.Background(), Query{History: h})
	assert.ErrorIs(t, err, boom)
}
