package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/model"
)

func testCatalog(t *testing.T, tags ...model.Tag) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Definition{Tags: tags})
	require.NoError(t, err)
	return c
}

// stubModel votes a fixed result, fails, or panics.
type stubModel struct {
	err    error
	result *Result
	panic  any
	name   ModelName
	calls  chan struct{}
}

func (s *stubModel) Name() ModelName { return s.name }

func (s *stubModel) Predict(_ context.Context, _ Query) (*Result, error) {
	if s.calls != nil {
		s.calls <- struct{}{}
	}
	if s.panic != nil {
		panic(s.panic)
	}
	if s.result == nil {
		return nil, s.err
	}
	r := *s.result
	r.Model = s.name
	return &r, s.err
}

func vote(name ModelName, tag string, confidence float64) *stubModel {
	return &stubModel{name: name, result: &Result{Tag: tag, Confidence: confidence}}
}

func history(records ...model.UserTagMemory) *History {
	return StaticHistory(records)
}

func record(payee, tag string, count int) model.UserTagMemory {
	return model.UserTagMemory{UserID: "alice", PayeeNormalized: payee, Tag: tag, Count: count, LastConfidence: 1}
}
