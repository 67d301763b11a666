package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/testutil"
	"github.com/Veraticus/spice-tagger/internal/testutil/memories"
)

func newTestEngine(t *testing.T, store *testutil.MemoryStore, mutate func(*Config)) *Engine {
	t.Helper()
	config := DefaultConfig()
	if mutate != nil {
		mutate(&config)
	}
	e, err := NewWithConfig(store, catalog.Default(), config)
	require.NoError(t, err)
	return e
}

func assertDecided(t *testing.T, p model.Prediction, category string, confidence float64, source model.Source) {
	t.Helper()
	got, ok := p.Category()
	require.True(t, ok, "expected a decided prediction, got %s/%s", p.Outcome(), p.Source())
	assert.Equal(t, model.OutcomeDecided, p.Outcome())
	assert.Equal(t, category, got)
	assert.InDelta(t, confidence, p.Confidence(), 1e-9)
	assert.Equal(t, source, p.Source())
	assert.Empty(t, p.Suggestions())
}

func TestPredictCategory_Ladder(t *testing.T) {
	tests := []struct {
		name       string
		payee      string
		category   string
		source     model.Source
		memories   memories.Fixture
		confidence float64
	}{
		{
			name:       "fuzzy memory of a brand inside a longer payee",
			payee:      "Grab Malaysia",
			memories:   memories.FixtureCommuter,
			category:   "Transport",
			confidence: 0.95,
			source:     model.SourceUserMemoryFuzzy,
		},
		{
			name:       "exact memory",
			payee:      "  GRAB ",
			memories:   memories.FixtureCommuter,
			category:   "Transport",
			confidence: 0.95,
			source:     model.SourceUserMemoryExact,
		},
		{
			name:       "feature and semantic agree",
			payee:      "Tesco Extra",
			category:   "Groceries",
			confidence: 1,
			source:     model.SourceAIEnsemble,
		},
		{
			name:       "semantic outvotes a keyword prefix",
			payee:      "GrabPay",
			category:   "E-Wallet",
			confidence: 1,
			source:     model.SourceAIEnsemble,
		},
		{
			name:       "semantic alone on a misspelling",
			payee:      "Tezco",
			category:   "Groceries",
			confidence: 0.8,
			source:     model.SourceSemanticAuto,
		},
		{
			name:       "plain keyword",
			payee:      "Shopping",
			category:   "Shopping",
			confidence: 0.75,
			source:     model.SourceKeywordSuggestion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			if tt.memories != nil {
				_, err := memories.NewBuilder(t).WithFixture(tt.memories).Build(context.Background(), store)
				require.NoError(t, err)
			}
			e := newTestEngine(t, store, nil)

			p := e.PredictCategory(context.Background(), memories.UserAlice, tt.payee)
			assertDecided(t, p, tt.category, tt.confidence, tt.source)
		})
	}
}

func TestPredictCategory_Empty(t *testing.T) {
	store := testutil.NewMemoryStore()
	e := newTestEngine(t, store, nil)

	tests := []struct {
		name   string
		payee  string
		source model.Source
	}{
		{name: "empty payee", payee: "", source: model.SourceFallbackEmpty},
		{name: "punctuation only", payee: "*** --- ###", source: model.SourceFallbackEmpty},
		{name: "weak feature vote only", payee: "Starbucks KLCC", source: model.SourceNoSuggestion},
		{name: "no signal at all", payee: "zzqxw123", source: model.SourceNoSuggestion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.PredictCategory(context.Background(), "alice", tt.payee)
			assert.Equal(t, model.OutcomeEmpty, p.Outcome())
			assert.Equal(t, tt.source, p.Source())
			_, ok := p.Category()
			assert.False(t, ok)
			assert.Zero(t, p.Confidence())
			assert.Empty(t, p.Suggestions())
		})
	}

	getTag, predictions, _ := store.Calls()
	assert.Equal(t, 2, getTag, "empty payees never reach the store")
	assert.Equal(t, 2, predictions)
}

func TestPredictCategory_MiscellaneousFallback(t *testing.T) {
	e := newTestEngine(t, testutil.NewMemoryStore(), func(c *Config) {
		c.FallbackPolicy = FallbackMiscellaneous
	})

	p := e.PredictCategory(context.Background(), "alice", "Starbucks KLCC")
	assertDecided(t, p, catalog.FallbackTag, 0.3, model.SourceFallback)

	// Empty payees are not subject to the policy.
	p = e.PredictCategory(context.Background(), "alice", "")
	assert.Equal(t, model.SourceFallbackEmpty, p.Source())
}

func TestPredictCategory_MiscellaneousWithoutFallbackTag(t *testing.T) {
	c, err := catalog.New(catalog.Definition{Tags: []model.Tag{{Name: "Only", Keywords: []string{"only"}}}})
	require.NoError(t, err)
	config := DefaultConfig()
	config.FallbackPolicy = FallbackMiscellaneous
	e, err := NewWithConfig(nil, c, config)
	require.NoError(t, err)

	p := e.PredictCategory(context.Background(), "alice", "zzqxw")
	assert.Equal(t, model.SourceNoSuggestion, p.Source())
}

func TestPredictCategory_Suggestions(t *testing.T) {
	t.Run("suggestions are deduplicated by category", func(t *testing.T) {
		e := newTestEngine(t, testutil.NewMemoryStore(), func(c *Config) {
			c.Thresholds.Semantic.AutoAssign = 0.9
		})

		p := e.PredictCategory(context.Background(), "alice", "Tezco")
		assert.Equal(t, model.OutcomeUndecided, p.Outcome())
		assert.Equal(t, model.SourceSuggestions, p.Source())
		_, ok := p.Category()
		assert.False(t, ok)

		suggestions := p.Suggestions()
		require.Len(t, suggestions, 1)
		assert.Equal(t, "Groceries", suggestions[0].Category)
		assert.Equal(t, model.SourceAIEnsemble, suggestions[0].Source)
		assert.InDelta(t, 0.8, suggestions[0].Confidence, 1e-9)
		assert.InDelta(t, 0.8, p.Confidence(), 1e-9)
	})

	t.Run("user history alone produces a suggestion", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		_, err := memories.NewBuilder(t).WithFixture(memories.FixtureMixed).Build(context.Background(), store)
		require.NoError(t, err)
		e := newTestEngine(t, store, nil)

		p, trace := e.Explain(context.Background(), memories.UserAlice, "zzqxw123")
		assert.Nil(t, trace.Memory)
		require.Equal(t, model.OutcomeUndecided, p.Outcome())
		suggestions := p.Suggestions()
		require.Len(t, suggestions, 1)
		assert.Equal(t, "Transport", suggestions[0].Category)
		assert.InDelta(t, 0.8, suggestions[0].Confidence, 1e-9)
	})

	t.Run("unicode payee with an accented keyword", func(t *testing.T) {
		e := newTestEngine(t, testutil.NewMemoryStore(), nil)

		p := e.PredictCategory(context.Background(), "alice", "Café Nasi")
		require.Equal(t, model.OutcomeUndecided, p.Outcome())
		suggestions := p.Suggestions()
		require.Len(t, suggestions, 1)
		assert.Equal(t, "Food & Drinks", suggestions[0].Category)
		assert.InDelta(t, 0.75, suggestions[0].Confidence, 1e-9)
	})

	t.Run("suggestions are sorted by confidence", func(t *testing.T) {
		e := newTestEngine(t, testutil.NewMemoryStore(), nil)
		for _, payee := range []string{"Tezco", "Café Nasi", "zzqxw123", "Shopping"} {
			s := e.PredictCategory(context.Background(), "alice", payee).Suggestions()
			for i := 1; i < len(s); i++ {
				assert.GreaterOrEqual(t, s[i-1].Confidence, s[i].Confidence)
			}
		}
	})
}

func TestPredictCategory_FeatureAutoWithTunedThresholds(t *testing.T) {
	e := newTestEngine(t, testutil.NewMemoryStore(), func(c *Config) {
		c.Thresholds.Feature = Threshold{AutoAssign: 0.5, Suggestion: 0.5}
	})

	p := e.PredictCategory(context.Background(), "alice", "Shopping")
	assertDecided(t, p, "Shopping", 0.59, model.SourceFeatureAuto)
}

func TestPredictCategory_ExactMemoryWinsOverEverything(t *testing.T) {
	store := testutil.NewMemoryStore().
		Seed("alice", "Tesco Extra", "Bills", 1).
		Seed("alice", "grab", "Transport", 5)
	e := newTestEngine(t, store, nil)

	p := e.PredictCategory(context.Background(), "alice", "TESCO  extra")
	assertDecided(t, p, "Bills", 0.95, model.SourceUserMemoryExact)

	_, predictions, _ := store.Calls()
	assert.Zero(t, predictions, "an exact hit never loads the user's history")
}

func TestPredictCategory_MemoryIsPerUser(t *testing.T) {
	store := testutil.NewMemoryStore().Seed(memories.UserBob, "Tesco Extra", "Bills", 3)
	e := newTestEngine(t, store, nil)

	p := e.PredictCategory(context.Background(), memories.UserAlice, "Tesco Extra")
	assert.Equal(t, model.SourceAIEnsemble, p.Source())
}

func TestPredictCategory_ConfirmationIsLearned(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	e := newTestEngine(t, store, nil)

	for _, payee := range []string{"Tesco Extra", "Starbucks KLCC", "Tezco", "zzqxw123", "Café Nasi"} {
		require.NoError(t, store.SaveUserTag(ctx, "alice", payee, "Bills", 1))
		p := e.PredictCategory(ctx, "alice", payee)
		assertDecided(t, p, "Bills", 0.95, model.SourceUserMemoryExact)
	}
}

func TestPredictCategory_StoreFailuresDegrade(t *testing.T) {
	ctx := context.Background()

	t.Run("exact lookup error skips memory", func(t *testing.T) {
		store := testutil.NewMemoryStore().Seed("alice", "Grab", "Transport", 3)
		store.GetTagErr = errors.New("database is locked")
		e := newTestEngine(t, store, nil)

		p, trace := e.Explain(ctx, "alice", "Tesco Extra")
		assertDecided(t, p, "Groceries", 1, model.SourceAIEnsemble)
		assert.Error(t, trace.MemoryErr)
		assert.Nil(t, trace.Memory)
	})

	t.Run("history error silences the statistical model", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		store.GetPredictionsErr = errors.New("database is locked")
		e := newTestEngine(t, store, nil)

		p, trace := e.Explain(ctx, "alice", "Tesco Extra")
		assertDecided(t, p, "Groceries", 1, model.SourceAIEnsemble)
		assert.Error(t, trace.MemoryErr)
		require.NotNil(t, trace.Ensemble)
		assert.Error(t, trace.Ensemble.Votes[2].Err)
	})

	t.Run("slow store is bounded by the timeout", func(t *testing.T) {
		store := testutil.NewMemoryStore().Seed("alice", "Tesco Extra", "Bills", 3)
		store.Delay = 500 * time.Millisecond
		e := newTestEngine(t, store, func(c *Config) { c.StoreTimeout = 20 * time.Millisecond })

		start := time.Now()
		p := e.PredictCategory(ctx, "alice", "Tesco Extra")
		assert.Less(t, time.Since(start), 400*time.Millisecond)
		assertDecided(t, p, "Groceries", 1, model.SourceAIEnsemble)
	})

	t.Run("exact lookup timeout skips the history read", func(t *testing.T) {
		store := testutil.NewMemoryStore().Seed("alice", "Tesco Extra", "Bills", 3)
		store.Delay = 300 * time.Millisecond
		e := newTestEngine(t, store, func(c *Config) { c.StoreTimeout = 20 * time.Millisecond })

		p, trace := e.Explain(ctx, "alice", "Tesco Extra")
		assertDecided(t, p, "Groceries", 1, model.SourceAIEnsemble)
		assert.ErrorIs(t, trace.MemoryErr, context.DeadlineExceeded)
		require.NotNil(t, trace.Ensemble)
		assert.ErrorIs(t, trace.Ensemble.Votes[2].Err, context.DeadlineExceeded)

		getTag, predictions, _ := store.Calls()
		assert.Equal(t, 1, getTag)
		assert.Zero(t, predictions, "one timeout per prediction")
	})

	t.Run("anonymous user never reaches the store", func(t *testing.T) {
		store := testutil.NewMemoryStore().Seed("", "Tesco Extra", "Bills", 3)
		e := newTestEngine(t, store, nil)

		p, trace := e.Explain(ctx, "", "Tesco Extra")
		assertDecided(t, p, "Groceries", 1, model.SourceAIEnsemble)
		assert.NoError(t, trace.MemoryErr)
		assert.Nil(t, trace.Memory)

		getTag, predictions, _ := store.Calls()
		assert.Zero(t, getTag)
		assert.Zero(t, predictions)
	})

	t.Run("no store at all", func(t *testing.T) {
		e, err := NewWithConfig(nil, nil, DefaultConfig())
		require.NoError(t, err)
		assertDecided(t, e.PredictCategory(ctx, "alice", "Tesco Extra"), "Groceries", 1, model.SourceAIEnsemble)
	})
}

func TestPredictCategory_Deterministic(t *testing.T) {
	store := testutil.NewMemoryStore()
	_, err := memories.NewBuilder(t).
		WithFixture(memories.FixtureMixed).
		WithFixture(memories.FixtureCommuter).
		Build(context.Background(), store)
	require.NoError(t, err)

	payees := []string{"Grab Malaysia", "Tesco Extra", "Tezco", "Shopping", "zzqxw123", "Starbucks KLCC", ""}
	parallel := newTestEngine(t, store, nil)
	sequential := newTestEngine(t, store, func(c *Config) { c.Sequential = true })

	for _, payee := range payees {
		want := sequential.PredictCategory(context.Background(), memories.UserAlice, payee)
		for i := 0; i < 20; i++ {
			got := parallel.PredictCategory(context.Background(), memories.UserAlice, payee)
			assert.True(t, want.Equal(got), "payee %q run %d: %s/%s vs %s/%s",
				payee, i, want.Source(), want.Outcome(), got.Source(), got.Outcome())
		}
	}
}

func TestPredictCategory_ConcurrentCallers(t *testing.T) {
	store := testutil.NewMemoryStore().Seed("alice", "grab", "Transport", 3)
	e := newTestEngine(t, store, nil)
	payees := []string{"Grab Malaysia", "Tesco Extra", "Tezco", "Shopping", "zzqxw123"}

	want := make([]model.Prediction, len(payees))
	for i, payee := range payees {
		want[i] = e.PredictCategory(context.Background(), "alice", payee)
	}

	results := make([]model.Prediction, 50)
	var wg conc.WaitGroup
	for i := range results {
		wg.Go(func() {
			results[i] = e.PredictCategory(context.Background(), "alice", payees[i%len(payees)])
		})
	}
	wg.Wait()

	for i, got := range results {
		assert.True(t, want[i%len(payees)].Equal(got), "result %d", i)
	}
}

func TestPredictCategory_ConfidenceInRange(t *testing.T) {
	store := testutil.NewMemoryStore()
	_, err := memories.NewBuilder(t).WithFixture(memories.FixtureMixed).Build(context.Background(), store)
	require.NoError(t, err)
	e := newTestEngine(t, store, func(c *Config) { c.FallbackPolicy = FallbackMiscellaneous })

	for i, payee := range []string{"Shell Petronas", "KFC Burger", "Watsons Pharmacy", "7-Eleven", "ab", "Tezco", "bus"} {
		p := e.PredictCategory(context.Background(), memories.UserAlice, payee)
		assert.GreaterOrEqual(t, p.Confidence(), 0.0, fmt.Sprint(i))
		assert.LessOrEqual(t, p.Confidence(), 1.0, fmt.Sprint(i))
		for _, s := range p.Suggestions() {
			assert.GreaterOrEqual(t, s.Confidence, 0.0)
			assert.LessOrEqual(t, s.Confidence, 1.0)
		}
	}
}

func TestExplain_Trace(t *testing.T) {
	store := testutil.NewMemoryStore().Seed("alice", "grab", "Transport", 3)
	e := newTestEngine(t, store, nil)

	p, trace := e.Explain(context.Background(), "alice", "Grab  MALAYSIA!")
	assert.Equal(t, model.SourceUserMemoryFuzzy, p.Source())
	assert.Equal(t, "grab malaysia", trace.Normalized)
	require.NotNil(t, trace.Memory)
	assert.Equal(t, "grab", trace.Memory.Compared)
	assert.InDelta(t, 0.85, trace.Memory.Threshold, 1e-9)
	assert.Nil(t, trace.Ensemble, "memory hits skip the ensemble")

	p, trace = e.Explain(context.Background(), "alice", "Shopping")
	assert.Equal(t, model.SourceKeywordSuggestion, p.Source())
	require.NotNil(t, trace.Ensemble)
	require.NotNil(t, trace.Keyword)
	assert.Equal(t, "shop", trace.Keyword.Keyword)
	require.NotNil(t, trace.Ensemble.Vote(ModelFeature))
	assert.Nil(t, trace.Ensemble.Vote(ModelSemantic))
}

func TestNewWithConfig(t *testing.T) {
	t.Run("zero config takes defaults", func(t *testing.T) {
		e, err := NewWithConfig(nil, nil, Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultThresholds(), e.config.Thresholds)
		assert.Equal(t, FallbackNone, e.config.FallbackPolicy)
		assert.Equal(t, catalog.Default().Names(), e.Catalog().Names())
	})

	t.Run("invalid thresholds", func(t *testing.T) {
		config := DefaultConfig()
		config.Thresholds.Keyword = Threshold{AutoAssign: 0.2, Suggestion: 0.6}
		_, err := NewWithConfig(nil, nil, config)
		assert.ErrorIs(t, err, common.ErrInvalidThresholds)
	})

	t.Run("unknown fallback policy", func(t *testing.T) {
		config := DefaultConfig()
		config.FallbackPolicy = "guess"
		_, err := NewWithConfig(nil, nil, config)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})

	t.Run("negative timeout", func(t *testing.T) {
		config := DefaultConfig()
		config.StoreTimeout = -time.Second
		_, err := NewWithConfig(nil, nil, config)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestParseFallbackPolicy(t *testing.T) {
	p, err := ParseFallbackPolicy("miscellaneous")
	require.NoError(t, err)
	assert.Equal(t, FallbackMiscellaneous, p)

	p, err = ParseFallbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FallbackNone, p)

	_, err = ParseFallbackPolicy("Miscellaneous!")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

// ladderRung orders decided sources by how early the engine returns them.
func ladderRung(s model.Source) int {
	switch s {
	case model.SourceAIEnsemble:
		return 0
	case model.SourceFeatureAuto, model.SourceSemanticAuto:
		return 1
	case model.SourceKeywordSuggestion:
		return 2
	default:
		return 3
	}
}

func TestPredictCategory_RaisingAutoAssignOnlyDemotes(t *testing.T) {
	payees := []string{"Tesco Extra", "Tezco", "Shopping", "Grab Malaysia", "Starbucks KLCC", "Shell Bangsar", "Netflix", "zzqxw123"}

	tests := []struct {
		threshold func(*Thresholds) *Threshold
		name      string
		source    model.Source
	}{
		{name: "ensemble", source: model.SourceAIEnsemble, threshold: func(th *Thresholds) *Threshold { return &th.Ensemble }},
		{name: "feature", source: model.SourceFeatureAuto, threshold: func(th *Thresholds) *Threshold { return &th.Feature }},
		{name: "semantic", source: model.SourceSemanticAuto, threshold: func(th *Thresholds) *Threshold { return &th.Semantic }},
		{name: "keyword", source: model.SourceKeywordSuggestion, threshold: func(th *Thresholds) *Threshold { return &th.Keyword }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := testutil.NewMemoryStore()
			defaults := DefaultThresholds()
			start := tt.threshold(&defaults).AutoAssign

			previous := make(map[string]model.Prediction, len(payees))
			for _, payee := range payees {
				previous[payee] = newTestEngine(t, store, nil).PredictCategory(ctx, "alice", payee)
			}

			for cutoff := start + 0.05; cutoff <= 1+1e-9; cutoff += 0.05 {
				e := newTestEngine(t, store, func(c *Config) { tt.threshold(&c.Thresholds).AutoAssign = min(cutoff, 1) })

				for _, payee := range payees {
					before := previous[payee]
					after := e.PredictCategory(ctx, "alice", payee)

					if before.Source() != tt.source {
						assert.True(t, before.Equal(after), "%q at %.2f: %s must not change to %s",
							payee, cutoff, before.Source(), after.Source())
						continue
					}
					if after.Source() != tt.source {
						assert.GreaterOrEqual(t, ladderRung(after.Source()), ladderRung(tt.source),
							"%q at %.2f: %s may only fall to a later rung, got %s", payee, cutoff, tt.source, after.Source())
						assert.NotEqual(t, model.SourceAIEnsemble, after.Source())
						if tt.source == model.SourceKeywordSuggestion {
							assert.Contains(t, []model.Source{model.SourceSuggestions, model.SourceNoSuggestion}, after.Source())
						}
					}
					previous[payee] = after
				}
			}
		})
	}
}
