// Package engine predicts a spending tag for a free-text payee.
//
// A prediction walks a fixed ladder and stops at the first rung that
// decides: user memory, the ensemble of sub-models, a single strong
// sub-model, a plain keyword hit, ranked suggestions, and finally the
// fallback policy. The engine reads user history through
// service.TagMemoryStore and never writes to it.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
	"github.com/Veraticus/spice-tagger/internal/service"
)

// FallbackPolicy decides what happens when nothing clears a threshold.
type FallbackPolicy string

// Fallback policies.
const (
	// FallbackNone returns an empty no_suggestion prediction.
	FallbackNone FallbackPolicy = "none"
	// FallbackMiscellaneous assigns the catalog's fallback tag at low confidence.
	FallbackMiscellaneous FallbackPolicy = "miscellaneous"
)

// ParseFallbackPolicy parses a policy name.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(s); p {
	case FallbackNone, FallbackMiscellaneous:
		return p, nil
	case "":
		return FallbackNone, nil
	default:
		return "", fmt.Errorf("%w: unknown fallback policy %q", common.ErrInvalidConfig, s)
	}
}

// Config holds configuration options for the engine.
type Config struct {
	FallbackPolicy FallbackPolicy
	Thresholds     Thresholds
	// StoreTimeout bounds each store read. Zero means no bound.
	StoreTimeout time.Duration
	// Sequential runs sub-models one after another instead of concurrently.
	Sequential bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FallbackPolicy: FallbackNone,
		Thresholds:     DefaultThresholds(),
		StoreTimeout:   2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseFallbackPolicy(string(c.FallbackPolicy)); err != nil {
		return err
	}
	if c.StoreTimeout < 0 {
		return fmt.Errorf("%w: store timeout cannot be negative", common.ErrInvalidConfig)
	}
	return c.Thresholds.Validate()
}

// Engine predicts tags. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	store       service.TagMemoryStore
	catalog     *catalog.Catalog
	feature     *FeatureModel
	semantic    *SemanticModel
	statistical *StatisticalModel
	ensemble    *Ensemble
	memory      *MemoryResolver
	keyword     *KeywordMatcher
	config      Config
}

// Trace explains how a prediction was reached.
type Trace struct {
	Memory     *MemoryMatch    `json:"memory,omitempty"`
	Ensemble   *EnsembleResult `json:"ensemble,omitempty"`
	Keyword    *KeywordMatch   `json:"keyword,omitempty"`
	MemoryErr  error           `json:"-"`
	Normalized string          `json:"normalized"`
}

// New creates an engine with the default configuration.
func New(store service.TagMemoryStore, c *catalog.Catalog) *Engine {
	e, err := NewWithConfig(store, c, DefaultConfig())
	if err != nil {
		panic("engine: default configuration rejected: " + err.Error())
	}
	return e
}

// NewWithConfig creates an engine with custom configuration. A nil catalog
// means the built-in one; a nil store disables memory and statistics.
func NewWithConfig(store service.TagMemoryStore, c *catalog.Catalog, config Config) (*Engine, error) {
	if config.FallbackPolicy == "" {
		config.FallbackPolicy = FallbackNone
	}
	if config.Thresholds == (Thresholds{}) {
		config.Thresholds = DefaultThresholds()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = catalog.Default()
	}

	e := &Engine{
		store:       store,
		catalog:     c,
		feature:     NewFeatureModel(c),
		semantic:    NewSemanticModel(c),
		statistical: NewStatisticalModel(),
		memory:      NewMemoryResolver(store, config.StoreTimeout),
		keyword:     NewKeywordMatcher(c),
		config:      config,
	}
	e.ensemble = NewEnsemble(config.Thresholds.MinContribution, config.Sequential,
		e.feature, e.semantic, e.statistical)

	return e, nil
}

// Catalog returns the catalog the engine scores against.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// PredictCategory returns the prediction for one payee. It never fails:
// every problem is logged and reflected in the returned prediction.
func (e *Engine) PredictCategory(ctx context.Context, userID, payeeRaw string) model.Prediction {
	p, _ := e.Explain(ctx, userID, payeeRaw)
	return p
}

// Explain is PredictCategory plus the intermediate results behind it.
func (e *Engine) Explain(ctx context.Context, userID, payeeRaw string) (model.Prediction, Trace) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = common.WithLogger(ctx, common.LoggerFromContext(ctx).With("user_id", userID))
	th := e.config.Thresholds

	payee := normalize.Payee(payeeRaw)
	trace := Trace{Normalized: payee}
	if payee == "" {
		return e.done(ctx, model.Empty(model.SourceFallbackEmpty)), trace
	}

	history := NewHistory(ctx, e.store, userID, e.config.StoreTimeout)

	match, err := e.memory.Resolve(ctx, userID, payee, history)
	if err != nil {
		trace.MemoryErr = err
		common.LogWarn(ctx, err, "User memory unavailable, continuing without it", common.Fields{"payee": payee})
	}
	if match != nil {
		trace.Memory = match
		return e.done(ctx, model.Decided(match.Record.Tag, th.MemoryConfidence, match.Source())), trace
	}

	ens := e.ensemble.Predict(ctx, Query{UserID: userID, Payee: payee, History: history})
	trace.Ensemble = ens
	if ens.Tag != "" && clears(ens.Confidence, th.Ensemble.AutoAssign) {
		return e.done(ctx, model.Decided(ens.Tag, ens.Confidence, model.SourceAIEnsemble)), trace
	}

	if p, ok := e.singleModel(ens); ok {
		return e.done(ctx, p), trace
	}

	kw := e.keyword.Match(payee)
	trace.Keyword = kw
	if kw != nil && clears(kw.Confidence, th.Keyword.AutoAssign) {
		return e.done(ctx, model.Decided(kw.Tag, kw.Confidence, model.SourceKeywordSuggestion)), trace
	}

	if suggestions := e.suggestions(ens, kw); len(suggestions) > 0 {
		return e.done(ctx, model.Undecided(suggestions)), trace
	}

	return e.done(ctx, e.fallback()), trace
}

// singleModel lets a strong feature or semantic vote decide on its own when
// weaker, disagreeing votes held the ensemble sum down.
func (e *Engine) singleModel(ens *EnsembleResult) (model.Prediction, bool) {
	th := e.config.Thresholds

	var best *Result
	var source model.Source
	if f := ens.Vote(ModelFeature); f != nil && clears(f.Confidence, th.Feature.AutoAssign) {
		best, source = f, model.SourceFeatureAuto
	}
	if s := ens.Vote(ModelSemantic); s != nil && clears(s.Confidence, th.Semantic.AutoAssign) {
		if best == nil || s.Confidence > best.Confidence {
			best, source = s, model.SourceSemanticAuto
		}
	}
	if best == nil {
		return model.Prediction{}, false
	}
	return model.Decided(best.Tag, best.Confidence, source), true
}

// suggestions collects every candidate above its suggestion cutoff, highest
// first, keeping one entry per category.
func (e *Engine) suggestions(ens *EnsembleResult, kw *KeywordMatch) []model.Suggestion {
	th := e.config.Thresholds
	var out []model.Suggestion

	if ens.Tag != "" && clears(ens.Confidence, th.Ensemble.Suggestion) {
		out = append(out, model.Suggestion{Category: ens.Tag, Confidence: ens.Confidence, Source: model.SourceAIEnsemble})
	}
	if f := ens.Vote(ModelFeature); f != nil && clears(f.Confidence, th.Feature.Suggestion) {
		out = append(out, model.Suggestion{Category: f.Tag, Confidence: f.Confidence, Source: model.SourceFeatureAuto})
	}
	if s := ens.Vote(ModelSemantic); s != nil && clears(s.Confidence, th.Semantic.Suggestion) {
		out = append(out, model.Suggestion{Category: s.Tag, Confidence: s.Confidence, Source: model.SourceSemanticAuto})
	}
	if kw != nil && clears(kw.Confidence, th.Keyword.Suggestion) {
		out = append(out, model.Suggestion{Category: kw.Tag, Confidence: kw.Confidence, Source: model.SourceKeywordSuggestion})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})

	seen := make(map[string]bool, len(out))
	deduped := out[:0]
	for _, s := range out {
		if seen[s.Category] {
			continue
		}
		seen[s.Category] = true
		deduped = append(deduped, s)
	}
	return deduped
}

func (e *Engine) fallback() model.Prediction {
	if e.config.FallbackPolicy == FallbackMiscellaneous {
		if tag, ok := e.catalog.Fallback(); ok {
			return model.Decided(tag, e.config.Thresholds.FallbackConfidence, model.SourceFallback)
		}
	}
	return model.Empty(model.SourceNoSuggestion)
}

func (e *Engine) done(ctx context.Context, p model.Prediction) model.Prediction {
	category, _ := p.Category()
	common.LogDebug(ctx, "Prediction complete", common.Fields{
		"outcome":     p.Outcome().String(),
		"source":      string(p.Source()),
		"category":    category,
		"confidence":  p.Confidence(),
		"suggestions": len(p.Suggestions()),
	})
	return p
}
