// Package batch predicts tags for a whole statement of transactions.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
	"github.com/Veraticus/spice-tagger/internal/service"
	"github.com/Veraticus/spice-tagger/internal/sheets"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
)

// Predictor is the part of the engine a batch needs.
type Predictor interface {
	PredictCategory(ctx context.Context, userID, payee string) model.Prediction
}

// ReviewFunc settles a prediction interactively. It returns the chosen tag,
// or ok=false when the user skipped.
type ReviewFunc func(ctx context.Context, tx model.Transaction, p model.Prediction) (tag string, ok bool, err error)

// Options configures batch behavior.
type Options struct {
	// Review is called for every payee the engine did not decide. Nil skips review.
	Review ReviewFunc
	// Progress is called once per predicted payee, from worker goroutines.
	Progress func()
	UserID   string
	Workers  int
	// SkipCredits drops inflows before prediction.
	SkipCredits bool
	// ConfirmDecided writes decided predictions back to the store.
	ConfirmDecided bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:     runtime.GOMAXPROCS(0),
		SkipCredits: true,
	}
}

// Result is one finished batch run.
type Result struct {
	RunID   string
	UserID  string
	Results []model.BatchResult
	Stats   service.BatchStats
}

// Report converts the run into an exportable report.
func (r *Result) Report(generatedAt time.Time) *sheets.Report {
	stats := r.Stats
	return &sheets.Report{
		GeneratedAt: generatedAt,
		Stats:       &stats,
		RunID:       r.RunID,
		UserID:      r.UserID,
		Results:     r.Results,
	}
}

// Runner predicts tags for many transactions at once.
type Runner struct {
	predictor Predictor
	store     service.TagMemoryStore
}

// NewRunner creates a runner. store is only used for write-back and may be
// nil when nothing is confirmed.
func NewRunner(predictor Predictor, store service.TagMemoryStore) *Runner {
	return &Runner{predictor: predictor, store: store}
}

// payeeGroup is every transaction sharing one normalized payee.
type payeeGroup struct {
	prediction   model.Prediction
	key          string
	confirmedTag string
	indexes      []int
}

// Run predicts every transaction, once per distinct normalized payee, and
// returns the results in input order.
func (r *Runner) Run(ctx context.Context, transactions []model.Transaction, opts Options) (*Result, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", common.ErrInvalidInput)
	}
	if (opts.ConfirmDecided || opts.Review != nil) && r.store == nil {
		return nil, fmt.Errorf("%w: write-back needs a store", common.ErrInvalidConfig)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	startTime := time.Now()
	runID := uuid.NewString()
	ctx = common.WithLogger(ctx, common.LoggerFromContext(ctx).With("run_id", runID, "user_id", opts.UserID))

	kept := filterCredits(transactions, opts.SkipCredits)
	groups := groupByPayee(kept)

	common.LogInfo(ctx, "Starting batch prediction", common.Fields{
		"transactions":    len(kept),
		"skipped":         len(transactions) - len(kept),
		"unique_payees":   len(groups),
		"workers":         opts.Workers,
		"confirm_decided": opts.ConfirmDecided,
	})

	mapper := iter.Mapper[*payeeGroup, model.Prediction]{MaxGoroutines: opts.Workers}
	predictions := mapper.Map(groups, func(g **payeeGroup) model.Prediction {
		if ctx.Err() != nil {
			return model.Empty(model.SourceNoSuggestion)
		}
		p := r.predictor.PredictCategory(ctx, opts.UserID, kept[(*g).indexes[0]].Payee())
		if opts.Progress != nil {
			opts.Progress()
		}
		return p
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch canceled: %w", err)
	}
	for i, g := range groups {
		g.prediction = predictions[i]
	}

	if opts.ConfirmDecided {
		r.confirmDecided(ctx, kept, groups, opts.UserID)
	}

	if opts.Review != nil {
		if err := r.review(ctx, kept, groups, opts); err != nil {
			return nil, err
		}
	}

	result := &Result{
		RunID:   runID,
		UserID:  opts.UserID,
		Results: make([]model.BatchResult, len(kept)),
	}
	for _, g := range groups {
		for _, idx := range g.indexes {
			result.Results[idx] = model.BatchResult{
				Transaction:  kept[idx],
				Prediction:   g.prediction,
				ConfirmedTag: g.confirmedTag,
				Confirmed:    g.confirmedTag != "",
			}
		}
	}
	result.Stats = Summarize(result.Results)
	result.Stats.Duration = time.Since(startTime)

	common.LogInfo(ctx, "Batch prediction complete", common.Fields{
		"total":     result.Stats.Total,
		"decided":   result.Stats.Decided,
		"undecided": result.Stats.Undecided,
		"empty":     result.Stats.Empty,
		"confirmed": result.Stats.Confirmed,
		"duration":  result.Stats.Duration.String(),
	})

	return result, nil
}

// PayeeCount returns how many predictions Run will make for transactions,
// which is the number of Progress calls to expect.
func PayeeCount(transactions []model.Transaction, skipCredits bool) int {
	return len(groupByPayee(filterCredits(transactions, skipCredits)))
}

func filterCredits(transactions []model.Transaction, skip bool) []model.Transaction {
	kept := make([]model.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if skip && tx.IsCredit() {
			continue
		}
		kept = append(kept, tx)
	}
	return kept
}

// groupByPayee groups transaction indexes by normalized payee, in order of
// first appearance. Payees normalizing to nothing each get their own group.
func groupByPayee(transactions []model.Transaction) []*payeeGroup {
	var groups []*payeeGroup
	byKey := make(map[string]*payeeGroup)

	for i, tx := range transactions {
		key := normalize.Payee(tx.Payee())
		if key == "" {
			groups = append(groups, &payeeGroup{indexes: []int{i}})
			continue
		}
		if g, ok := byKey[key]; ok {
			g.indexes = append(g.indexes, i)
			continue
		}
		g := &payeeGroup{key: key, indexes: []int{i}}
		byKey[key] = g
		groups = append(groups, g)
	}

	return groups
}

// confirmDecided remembers each decided payee once. Fallback guesses are
// not learned.
func (r *Runner) confirmDecided(ctx context.Context, transactions []model.Transaction, groups []*payeeGroup, userID string) {
	for _, g := range groups {
		category, ok := g.prediction.Category()
		if !ok || g.key == "" || g.prediction.Source() == model.SourceFallback {
			continue
		}
		payee := transactions[g.indexes[0]].Payee()
		if err := r.store.SaveUserTag(ctx, userID, payee, category, 1); err != nil {
			common.LogWarn(ctx, err, "Failed to remember decided tag", common.Fields{
				"payee": payee,
				"tag":   category,
			})
			continue
		}
		g.confirmedTag = category
	}
}

// review asks about every payee the engine left undecided or empty. The
// engine's prediction is kept; the chosen tag is recorded as confirmed.
func (r *Runner) review(ctx context.Context, transactions []model.Transaction, groups []*payeeGroup, opts Options) error {
	for _, g := range groups {
		if g.prediction.Outcome() == model.OutcomeDecided || g.key == "" {
			continue
		}
		tx := transactions[g.indexes[0]]

		tag, ok, err := opts.Review(ctx, tx, g.prediction)
		if err != nil {
			return fmt.Errorf("review failed: %w", err)
		}
		if !ok {
			continue
		}

		if err := r.store.SaveUserTag(ctx, opts.UserID, tx.Payee(), tag, 1); err != nil {
			common.LogWarn(ctx, err, "Failed to remember reviewed tag", common.Fields{
				"payee": tx.Payee(),
				"tag":   tag,
			})
			continue
		}
		g.confirmedTag = tag
	}
	return nil
}

// Summarize counts outcomes, sources and decided categories.
func Summarize(results []model.BatchResult) service.BatchStats {
	stats := service.BatchStats{
		BySource:   make(map[model.Source]int),
		ByCategory: make(map[string]int),
		Total:      len(results),
	}

	for _, res := range results {
		stats.BySource[res.Prediction.Source()]++
		switch res.Prediction.Outcome() {
		case model.OutcomeDecided:
			stats.Decided++
			category, _ := res.Prediction.Category()
			stats.ByCategory[category]++
		case model.OutcomeUndecided:
			stats.Undecided++
		default:
			stats.Empty++
		}
		if res.Confirmed {
			stats.Confirmed++
		}
	}

	return stats
}
