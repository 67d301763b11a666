package sheets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/service"
)

var detailHeader = []any{"Date", "Payee", "Amount", "Outcome", "Category", "Source", "Confidence", "Suggestions", "Confirmed Tag"}

// ReportWriter publishes a batch prediction report.
type ReportWriter interface {
	Write(ctx context.Context, report *Report) error
}

// Report is one batch run ready for export.
type Report struct {
	GeneratedAt time.Time
	Stats       *service.BatchStats
	RunID       string
	UserID      string
	Results     []model.BatchResult
}

// rows flattens the report into sheet rows: title, summary, per-source and
// per-category breakdowns, then one line per transaction in input order.
func (r *Report) rows() [][]any {
	stats := r.Stats
	if stats == nil {
		stats = &service.BatchStats{}
	}

	values := make([][]any, 0, 16+len(stats.BySource)+len(stats.ByCategory)+len(r.Results))

	values = append(values,
		[]any{"Tag Prediction Report", r.GeneratedAt.Format("Jan 2, 2006 15:04")},
		[]any{"Run", r.RunID, "User", r.UserID},
		[]any{},
		[]any{"Summary"},
		[]any{"Total", stats.Total},
		[]any{"Decided", stats.Decided},
		[]any{"Undecided", stats.Undecided},
		[]any{"Empty", stats.Empty},
		[]any{"Confirmed", stats.Confirmed},
		[]any{},
		[]any{"Source", "Count"},
	)

	// Sources keep the engine's decision order.
	for _, source := range model.Sources {
		if count := stats.BySource[source]; count > 0 {
			values = append(values, []any{string(source), count})
		}
	}

	values = append(values,
		[]any{},
		[]any{"Category", "Count"},
	)

	categories := make([]string, 0, len(stats.ByCategory))
	for category := range stats.ByCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		ci, cj := stats.ByCategory[categories[i]], stats.ByCategory[categories[j]]
		if ci != cj {
			return ci > cj
		}
		return categories[i] < categories[j]
	})
	for _, category := range categories {
		values = append(values, []any{category, stats.ByCategory[category]})
	}

	values = append(values,
		[]any{},
		detailHeader,
	)

	for _, res := range r.Results {
		category, _ := res.Prediction.Category()
		date := ""
		if !res.Transaction.Date.IsZero() {
			date = res.Transaction.Date.Format("2006-01-02")
		}
		values = append(values, []any{
			date,
			res.Transaction.Payee(),
			res.Transaction.Amount,
			res.Prediction.Outcome().String(),
			category,
			string(res.Prediction.Source()),
			fmt.Sprintf("%.2f", res.Prediction.Confidence()),
			formatSuggestions(res.Prediction.Suggestions()),
			res.ConfirmedTag,
		})
	}

	return values
}

func formatSuggestions(suggestions []model.Suggestion) string {
	parts := make([]string, len(suggestions))
	for i, s := range suggestions {
		parts[i] = fmt.Sprintf("%s (%.2f)", s.Category, s.Confidence)
	}
	return strings.Join(parts, ", ")
}
