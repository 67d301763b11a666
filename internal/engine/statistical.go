package engine

import (
	"context"
	"fmt"
)

const (
	statisticalScale = 1.5
	statisticalCap   = 0.8
)

// TagDistribution is a user's confirmation count per tag.
type TagDistribution struct {
	counts map[string]int
	order  []string
	total  int
}

// Total returns the number of confirmations.
func (d TagDistribution) Total() int { return d.total }

// Count returns the confirmations of one tag.
func (d TagDistribution) Count(tag string) int { return d.counts[tag] }

// Top returns the most confirmed tag. Ties go to the tag seen first.
func (d TagDistribution) Top() (string, int) {
	var top string
	best := 0
	for _, tag := range d.order {
		if c := d.counts[tag]; c > best {
			top, best = tag, c
		}
	}
	return top, best
}

// StatisticalModel votes for the tag a user confirms most often.
type StatisticalModel struct{}

// NewStatisticalModel creates a statistical model.
func NewStatisticalModel() *StatisticalModel { return &StatisticalModel{} }

// Name implements SubModel.
func (m *StatisticalModel) Name() ModelName { return ModelStatistical }

// Load aggregates the history's records into a distribution.
func (m *StatisticalModel) Load(h *History) (TagDistribution, error) {
	records, err := h.Records()
	if err != nil {
		return TagDistribution{}, fmt.Errorf("failed to load user history: %w", err)
	}

	d := TagDistribution{counts: make(map[string]int)}
	for _, r := range records {
		if r.Count < 1 || r.Tag == "" {
			continue
		}
		if _, seen := d.counts[r.Tag]; !seen {
			d.order = append(d.order, r.Tag)
		}
		d.counts[r.Tag] += r.Count
		d.total += r.Count
	}
	return d, nil
}

// Predict implements SubModel. It abstains for users without history.
func (m *StatisticalModel) Predict(_ context.Context, q Query) (*Result, error) {
	d, err := m.Load(q.History)
	if err != nil {
		return nil, err
	}
	if d.total == 0 {
		return nil, nil
	}

	tag, count := d.Top()
	share := float64(count) / float64(d.total)
	return &Result{
		Model:      ModelStatistical,
		Tag:        tag,
		Confidence: min(statisticalCap, statisticalScale*share),
	}, nil
}
