package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
	"github.com/Veraticus/spice-tagger/internal/service"
	"github.com/Veraticus/spice-tagger/internal/similarity"
)

// Weights of the fuzzy memory signals. They sum to 1.
const (
	characterWeight   = 0.4
	jaroWinklerWeight = 0.3
	substringWeight   = 0.2
	frequencyWeight   = 0.1

	// frequencySaturation is the confirmation count that earns the full frequency signal.
	frequencySaturation = 5
)

// MatchType says how a memory record matched.
type MatchType string

// Memory match types.
const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
)

// Signals are the independent similarity measures between a payee and a stored key.
type Signals struct {
	Character   float64 `json:"character"`
	JaroWinkler float64 `json:"jaro_winkler"`
	Substring   float64 `json:"substring"`
	Frequency   float64 `json:"frequency"`
}

// Combined returns the weighted sum of the signals.
func (s Signals) Combined() float64 {
	return characterWeight*s.Character +
		jaroWinklerWeight*s.JaroWinkler +
		substringWeight*s.Substring +
		frequencyWeight*s.Frequency
}

// MemoryMatch is a user memory record the resolver accepted.
type MemoryMatch struct {
	Record    model.UserTagMemory `json:"record"`
	Type      MatchType           `json:"type"`
	Compared  string              `json:"compared,omitempty"`
	Signals   Signals             `json:"signals"`
	Score     float64             `json:"score"`
	Threshold float64             `json:"threshold"`
}

// Source maps the match type onto a prediction source.
func (m *MemoryMatch) Source() model.Source {
	if m.Type == MatchExact {
		return model.SourceUserMemoryExact
	}
	return model.SourceUserMemoryFuzzy
}

// MemoryThreshold is the combined score a fuzzy match needs for a query of
// the given rune length. Short strings need near-exact matches.
func MemoryThreshold(queryLen int) float64 {
	switch {
	case queryLen <= 3:
		return 0.92
	case queryLen <= 5:
		return 0.85
	default:
		return 0.75
	}
}

// MemoryResolver looks a payee up in a user's confirmed tags.
type MemoryResolver struct {
	store   service.TagMemoryStore
	timeout time.Duration
}

// NewMemoryResolver creates a resolver. A nil store resolves nothing.
func NewMemoryResolver(store service.TagMemoryStore, timeout time.Duration) *MemoryResolver {
	return &MemoryResolver{store: store, timeout: timeout}
}

// Resolve tries an exact lookup first and only scans the user's history when
// it misses. A nil match with a nil error means no memory applies. Any store
// failure is returned and no match is made. Anonymous callers have no memory.
func (r *MemoryResolver) Resolve(ctx context.Context, userID, payee string, history *History) (*MemoryMatch, error) {
	if r.store == nil || userID == "" || payee == "" {
		return nil, nil
	}

	record, err := readWithTimeout(ctx, r.timeout, func(ctx context.Context) (*model.UserTagMemory, error) {
		return r.store.GetUserTag(ctx, userID, payee)
	})
	switch {
	case err == nil && record != nil:
		return &MemoryMatch{
			Record:    *record,
			Type:      MatchExact,
			Compared:  payee,
			Signals:   Signals{Character: 1, JaroWinkler: 1, Substring: 1, Frequency: frequency(record.Count)},
			Score:     1,
			Threshold: MemoryThreshold(normalize.Len(payee)),
		}, nil
	case errors.Is(err, context.DeadlineExceeded):
		history.MarkUnavailable(err)
		return nil, fmt.Errorf("exact memory lookup timed out: %w", err)
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("exact memory lookup failed: %w", err)
	}

	records, err := history.Records()
	if err != nil {
		return nil, fmt.Errorf("memory history load failed: %w", err)
	}
	return BestFuzzyMatch(payee, records), nil
}

// BestFuzzyMatch scores every record against payee and returns the best one
// that clears its length threshold. Ties go to the earlier record.
func BestFuzzyMatch(payee string, records []model.UserTagMemory) *MemoryMatch {
	var best *MemoryMatch
	for _, rec := range records {
		key := normalize.Payee(rec.PayeeNormalized)
		if key == "" || rec.Tag == "" || rec.Count < 1 {
			continue
		}
		if candidate := scoreRecord(payee, key, rec); best == nil || candidate.beats(best) {
			best = candidate
		}
	}

	if best == nil || !clears(best.Score, best.Threshold) {
		return nil
	}
	return best
}

// scoreRecord compares the stored key with the whole payee and, when the key
// has fewer words, with every run of the payee's words of the same length.
// The threshold follows the length of the compared part of the payee.
func scoreRecord(payee, key string, rec model.UserTagMemory) *MemoryMatch {
	match := &MemoryMatch{Record: rec, Type: MatchFuzzy}

	consider := func(segment string) {
		s := signals(segment, key, rec.Count)
		candidate := &MemoryMatch{
			Record:    rec,
			Type:      MatchFuzzy,
			Compared:  segment,
			Signals:   s,
			Score:     s.Combined(),
			Threshold: MemoryThreshold(normalize.Len(segment)),
		}
		if match.Compared == "" || candidate.beats(match) {
			match = candidate
		}
	}

	consider(payee)

	words := strings.Fields(payee)
	width := len(strings.Fields(key))
	if width > 0 && width < len(words) {
		for i := 0; i+width <= len(words); i++ {
			consider(strings.Join(words[i:i+width], " "))
		}
	}

	return match
}

// beats ranks a match that clears its own threshold above one that does not,
// then by score.
func (m *MemoryMatch) beats(other *MemoryMatch) bool {
	if pass, otherPass := m.accepted(), other.accepted(); pass != otherPass {
		return pass
	}
	return m.Score > other.Score
}

func (m *MemoryMatch) accepted() bool {
	return clears(m.Score, m.Threshold)
}

func signals(query, key string, count int) Signals {
	return Signals{
		Character:   similarity.Character(query, key),
		JaroWinkler: similarity.JaroWinkler(query, key),
		Substring:   similarity.Substring(query, key),
		Frequency:   frequency(count),
	}
}

func frequency(count int) float64 {
	return min(1, float64(count)/frequencySaturation)
}
