package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

// MemoryStore is an in-memory service.TagMemoryStore. Error fields make the
// corresponding read or write fail, and Delay stalls reads without honoring
// the context so that callers must enforce their own deadline.
type MemoryStore struct {
	GetTagErr         error
	GetPredictionsErr error
	SaveErr           error
	records           []model.UserTagMemory
	Delay             time.Duration
	getTagCalls       int
	predictionCalls   int
	saveCalls         int
	mu                sync.Mutex
	now               time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Seed records count confirmations of tag for payee.
func (s *MemoryStore) Seed(userID, payee, tag string, count int) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(userID, normalize.Payee(payee), tag, count)
	return s
}

// GetUserTag implements service.TagMemoryStore.
func (s *MemoryStore) GetUserTag(_ context.Context, userID, normalizedPayee string) (*model.UserTagMemory, error) {
	s.count(&s.getTagCalls)
	s.stall()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetTagErr != nil {
		return nil, s.GetTagErr
	}

	var best *model.UserTagMemory
	for i := range s.records {
		rec := s.records[i]
		if rec.UserID != userID || rec.PayeeNormalized != normalizedPayee {
			continue
		}
		if best == nil || rec.Count > best.Count ||
			(rec.Count == best.Count && !rec.UpdatedAt.Before(best.UpdatedAt)) {
			best = &rec
		}
	}
	if best == nil {
		return nil, fmt.Errorf("user tag for %q: %w", normalizedPayee, common.ErrNotFound)
	}
	return best, nil
}

// GetUserPredictions implements service.TagMemoryStore.
func (s *MemoryStore) GetUserPredictions(_ context.Context, userID string) ([]model.UserTagMemory, error) {
	s.count(&s.predictionCalls)
	s.stall()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetPredictionsErr != nil {
		return nil, s.GetPredictionsErr
	}

	var out []model.UserTagMemory
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SaveUserTag implements service.TagMemoryStore.
func (s *MemoryStore) SaveUserTag(_ context.Context, userID, rawPayee, tag string, weight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++

	if s.SaveErr != nil {
		return s.SaveErr
	}
	if weight < 1 {
		return fmt.Errorf("%w: weight %d", common.ErrInvalidInput, weight)
	}
	s.upsert(userID, normalize.Payee(rawPayee), tag, weight)
	return nil
}

// Calls reports how many times each read and write was invoked.
func (s *MemoryStore) Calls() (getTag, predictions, save int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTagCalls, s.predictionCalls, s.saveCalls
}

// Records returns a copy of everything stored.
func (s *MemoryStore) Records() []model.UserTagMemory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserTagMemory, len(s.records))
	copy(out, s.records)
	return out
}

// count records a call on entry, so reads abandoned by a timeout still show.
func (s *MemoryStore) count(calls *int) {
	s.mu.Lock()
	*calls++
	s.mu.Unlock()
}

func (s *MemoryStore) stall() {
	s.mu.Lock()
	d := s.Delay
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// upsert must be called with mu held.
func (s *MemoryStore) upsert(userID, payee, tag string, count int) {
	if s.now.IsZero() {
		s.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	s.now = s.now.Add(time.Second)

	for i := range s.records {
		rec := &s.records[i]
		if rec.UserID == userID && rec.PayeeNormalized == payee && rec.Tag == tag {
			rec.Count += count
			rec.LastConfidence = 1.0
			rec.UpdatedAt = s.now
			return
		}
	}
	s.records = append(s.records, model.UserTagMemory{
		UserID:          userID,
		PayeeNormalized: payee,
		Tag:             tag,
		Count:           count,
		LastConfidence:  1.0,
		UpdatedAt:       s.now,
	})
}
