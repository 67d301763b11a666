// Package service defines the interfaces shared between the engine and its hosts.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-tagger/internal/model"
)

// TagMemoryStore is everything the prediction engine reads from persistence,
// plus the write-back the host invokes after a user confirms a tag.
type TagMemoryStore interface {
	// GetUserTag returns the best confirmed record for an exact normalized payee.
	// It returns an error wrapping common.ErrNotFound when none exists.
	GetUserTag(ctx context.Context, userID, normalizedPayee string) (*model.UserTagMemory, error)
	// GetUserPredictions returns all of a user's records in insertion order.
	GetUserPredictions(ctx context.Context, userID string) ([]model.UserTagMemory, error)
	// SaveUserTag normalizes rawPayee and adds weight to the (user, payee, tag) count.
	SaveUserTag(ctx context.Context, userID, rawPayee, tag string, weight int) error
}

// Storage defines the contract for the host's persistence layer.
type Storage interface {
	TagMemoryStore

	// DeleteUserTag removes every record for a normalized payee.
	DeleteUserTag(ctx context.Context, userID, normalizedPayee string) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// BatchStats summarizes one batch prediction run.
type BatchStats struct {
	BySource   map[model.Source]int
	ByCategory map[string]int
	Total      int
	Decided    int
	Undecided  int
	Empty      int
	Confirmed  int
	Duration   time.Duration
}
