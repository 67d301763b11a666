package memories

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/spice-tagger/internal/service"
)

// Common user IDs used across tests.
const (
	UserAlice = "alice"
	UserBob   = "bob"
)

// Memory is one seeded confirmation: Count confirmations of Tag for Payee.
type Memory struct {
	UserID string
	Payee  string
	Tag    string
	Count  int
}

// Memories is an ordered list of confirmations.
type Memories []Memory

// Seed writes every confirmation to store in order.
func (m Memories) Seed(ctx context.Context, store service.TagMemoryStore) error {
	for _, mem := range m {
		if err := store.SaveUserTag(ctx, mem.UserID, mem.Payee, mem.Tag, mem.Count); err != nil {
			return fmt.Errorf("failed to seed %q -> %q: %w", mem.Payee, mem.Tag, err)
		}
	}
	return nil
}

// ForUser returns the confirmations belonging to userID.
func (m Memories) ForUser(userID string) Memories {
	var out Memories
	for _, mem := range m {
		if mem.UserID == userID {
			out = append(out, mem)
		}
	}
	return out
}

// Builder provides a fluent interface for constructing test memories.
type Builder interface {
	// WithConfirmation adds count confirmations of tag for payee.
	WithConfirmation(userID, payee, tag string, count int) Builder

	// WithFixture adds every confirmation in a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Memories returns the collected confirmations in insertion order.
	Memories() Memories

	// Build seeds store and returns what was written.
	Build(ctx context.Context, store service.TagMemoryStore) (Memories, error)
}

type memoryBuilder struct {
	t        *testing.T
	memories Memories
}

// NewBuilder creates a new memory builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &memoryBuilder{t: t}
}

func (b *memoryBuilder) WithConfirmation(userID, payee, tag string, count int) Builder {
	if count < 1 {
		b.t.Fatalf("confirmation count must be positive, got %d", count)
	}
	b.memories = append(b.memories, Memory{UserID: userID, Payee: payee, Tag: tag, Count: count})
	return b
}

func (b *memoryBuilder) WithFixture(fixture Fixture) Builder {
	b.memories = append(b.memories, fixture.Memories()...)
	return b
}

func (b *memoryBuilder) Memories() Memories {
	out := make(Memories, len(b.memories))
	copy(out, b.memories)
	return out
}

func (b *memoryBuilder) Build(ctx context.Context, store service.TagMemoryStore) (Memories, error) {
	b.t.Helper()
	mems := b.Memories()
	if err := mems.Seed(ctx, store); err != nil {
		return nil, err
	}
	return mems, nil
}
