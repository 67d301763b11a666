package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/spice-tagger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestWithRetry(t *testing.T) {
	opts := service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}

	tests := []struct {
		op        func(calls *int) error
		wantErr   error
		name      string
		wantCalls int
	}{
		{
			name: "succeeds first try",
			op: func(_ *int) error {
				return nil
			},
			wantCalls: 1,
		},
		{
			name: "succeeds after transient failures",
			op: func(calls *int) error {
				if *calls < 3 {
					return errFlaky
				}
				return nil
			},
			wantCalls: 3,
		},
		{
			name: "gives up after max attempts",
			op: func(_ *int) error {
				return errFlaky
			},
			wantErr:   ErrMaxRetries,
			wantCalls: 3,
		},
		{
			name: "permanent error stops immediately",
			op: func(_ *int) error {
				return Permanent(errFlaky)
			},
			wantErr:   errFlaky,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				return tt.op(&calls)
			}, opts)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errFlaky }, service.RetryOptions{
		MaxAttempts:  5,
		InitialDelay: time.Second,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_Wait(t *testing.T) {
	b := newBackoff(service.RetryOptions{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     35 * time.Millisecond,
		Multiplier:   2,
	})

	assert.Equal(t, 3, b.opts.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, b.wait(errFlaky))
	assert.Equal(t, 20*time.Millisecond, b.wait(errFlaky))
	assert.Equal(t, 35*time.Millisecond, b.wait(errFlaky))
	assert.Equal(t, 35*time.Millisecond, b.wait(errFlaky))

	b = newBackoff(service.RetryOptions{InitialDelay: time.Millisecond, MaxDelay: time.Second})
	assert.Equal(t, time.Second, b.wait(ErrPlaidRateLimit), "rate limits wait the longest")
}
