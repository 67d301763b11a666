package plaid

import (
	"context"
	"time"

	"github.com/Veraticus/spice-tagger/internal/model"
)

// TransactionFetcher reads a linked item's transactions and accounts.
// Client talks to Plaid; MockClient serves canned data.
type TransactionFetcher interface {
	// GetTransactions returns every transaction dated within [startDate, endDate].
	GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
	// GetAccounts returns the IDs of the item's accounts.
	GetAccounts(ctx context.Context) ([]string, error)
}
