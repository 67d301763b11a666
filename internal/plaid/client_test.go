package plaid

import (
	"context"
	"testing"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{ClientID: "id", Secret: "secret", Environment: "sandbox", AccessToken: "token"}

	tests := []struct {
		mutate func(*Config)
		name   string
		errMsg string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "production", mutate: func(c *Config) { c.Environment = "production" }},
		{name: "missing client ID", mutate: func(c *Config) { c.ClientID = "" }, errMsg: "plaid client ID is required"},
		{name: "missing secret", mutate: func(c *Config) { c.Secret = "" }, errMsg: "plaid secret is required"},
		{name: "missing access token", mutate: func(c *Config) { c.AccessToken = "" }, errMsg: "plaid access token is required"},
		{name: "missing environment", mutate: func(c *Config) { c.Environment = "" }, errMsg: "plaid environment is required"},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "development" }, errMsg: "invalid Plaid environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{ClientID: "id", Secret: "secret", Environment: "sandbox", AccessToken: "token"})
	require.NoError(t, err)

	_, err = NewClient(Config{ClientID: "id"})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestClient_GetTransactions_Validation(t *testing.T) {
	c, err := NewClient(Config{ClientID: "id", Secret: "secret", Environment: "sandbox", AccessToken: "token"})
	require.NoError(t, err)

	now := time.Now()
	_, err = c.GetTransactions(context.Background(), now, now.Add(-24*time.Hour))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	//nolint:staticcheck // exercising the nil guard
	_, err = c.GetTransactions(nil, now.Add(-time.Hour), now)
	assert.Error(t, err)
}

func TestCleanMerchantName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"STARBUCKS STORE", "Starbucks Store"},
		{"GRAB   MALAYSIA 1234567890", "Grab Malaysia"},
		{"Tesco Stores Sdn Bhd", "Tesco Stores"},
		{"ACME CORP LLC", "Acme"},
		{"GUARDIAN 12345", "Guardian 12345"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanMerchantName(tt.input))
		})
	}
}

func TestMapPlaidTransaction(t *testing.T) {
	pt := plaid.Transaction{}
	pt.SetTransactionId("txn-1")
	pt.SetAccountId("acc-1")
	pt.SetDate("2024-02-03")
	pt.SetName("GRAB RIDE 99887766")
	pt.SetAmount(12.5)
	pt.SetPaymentChannel("online")

	tx := mapPlaidTransaction(context.Background(), pt)
	assert.Equal(t, "txn-1", tx.ID)
	assert.Equal(t, "acc-1", tx.AccountID)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, "Grab Ride", tx.MerchantName)
	assert.Equal(t, "GRAB RIDE 99887766", tx.Name)
	assert.InDelta(t, 12.5, tx.Amount, 1e-9)
	assert.Equal(t, TypeOnline, tx.Type)
	assert.NotEmpty(t, tx.Hash)

	pt.SetAmount(-40)
	tx = mapPlaidTransaction(context.Background(), pt)
	assert.Equal(t, TypeCredit, tx.Type)
	assert.InDelta(t, 40, tx.Amount, 1e-9)
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.GetTransactionsFn = func(context.Context, time.Time, time.Time) ([]model.Transaction, error) {
		return []model.Transaction{{Name: "Grab"}}, nil
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns, err := m.GetTransactions(context.Background(), start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	require.Len(t, m.GetTransactionsCalls, 1)
	assert.Equal(t, start, m.GetTransactionsCalls[0].StartDate)

	accounts, err := m.GetAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, 1, m.GetAccountsCalls)
}
