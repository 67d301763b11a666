// Package plaid fetches bank feed transactions whose payees need tags.
package plaid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/service"
)

// Transaction types derived from the payment channel.
const (
	TypeOnline = "ONLINE"
	TypePOS    = "POS"
	TypeCheck  = "CHECK"
	TypeOther  = "OTHER"
	TypeCredit = model.TransactionTypeCredit
)

const pageSize = int32(500) // Plaid's max page size

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("plaid access token is required")
	}
	return validateEnvironment(c.Environment)
}

func validateEnvironment(env string) error {
	switch env {
	case "":
		return fmt.Errorf("plaid environment is required")
	case "sandbox", "production":
		return nil
	default:
		return fmt.Errorf("invalid Plaid environment: must be sandbox or production")
	}
}

// Client implements the TransactionFetcher interface.
type Client struct {
	client      *plaid.APIClient
	retryOpts   service.RetryOptions
	accessToken string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions fetches transactions from Plaid within the specified date range.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", common.ErrInvalidInput)
	}

	ctx = common.WithLogger(ctx, common.LoggerFromContext(ctx).With("component", "plaid"))
	common.LogInfo(ctx, "Fetching transactions from Plaid", common.Fields{
		"start_date": startDate.Format("2006-01-02"),
		"end_date":   endDate.Format("2006-01-02"),
	})

	var all []plaid.Transaction
	offset := int32(0)

	for {
		var page []plaid.Transaction

		err := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.classifyError(ctx, err, "failed to fetch transactions")
			}

			page = resp.GetTransactions()
			common.LogDebug(ctx, "Fetched transaction batch", common.Fields{
				"count":  len(page),
				"offset": offset,
				"total":  resp.GetTotalTransactions(),
			})
			return nil
		}, c.retryOpts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	common.LogInfo(ctx, "Fetched all transactions", common.Fields{"count": len(all)})

	transactions := make([]model.Transaction, 0, len(all))
	for _, pt := range all {
		transactions = append(transactions, mapPlaidTransaction(ctx, pt))
	}
	return transactions, nil
}

// GetAccounts fetches account IDs from Plaid.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	var accounts []plaid.AccountBase
	err := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.classifyError(ctx, err, "failed to fetch accounts")
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.GetAccountId())
	}
	return ids, nil
}

// classifyError turns rate limits into retryable errors and everything else
// into permanent ones.
func (c *Client) classifyError(ctx context.Context, err error, msg string) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return common.Permanent(fmt.Errorf("%w: %s: %w", common.ErrPlaidConnection, msg, err))
	}
	if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		common.LogWarn(ctx, nil, "Rate limit hit, will retry", common.Fields{"error": plaidErr.ErrorMessage})
		return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, plaidErr.ErrorMessage), Retryable: true}
	}
	return common.Permanent(fmt.Errorf("%w: %s - %s", common.ErrPlaidConnection, plaidErr.ErrorCode, plaidErr.ErrorMessage))
}

// mapPlaidTransaction converts a Plaid transaction to our model. Plaid
// reports debits as positive amounts; credits are stored positive with
// TypeCredit.
func mapPlaidTransaction(ctx context.Context, pt plaid.Transaction) model.Transaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		common.LogWarn(ctx, err, "Failed to parse transaction date", common.Fields{"date": pt.GetDate()})
	}

	merchantName := pt.GetMerchantName()
	if merchantName == "" {
		merchantName = pt.GetName()
	}

	txType := ""
	switch pt.GetPaymentChannel() {
	case "":
	case "online":
		txType = TypeOnline
	case "in store":
		txType = TypePOS
	default:
		txType = TypeOther
	}
	if pt.HasCheckNumber() && pt.GetCheckNumber() != "" && txType == "" {
		txType = TypeCheck
	}

	amount := pt.GetAmount()
	if amount < 0 {
		amount = -amount
		txType = TypeCredit
	}

	tx := model.Transaction{
		Date:         date,
		ID:           pt.GetTransactionId(),
		Name:         pt.GetName(),
		MerchantName: CleanMerchantName(merchantName),
		AccountID:    pt.GetAccountId(),
		Amount:       amount,
		Type:         txType,
	}
	tx.Hash = tx.GenerateHash()

	return tx
}

var corporateSuffixes = []string{
	" Llc", " Inc", " Corp", " Corporation", " Company", " Co", " Ltd", " Limited", " Sdn Bhd", " Bhd",
}

// CleanMerchantName title-cases a merchant name and strips trailing
// reference numbers and corporate suffixes, so that the same merchant reads
// the same across statements.
func CleanMerchantName(name string) string {
	name = cases.Title(language.Und).String(strings.ToLower(strings.Join(strings.Fields(name), " ")))

	parts := strings.Fields(name)
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) > 5 && isAllDigits(last) {
			parts = parts[:len(parts)-1]
		}
	}
	name = strings.Join(parts, " ")

	for changed := true; changed; {
		changed = false
		for _, suffix := range corporateSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}

	return strings.TrimSpace(name)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var _ TransactionFetcher = (*Client)(nil)
