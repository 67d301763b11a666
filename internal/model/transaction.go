package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TransactionTypeCredit marks money flowing in, which has no spending tag.
const TransactionTypeCredit = "CREDIT"

// Transaction is an imported statement line whose payee needs a tag.
type Transaction struct {
	Date         time.Time
	ID           string
	Name         string // Raw transaction description
	MerchantName string // Cleaned merchant name
	AccountID    string
	Hash         string
	Type         string
	Amount       float64
}

// Payee returns the text the engine should categorize.
func (t *Transaction) Payee() string {
	if strings.TrimSpace(t.MerchantName) != "" {
		return t.MerchantName
	}
	return t.Name
}

// IsCredit reports whether the transaction is an inflow.
func (t *Transaction) IsCredit() bool {
	return t.Type == TransactionTypeCredit
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Payee(),
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// BatchResult pairs an imported transaction with its prediction.
type BatchResult struct {
	Transaction Transaction
	Prediction  Prediction
	// ConfirmedTag is the tag written back to the user's memory, if any.
	ConfirmedTag string
	Confirmed    bool
}
