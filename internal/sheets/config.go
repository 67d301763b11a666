// Package sheets exports batch prediction reports to Google Sheets.
package sheets

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-tagger/internal/common"
)

// DefaultSpreadsheetName is used when a new spreadsheet has to be created.
const DefaultSpreadsheetName = "Tag Predictions"

// AuthMode says how the writer obtains Google credentials.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthOAuth
	AuthServiceAccount
	AuthConflicting
)

// Config holds the configuration for the Google Sheets writer. Exactly one
// of the OAuth triple or ServiceAccountPath must be set.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string

	SpreadsheetID   string
	SpreadsheetName string
	TimeZone        string

	BatchSize        int
	RetryAttempts    int
	RetryDelay       time.Duration
	EnableFormatting bool
}

// DefaultConfig returns a Config without credentials.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  DefaultSpreadsheetName,
		TimeZone:         "Asia/Kuala_Lumpur",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		EnableFormatting: true,
	}
}

// AuthMode reports which credentials are configured. Partial OAuth
// credentials count as none.
func (c *Config) AuthMode() AuthMode {
	oauth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	switch {
	case oauth && c.ServiceAccountPath != "":
		return AuthConflicting
	case oauth:
		return AuthOAuth
	case c.ServiceAccountPath != "":
		return AuthServiceAccount
	default:
		return AuthNone
	}
}

// Validate checks credentials and the write settings.
func (c *Config) Validate() error {
	switch c.AuthMode() {
	case AuthNone:
		return fmt.Errorf("%w: no authentication method configured", common.ErrMissingConfig)
	case AuthConflicting:
		return fmt.Errorf("%w: multiple authentication methods configured; use either OAuth2 or service account", common.ErrInvalidConfig)
	}

	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", common.ErrInvalidConfig)
	case c.RetryAttempts < 0:
		return fmt.Errorf("%w: retry attempts cannot be negative", common.ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}
