package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-tagger/internal/sheets"
)

// sheetsSetting binds a Sheets field to its config key and its
// GOOGLE_SHEETS_* fallback variable.
type sheetsSetting struct {
	field func(c *sheets.Config) *string
	key   string
	env   string
	path  bool
}

var sheetsSettings = []sheetsSetting{
	{key: "service_account_path", env: "SERVICE_ACCOUNT_PATH", path: true,
		field: func(c *sheets.Config) *string { return &c.ServiceAccountPath }},
	{key: "client_id", env: "CLIENT_ID",
		field: func(c *sheets.Config) *string { return &c.ClientID }},
	{key: "client_secret", env: "CLIENT_SECRET",
		field: func(c *sheets.Config) *string { return &c.ClientSecret }},
	{key: "refresh_token", env: "REFRESH_TOKEN",
		field: func(c *sheets.Config) *string { return &c.RefreshToken }},
	{key: "spreadsheet_id", env: "SPREADSHEET_ID",
		field: func(c *sheets.Config) *string { return &c.SpreadsheetID }},
	{key: "spreadsheet_name", env: "SPREADSHEET_NAME",
		field: func(c *sheets.Config) *string { return &c.SpreadsheetName }},
	{key: "timezone", env: "TIMEZONE",
		field: func(c *sheets.Config) *string { return &c.TimeZone }},
}

// LoadSheetsConfig reads sheets.* keys, then GOOGLE_SHEETS_* variables for
// anything still unset, over the package defaults.
func LoadSheetsConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	for _, s := range sheetsSettings {
		v := viper.GetString("sheets." + s.key)
		if v == "" {
			v = os.Getenv("GOOGLE_SHEETS_" + s.env)
		}
		if v == "" {
			continue
		}
		if s.path {
			v = ExpandPath(v)
		}
		*s.field(&cfg) = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
