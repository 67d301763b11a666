package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/engine"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("TAGGER_TEST_DIR", "/srv/tagger")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"tilde alone", "~", home},
		{"tilde prefix", "~/tagger.db", filepath.Join(home, "tagger.db")},
		{"env var", "$TAGGER_TEST_DIR/tagger.db", "/srv/tagger/tagger.db"},
		{"plain", "/var/lib/tagger.db", "/var/lib/tagger.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.input))
		})
	}
}

func TestDataAndConfigDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Equal(t, filepath.Join(home, ".local", "share", "tagger"), DataDir())
	assert.Equal(t, filepath.Join(home, ".config", "tagger"), ConfigDir())

	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	assert.Equal(t, "/data/tagger", DataDir())
	assert.Equal(t, "/etc/xdg/tagger", ConfigDir())
}

func TestLoadEngineConfig(t *testing.T) {
	tests := []struct {
		settings map[string]any
		check    func(t *testing.T, cfg engine.Config)
		name     string
		wantErr  error
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg engine.Config) {
				t.Helper()
				assert.Equal(t, engine.DefaultConfig(), cfg)
			},
		},
		{
			name: "overrides",
			settings: map[string]any{
				"engine.store_timeout":   "500ms",
				"engine.fallback_policy": "miscellaneous",
				"engine.parallel":        false,
			},
			check: func(t *testing.T, cfg engine.Config) {
				t.Helper()
				assert.Equal(t, 500*time.Millisecond, cfg.StoreTimeout)
				assert.Equal(t, engine.FallbackMiscellaneous, cfg.FallbackPolicy)
				assert.True(t, cfg.Sequential)
			},
		},
		{
			name:     "zero timeout disables the bound",
			settings: map[string]any{"engine.store_timeout": "0s"},
			check: func(t *testing.T, cfg engine.Config) {
				t.Helper()
				assert.Zero(t, cfg.StoreTimeout)
			},
		},
		{
			name:     "unknown policy",
			settings: map[string]any{"engine.fallback_policy": "guess"},
			wantErr:  common.ErrInvalidConfig,
		},
		{
			name:     "negative timeout",
			settings: map[string]any{"engine.store_timeout": "-1s"},
			wantErr:  common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			for k, v := range tt.settings {
				viper.Set(k, v)
			}

			cfg, err := LoadEngineConfig()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	resetViper(t)

	c, err := LoadCatalog()
	require.NoError(t, err)
	assert.Contains(t, c.Names(), "Groceries")

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags:\n  - name: Coffee\n    keywords: [kopi]\n"), 0o600))
	viper.Set("catalog.path", path)

	c, err = LoadCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"Coffee"}, c.Names())

	viper.Set("catalog.path", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = LoadCatalog()
	assert.Error(t, err)
}

func TestLoadPlaidConfig(t *testing.T) {
	clearEnv(t, "PLAID_CLIENT_ID", "PLAID_SECRET", "PLAID_ENV", "PLAID_ACCESS_TOKEN")

	t.Run("viper keys", func(t *testing.T) {
		resetViper(t)
		viper.Set("plaid.client_id", "client")
		viper.Set("plaid.secret", "secret")
		viper.Set("plaid.access_token", "access-sandbox-1")

		cfg, err := LoadPlaidConfig()
		require.NoError(t, err)
		assert.Equal(t, "client", cfg.ClientID)
		assert.Equal(t, "sandbox", cfg.Environment)
	})

	t.Run("environment fallback", func(t *testing.T) {
		resetViper(t)
		t.Setenv("PLAID_CLIENT_ID", "env-client")
		t.Setenv("PLAID_SECRET", "env-secret")
		t.Setenv("PLAID_ENV", "production")
		t.Setenv("PLAID_ACCESS_TOKEN", "access-production-1")

		cfg, err := LoadPlaidConfig()
		require.NoError(t, err)
		assert.Equal(t, "env-client", cfg.ClientID)
		assert.Equal(t, "production", cfg.Environment)
	})

	t.Run("missing credentials", func(t *testing.T) {
		resetViper(t)
		_, err := LoadPlaidConfig()
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})
}

func TestLoadSheetsConfig(t *testing.T) {
	clearEnv(t,
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_SPREADSHEET_NAME",
		"GOOGLE_SHEETS_TIMEZONE",
	)

	t.Run("oauth from viper", func(t *testing.T) {
		resetViper(t)
		viper.Set("sheets.client_id", "id")
		viper.Set("sheets.client_secret", "secret")
		viper.Set("sheets.refresh_token", "refresh")
		viper.Set("sheets.spreadsheet_id", "sheet-1")

		cfg, err := LoadSheetsConfig()
		require.NoError(t, err)
		assert.Equal(t, "sheet-1", cfg.SpreadsheetID)
		assert.Equal(t, "Tag Predictions", cfg.SpreadsheetName)
	})

	t.Run("service account from env", func(t *testing.T) {
		resetViper(t)
		t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/etc/tagger/sa.json")
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "Household")

		cfg, err := LoadSheetsConfig()
		require.NoError(t, err)
		assert.Equal(t, "/etc/tagger/sa.json", cfg.ServiceAccountPath)
		assert.Equal(t, "Household", cfg.SpreadsheetName)
	})

	t.Run("viper wins over env", func(t *testing.T) {
		resetViper(t)
		viper.Set("sheets.service_account_path", "~/sa.json")
		t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/etc/tagger/sa.json")
		t.Setenv("GOOGLE_SHEETS_TIMEZONE", "UTC")

		cfg, err := LoadSheetsConfig()
		require.NoError(t, err)
		assert.Equal(t, ExpandPath("~/sa.json"), cfg.ServiceAccountPath)
		assert.Equal(t, "UTC", cfg.TimeZone)
	})

	t.Run("no auth", func(t *testing.T) {
		resetViper(t)
		_, err := LoadSheetsConfig()
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})
}
