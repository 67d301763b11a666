// Package config loads component configuration from viper keys.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the per-user data and config directories.
const AppName = "tagger"

// ExpandPath expands $VAR references and a leading ~.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// DataDir returns $XDG_DATA_HOME/tagger, or ~/.local/share/tagger.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local/share")
}

// ConfigDir returns $XDG_CONFIG_HOME/tagger, or ~/.config/tagger.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName)
	}
	return filepath.Join(ExpandPath("~"), fallback, AppName)
}
