package config

import (
	"fmt"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/engine"
	"github.com/spf13/viper"
)

// LoadEngineConfig builds the engine configuration from the engine.* keys.
// Unset keys keep engine.DefaultConfig values.
func LoadEngineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()

	if viper.IsSet("engine.store_timeout") {
		timeout := viper.GetDuration("engine.store_timeout")
		if timeout < 0 {
			return engine.Config{}, fmt.Errorf("%w: engine.store_timeout cannot be negative", common.ErrInvalidConfig)
		}
		cfg.StoreTimeout = timeout
	}

	policy, err := engine.ParseFallbackPolicy(viper.GetString("engine.fallback_policy"))
	if err != nil {
		return engine.Config{}, err
	}
	cfg.FallbackPolicy = policy

	if viper.IsSet("engine.parallel") {
		cfg.Sequential = !viper.GetBool("engine.parallel")
	}

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// LoadCatalog returns the catalog named by catalog.path, or the built-in
// catalog when the key is empty.
func LoadCatalog() (*catalog.Catalog, error) {
	path := viper.GetString("catalog.path")
	if path == "" {
		return catalog.Default(), nil
	}

	c, err := catalog.Load(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return c, nil
}
