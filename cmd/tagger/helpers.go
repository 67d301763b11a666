package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/config"
	"github.com/Veraticus/spice-tagger/internal/engine"
	"github.com/Veraticus/spice-tagger/internal/service"
	"github.com/Veraticus/spice-tagger/internal/storage"
)

// initStorage opens the tag memory database and brings its schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine builds an engine over store from the engine.* and catalog.* keys.
func initEngine(store service.TagMemoryStore) (*engine.Engine, error) {
	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}

	c, err := config.LoadCatalog()
	if err != nil {
		return nil, err
	}

	return engine.NewWithConfig(store, c, cfg)
}

// userID returns the configured user, which --user overrides.
func userID() (string, error) {
	id := strings.TrimSpace(viper.GetString("user.id"))
	if id == "" {
		return "", common.NewUserError("set --user or user.id in your config", common.ErrInvalidInput)
	}
	return id, nil
}
