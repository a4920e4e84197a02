package main

import (
	"context"

	"github.com/pvis-group/procure-cli/internal/config"
	"github.com/pvis-group/procure-cli/internal/store"
)

// initStore opens the configured warehouse backend. SQLite gets a default
// local file so the CLI works without any configuration.
func initStore(ctx context.Context) (store.Store, error) {
	sc := cfg.Store
	if sc.Driver == "sqlite" && sc.DatabaseURL == "" {
		sc = config.StoreConfig{Driver: "sqlite", DatabaseURL: "procure.db"}
	}
	return store.Open(ctx, sc)
}
