package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/storage"
	"github.com/OCAP2/markerpack/internal/storage/memory"
	"github.com/OCAP2/markerpack/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/markerpack/internal/storage/sqlite"
)

// newStore builds the activation store selected by cfg.Type. The caller
// owns Init and Close.
func newStore(cfg config.StorageConfig, log zerolog.Logger) (storage.Store, error) {
	log = log.With().Str("storage", cfg.Type).Logger()

	switch cfg.Type {
	case "", "memory":
		return memory.New(cfg.Memory, log), nil
	case "sqlite":
		b, err := sqlitestorage.New(sqlitestorage.Config{
			Path:         cfg.SQLite.Path,
			DumpPath:     cfg.SQLite.DumpPath,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		return postgres.New(cfg.DB, log), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// initStore creates and initializes the configured store.
func initStore(cfg config.StorageConfig, log zerolog.Logger) (storage.Store, error) {
	store, err := newStore(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Type, err)
	}
	return store, nil
}
