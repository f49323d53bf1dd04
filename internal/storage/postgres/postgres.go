// Package postgres implements storage.Store on PostgreSQL through GORM.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/database"
	"github.com/OCAP2/markerpack/internal/storage/gormstore"
)

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstore.Backend
	cfg config.DBConfig
	log zerolog.Logger
}

// New creates a backend. The connection is opened by Init.
func New(cfg config.DBConfig, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, log: log}
}

// Init connects to the server and migrates the schema.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDB(b.cfg, b.log)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	b.Backend = gormstore.New(gormstore.Dependencies{DB: db, Logger: b.log})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.log.Info().Msg("Connected to database")
	return nil
}

// Close closes the connection if Init opened one.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
