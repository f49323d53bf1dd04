// Package gormstore implements storage.Store on top of GORM. The sqlite and
// postgres backends embed it and only differ in how the connection is opened.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OCAP2/markerpack/internal/database"
	"github.com/OCAP2/markerpack/internal/model"
	"github.com/OCAP2/markerpack/internal/model/convert"
	"github.com/OCAP2/markerpack/internal/storage"
	"github.com/OCAP2/markerpack/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// Backend implements storage.Store using GORM.
type Backend struct {
	deps   Dependencies
	closed bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gormstore: no database connection")
	}
	return database.Setup(b.deps.DB, b.deps.Logger)
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	if b.closed || b.deps.DB == nil {
		return nil
	}
	b.closed = true
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

func (b *Backend) LoadAccount(ctx context.Context, account string) (*core.AccountData, error) {
	if b.closed {
		return nil, storage.ErrClosed
	}
	var row model.Account
	err := b.deps.DB.WithContext(ctx).Where("name = ?", account).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NewAccountData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", account, err)
	}
	return convert.AccountToCore(row)
}

func (b *Backend) SaveAccount(ctx context.Context, account string, data *core.AccountData) error {
	if b.closed {
		return storage.ErrClosed
	}
	row, err := convert.CoreToAccount(account, data)
	if err != nil {
		return fmt.Errorf("save account %s: %w", account, err)
	}
	err = b.deps.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save account %s: %w", account, err)
	}
	return nil
}

func (b *Backend) LoadCharacter(ctx context.Context, account, name string) (*core.CharacterData, error) {
	if b.closed {
		return nil, storage.ErrClosed
	}
	var row model.Character
	err := b.deps.DB.WithContext(ctx).Where("account = ? AND name = ?", account, name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NewCharacterData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load character %s/%s: %w", account, name, err)
	}
	return convert.CharacterToCore(row)
}

func (b *Backend) SaveCharacter(ctx context.Context, account, name string, data *core.CharacterData) error {
	if b.closed {
		return storage.ErrClosed
	}
	row, err := convert.CoreToCharacter(account, name, data)
	if err != nil {
		return fmt.Errorf("save character %s/%s: %w", account, name, err)
	}
	err = b.deps.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save character %s/%s: %w", account, name, err)
	}
	return nil
}
