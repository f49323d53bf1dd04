// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/OCAP2/markerpack/pkg/core"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Store persists activation records. Loading a record that was never saved
// returns a fresh empty record, not an error.
type Store interface {
	// Lifecycle
	Init() error
	Close() error

	// Account records
	LoadAccount(ctx context.Context, account string) (*core.AccountData, error)
	SaveAccount(ctx context.Context, account string, data *core.AccountData) error

	// Character records
	LoadCharacter(ctx context.Context, account, name string) (*core.CharacterData, error)
	SaveCharacter(ctx context.Context, account, name string, data *core.CharacterData) error
}

// Record is one pending write. Exactly one of Account and Character is set.
type Record struct {
	AccountName   string
	CharacterName string
	Account       *core.AccountData
	Character     *core.CharacterData
}

// Key identifies the record a write targets, so later writes can replace
// earlier ones in a batch.
func (r Record) Key() string {
	if r.Character != nil {
		return r.AccountName + "\x00" + r.CharacterName
	}
	return r.AccountName
}

// Save writes r to s.
func (r Record) Save(ctx context.Context, s Store) error {
	if r.Character != nil {
		return s.SaveCharacter(ctx, r.AccountName, r.CharacterName, r.Character)
	}
	return s.SaveAccount(ctx, r.AccountName, r.Account)
}

// Coalesce keeps only the last write per record, preserving the order in
// which each record was last written.
func Coalesce(records []Record) []Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.Key()] = i
	}
	out := make([]Record, 0, len(last))
	for i, r := range records {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}
