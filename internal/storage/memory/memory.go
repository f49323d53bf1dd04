// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/storage"
	"github.com/OCAP2/markerpack/pkg/core"
)

// Backend keeps activation records in memory and mirrors them to a JSON
// snapshot in OutputDir. An empty OutputDir keeps everything in memory only.
type Backend struct {
	cfg        config.MemoryConfig
	log        zerolog.Logger
	accounts   map[string]*core.AccountData
	characters map[string]map[string]*core.CharacterData
	closed     bool
	mu         sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:        cfg,
		log:        log,
		accounts:   make(map[string]*core.AccountData),
		characters: make(map[string]map[string]*core.CharacterData),
	}
}

// Init loads the snapshot from disk if one exists.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, path, err := b.readSnapshot()
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	b.accounts = snap.Accounts
	b.characters = snap.Characters
	b.log.Info().Str("path", path).Int("accounts", len(b.accounts)).Msg("Loaded activation snapshot")
	return nil
}

// Close writes the final snapshot.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.writeSnapshot()
}

func (b *Backend) LoadAccount(_ context.Context, account string) (*core.AccountData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	if a, ok := b.accounts[account]; ok {
		return a.Clone(), nil
	}
	return core.NewAccountData(), nil
}

func (b *Backend) SaveAccount(_ context.Context, account string, data *core.AccountData) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrClosed
	}
	b.accounts[account] = data.Clone()
	return b.writeSnapshot()
}

func (b *Backend) LoadCharacter(_ context.Context, account, name string) (*core.CharacterData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	if c, ok := b.characters[account][name]; ok {
		return c.Clone(), nil
	}
	return core.NewCharacterData(), nil
}

func (b *Backend) SaveCharacter(_ context.Context, account, name string, data *core.CharacterData) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrClosed
	}
	chars, ok := b.characters[account]
	if !ok {
		chars = make(map[string]*core.CharacterData)
		b.characters[account] = chars
	}
	chars[name] = data.Clone()
	return b.writeSnapshot()
}

// Accounts returns how many account records are held.
func (b *Backend) Accounts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.accounts)
}
