// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/storage"
	"github.com/OCAP2/markerpack/pkg/core"
)

// Verify Backend implements storage.Store interface
var _ storage.Store = (*Backend)(nil)

func account() *core.AccountData {
	a := core.NewAccountData()
	a.Permanent.Add(uuid.New())
	a.TimerBased[uuid.New()] = time.Date(2024, 3, 10, 12, 1, 0, 987654321, time.UTC)
	a.EnabledCategories.Add(3)
	return a
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp/test", CompressOutput: true}, zerolog.Nop())

	require.NotNil(t, b)
	assert.Equal(t, "/tmp/test", b.cfg.OutputDir)
	assert.NotNil(t, b.accounts)
	assert.NotNil(t, b.characters)
	assert.Equal(t, filepath.Join("/tmp/test", "activation.json.gz"), b.SnapshotPath())
}

func TestMissingRecordsAreEmpty(t *testing.T) {
	b := New(config.MemoryConfig{}, zerolog.Nop())
	require.NoError(t, b.Init())
	ctx := context.Background()

	a, err := b.LoadAccount(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, core.NewAccountData(), a)

	c, err := b.LoadCharacter(ctx, "nobody", "Alice")
	require.NoError(t, err)
	assert.Equal(t, core.NewCharacterData(), c)
}

func TestSaveAndLoad_ReturnsCopies(t *testing.T) {
	b := New(config.MemoryConfig{}, zerolog.Nop())
	ctx := context.Background()
	orig := account()

	require.NoError(t, b.SaveAccount(ctx, "acc", orig))
	orig.Permanent.Add(uuid.New())

	got, err := b.LoadAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Len(t, got.Permanent, 1, "saved record is detached from the caller's")

	got.Seeded = true
	again, err := b.LoadAccount(ctx, "acc")
	require.NoError(t, err)
	assert.False(t, again.Seeded)
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		t.Run(map[bool]string{true: "gzip", false: "plain"}[compress], func(t *testing.T) {
			cfg := config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: compress}
			ctx := context.Background()
			orig := account()
			char := core.NewCharacterData()
			char.DailyReset.Add(uuid.New())
			char.DailyResetAt = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

			b := New(cfg, zerolog.Nop())
			require.NoError(t, b.Init())
			require.NoError(t, b.SaveAccount(ctx, "acc", orig))
			require.NoError(t, b.SaveCharacter(ctx, "acc", "Alice", char))
			require.NoError(t, b.Close())

			_, err := os.Stat(b.SnapshotPath())
			require.NoError(t, err)

			restored := New(cfg, zerolog.Nop())
			require.NoError(t, restored.Init())
			gotAccount, err := restored.LoadAccount(ctx, "acc")
			require.NoError(t, err)
			assert.Equal(t, orig, gotAccount)
			gotChar, err := restored.LoadCharacter(ctx, "acc", "Alice")
			require.NoError(t, err)
			assert.Equal(t, char, gotChar)
		})
	}
}

func TestSnapshotIsGzip(t *testing.T) {
	cfg := config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true}
	b := New(cfg, zerolog.Nop())
	require.NoError(t, b.SaveAccount(context.Background(), "acc", account()))

	f, err := os.Open(b.SnapshotPath())
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	gz.Close()
}

func TestInit_ReadsOtherFormat(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	plain := New(config.MemoryConfig{OutputDir: dir}, zerolog.Nop())
	require.NoError(t, plain.SaveAccount(ctx, "acc", account()))

	gz := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true}, zerolog.Nop())
	require.NoError(t, gz.Init())
	assert.Equal(t, 1, gz.Accounts())
}

func TestInit_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "activation.json"), []byte("{"), 0644))

	b := New(config.MemoryConfig{OutputDir: dir}, zerolog.Nop())
	assert.Error(t, b.Init())
}

func TestClosed(t *testing.T) {
	b := New(config.MemoryConfig{}, zerolog.Nop())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.LoadAccount(context.Background(), "acc")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, b.SaveAccount(context.Background(), "acc", account()), storage.ErrClosed)
}

func TestConcurrentAccess(t *testing.T) {
	b := New(config.MemoryConfig{}, zerolog.Nop())
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := uuid.NewString()
			assert.NoError(t, b.SaveCharacter(ctx, "acc", name, core.NewCharacterData()))
			_, err := b.LoadCharacter(ctx, "acc", name)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, b.characters["acc"], 20)
}
