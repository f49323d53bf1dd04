// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OCAP2/markerpack/pkg/core"
)

const (
	snapshotVersion = 1
	baseName        = "activation.json"
)

// Snapshot is the on-disk form of every record held by the backend.
type Snapshot struct {
	Version    int                                       `json:"version"`
	Accounts   map[string]*core.AccountData              `json:"accounts"`
	Characters map[string]map[string]*core.CharacterData `json:"characters"`
}

// SnapshotPath returns the file the backend writes.
func (b *Backend) SnapshotPath() string {
	if b.cfg.OutputDir == "" {
		return ""
	}
	name := baseName
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return filepath.Join(b.cfg.OutputDir, name)
}

// writeSnapshot writes every record to a temp file and renames it over the
// snapshot. Callers hold b.mu.
func (b *Backend) writeSnapshot() error {
	path := b.SnapshotPath()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	snap := Snapshot{Version: snapshotVersion, Accounts: b.accounts, Characters: b.characters}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	if err := encode(f, snap, b.cfg.CompressOutput); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func encode(w io.Writer, snap Snapshot, compress bool) error {
	if !compress {
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return nil
	}
	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(snap); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip writer: %w", err)
	}
	return nil
}

// readSnapshot loads the snapshot, trying the configured format first and
// the other one second so toggling compressOutput keeps existing records.
func (b *Backend) readSnapshot() (*Snapshot, string, error) {
	if b.cfg.OutputDir == "" {
		return nil, "", nil
	}
	candidates := []string{baseName, baseName + ".gz"}
	if b.cfg.CompressOutput {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}
	for _, name := range candidates {
		path := filepath.Join(b.cfg.OutputDir, name)
		snap, err := readFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, err
		}
		return snap, path, nil
	}
	return nil, "", nil
}

func readFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip snapshot %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot %s has unsupported version %d", path, snap.Version)
	}
	if snap.Accounts == nil {
		snap.Accounts = make(map[string]*core.AccountData)
	}
	if snap.Characters == nil {
		snap.Characters = make(map[string]map[string]*core.CharacterData)
	}
	for _, a := range snap.Accounts {
		a.Normalize()
	}
	for _, chars := range snap.Characters {
		for _, c := range chars {
			c.Normalize()
		}
	}
	return &snap, nil
}
