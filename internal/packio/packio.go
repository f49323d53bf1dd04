// Package packio reads and writes packs on disk: a pack.json manifest with
// the category tree, markers and trails, plus one .trl file per trail.
package packio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/OCAP2/markerpack/internal/overlay"
	"github.com/OCAP2/markerpack/internal/trl"
	"github.com/OCAP2/markerpack/pkg/core"
)

const (
	ManifestName    = "pack.json"
	TrailDir        = "trails"
	manifestVersion = 1
)

var (
	ErrUnsupportedManifest = errors.New("unsupported manifest version")
	ErrUnsafePath          = errors.New("trail file path leaves the pack directory")
)

// EntityError reports one category, marker or trail that could not be
// loaded. Loading carries on without it.
type EntityError struct {
	Entity string
	Err    error
}

func (e *EntityError) Error() string { return fmt.Sprintf("%s: %v", e.Entity, e.Err) }
func (e *EntityError) Unwrap() error { return e.Err }

type manifest struct {
	Version    int               `json:"version"`
	Categories []json.RawMessage `json:"categories"`
	Markers    []json.RawMessage `json:"markers"`
	Trails     []json.RawMessage `json:"trails"`
}

// LoadDir reads the pack in dir. Only a missing or malformed manifest is
// fatal; every bad entity is reported and skipped.
func LoadDir(dir string) (overlay.Content, []*EntityError, error) {
	var content overlay.Content

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return content, nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return content, nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Version > manifestVersion {
		return content, nil, fmt.Errorf("manifest version %d: %w", m.Version, ErrUnsupportedManifest)
	}

	var errs []*EntityError
	for i, raw := range m.Categories {
		var c core.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			errs = append(errs, &EntityError{Entity: fmt.Sprintf("category[%d]", i), Err: err})
			continue
		}
		content.Categories = append(content.Categories, c)
	}
	for i, raw := range m.Markers {
		var mk core.Marker
		if err := json.Unmarshal(raw, &mk); err != nil {
			errs = append(errs, &EntityError{Entity: fmt.Sprintf("marker[%d]", i), Err: err})
			continue
		}
		content.Markers = append(content.Markers, mk)
	}

	var trails []core.Trail
	for i, raw := range m.Trails {
		var t core.Trail
		if err := json.Unmarshal(raw, &t); err != nil {
			errs = append(errs, &EntityError{Entity: fmt.Sprintf("trail[%d]", i), Err: err})
			continue
		}
		trails = append(trails, t)
	}

	loaded, trailErrs := loadGeometry(dir, trails)
	content.Trails = loaded
	errs = append(errs, trailErrs...)
	return content, errs, nil
}

// loadGeometry decodes the .trl file of every trail concurrently. Trails
// whose file cannot be read or decoded are dropped.
func loadGeometry(dir string, trails []core.Trail) ([]core.Trail, []*EntityError) {
	failures := make([]error, len(trails))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trails {
		if trails[i].TrailFile == "" {
			continue
		}
		g.Go(func() error {
			geom, err := readTrail(dir, trails[i].TrailFile)
			if err != nil {
				failures[i] = err
				return nil
			}
			trails[i].Geometry = &geom
			return nil
		})
	}
	_ = g.Wait()

	var (
		out  []core.Trail
		errs []*EntityError
	)
	for i, t := range trails {
		if failures[i] != nil {
			errs = append(errs, &EntityError{Entity: "trail " + t.GUID.String(), Err: failures[i]})
			continue
		}
		out = append(out, t)
	}
	return out, errs
}

func readTrail(dir, name string) (core.TrailGeometry, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return core.TrailGeometry{}, fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return core.TrailGeometry{}, err
	}
	g, err := trl.Decode(data)
	if err != nil {
		return core.TrailGeometry{}, fmt.Errorf("%s: %w", name, err)
	}
	return g, nil
}

// SaveDir writes c to dir. Output is deterministic: categories in tree
// order, entities in the order given, trail files named after their guid.
func SaveDir(dir string, c overlay.Content) error {
	if err := os.MkdirAll(filepath.Join(dir, TrailDir), 0755); err != nil {
		return fmt.Errorf("creating pack directory: %w", err)
	}

	m := struct {
		Version    int             `json:"version"`
		Categories []core.Category `json:"categories"`
		Markers    []core.Marker   `json:"markers"`
		Trails     []core.Trail    `json:"trails"`
	}{
		Version:    manifestVersion,
		Categories: nonNil(c.Categories),
		Markers:    nonNil(c.Markers),
		Trails:     make([]core.Trail, 0, len(c.Trails)),
	}

	for _, t := range c.Trails {
		t.TrailFile = ""
		if t.Geometry != nil && len(t.Geometry.Nodes) > 0 {
			t.TrailFile = path.Join(TrailDir, t.GUID.String()+".trl")
			if err := writeFile(filepath.Join(dir, filepath.FromSlash(t.TrailFile)), trl.Encode(*t.Geometry)); err != nil {
				return err
			}
		}
		m.Trails = append(m.Trails, t)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFile(filepath.Join(dir, ManifestName), buf.Bytes())
}

// writeFile replaces path through a temp file so readers never see a
// partial write.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
