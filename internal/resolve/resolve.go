// Package resolve computes the effective attributes of markers and trails by
// cascading entity overrides, ancestor category templates and hard defaults.
package resolve

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/internal/cache"
	"github.com/OCAP2/markerpack/internal/category"
	"github.com/OCAP2/markerpack/pkg/core"
)

// Defaults returns the hard default template. Every field is set except the
// optional strings, rotation and the filters.
func Defaults() core.Attributes {
	return core.Attributes{
		Alpha:          core.Ptr[float32](1.0),
		Color:          &[4]uint8{255, 255, 255, 255},
		Scale:          core.Ptr[float32](1.0),
		HeightOffset:   core.Ptr[float32](1.5),
		FadeNear:       core.Ptr[float32](-1),
		FadeFar:        core.Ptr[float32](-1),
		MinSize:        core.Ptr[uint16](5),
		MaxSize:        core.Ptr[uint16](2048),
		MapDisplaySize: core.Ptr[uint16](20),
		TriggerRange:   core.Ptr[float32](2.0),
		InfoRange:      core.Ptr[float32](2.0),
		TrailScale:     core.Ptr[float32](1.0),
		Behavior:       core.Ptr(core.AlwaysVisible),
		ResetLength:    core.Ptr[uint32](0),
		ResetOffset:    core.Ptr[uint32](0),
		Flags: core.Ptr(core.FlagInGameVisibility | core.FlagMapVisibility |
			core.FlagMiniMapVisibility | core.FlagMapScale),
	}
}

var defaults = Defaults()

// Resolve returns the effective attributes of an entity in categoryID with
// the given override. Neither the tree nor override is modified.
func Resolve(tree *category.Tree, categoryID core.CategoryID, override core.Attributes) (core.Resolved, error) {
	chain := tree.Ancestors(categoryID)
	if len(chain) == 0 {
		return core.Resolved{}, fmt.Errorf("resolve category %d: %w", categoryID, category.ErrUnknownCategory)
	}
	merged := override.Clone()
	for _, id := range chain {
		c, _ := tree.Get(id)
		merged.InheritFrom(&c.Attributes)
	}
	merged.InheritFrom(&defaults)
	return finalize(&merged), nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func finalize(a *core.Attributes) core.Resolved {
	r := core.Resolved{
		Alpha:           *a.Alpha,
		Color:           *a.Color,
		Scale:           *a.Scale,
		IconFile:        deref(a.IconFile),
		Texture:         deref(a.Texture),
		HeightOffset:    *a.HeightOffset,
		FadeNear:        *a.FadeNear,
		FadeFar:         *a.FadeFar,
		MinSize:         *a.MinSize,
		MaxSize:         *a.MaxSize,
		MapDisplaySize:  *a.MapDisplaySize,
		TriggerRange:    *a.TriggerRange,
		InfoText:        deref(a.InfoText),
		InfoRange:       *a.InfoRange,
		TipName:         deref(a.TipName),
		TipDescription:  deref(a.TipDescription),
		ToggleCategory:  deref(a.ToggleCategory),
		TrailScale:      *a.TrailScale,
		TrailDataFile:   deref(a.TrailDataFile),
		Behavior:        assembleBehavior(*a.Behavior, *a.ResetLength, *a.ResetOffset),
		Flags:           *a.Flags,
		Races:           deref(a.Races),
		Professions:     deref(a.Professions),
		Mounts:          deref(a.Mounts),
		Festivals:       deref(a.Festivals),
		Specializations: deref(a.Specializations),
		MapTypes:        deref(a.MapTypes),
	}
	if a.Rotation != nil {
		rot := *a.Rotation
		r.Rotation = &rot
	}
	return r
}

// assembleBehavior maps the flat resetLength/resetOffset attributes onto the
// parameters of the variant that uses them.
func assembleBehavior(kind core.BehaviorKind, length, offset uint32) core.Behavior {
	switch kind {
	case core.ReappearAfterTimer:
		return core.Behavior{Kind: kind, ResetLength: length}
	case core.ReappearOnMapReset:
		return core.Behavior{Kind: kind, CycleLength: length, CycleOffset: offset}
	default:
		return core.Behavior{Kind: kind}
	}
}

// Resolver memoizes Resolve per entity guid. A cached value is reused while
// the category, every ancestor template version and the override version
// are unchanged.
type Resolver struct {
	tree  *category.Tree
	cache *cache.ResolvedCache
}

func NewResolver(tree *category.Tree, c *cache.ResolvedCache) *Resolver {
	if c == nil {
		c = cache.NewResolvedCache()
	}
	return &Resolver{tree: tree, cache: c}
}

// stamp digests the ordered (id, version) ancestor chain, so re-parenting
// changes the stamp even when the version totals match.
func (r *Resolver) stamp(categoryID core.CategoryID, overrideVersion uint64) cache.Stamp {
	s := cache.Stamp{Category: categoryID, Override: overrideVersion}
	ancestors := r.tree.Ancestors(categoryID)
	buf := make([]byte, 0, len(ancestors)*10)
	for _, id := range ancestors {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(id))
		buf = binary.LittleEndian.AppendUint64(buf, r.tree.Version(id))
	}
	s.Depth = len(ancestors)
	s.Chain = xxhash.Sum64(buf)
	return s
}

// Resolve returns the effective attributes of guid. overrideVersion must
// change whenever override changes.
func (r *Resolver) Resolve(guid uuid.UUID, categoryID core.CategoryID, override core.Attributes, overrideVersion uint64) (core.Resolved, error) {
	stamp := r.stamp(categoryID, overrideVersion)
	if res, ok := r.cache.Get(guid, stamp); ok {
		return res, nil
	}
	res, err := Resolve(r.tree, categoryID, override)
	if err != nil {
		return core.Resolved{}, err
	}
	r.cache.Set(guid, stamp, res)
	return res, nil
}

// Invalidate drops the memoized value of guid.
func (r *Resolver) Invalidate(guid uuid.UUID) {
	r.cache.Delete(guid)
}

// Reset drops every memoized value.
func (r *Resolver) Reset() {
	r.cache.Reset()
}

func (r *Resolver) Cache() *cache.ResolvedCache { return r.cache }
