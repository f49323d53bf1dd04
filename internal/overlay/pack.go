// Package overlay binds the category tree, the entity registry, the
// attribute resolver and the activation engine of one loaded pack.
package overlay

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/internal/activation"
	"github.com/OCAP2/markerpack/internal/cache"
	"github.com/OCAP2/markerpack/internal/category"
	"github.com/OCAP2/markerpack/internal/geo"
	"github.com/OCAP2/markerpack/internal/registry"
	"github.com/OCAP2/markerpack/internal/resolve"
	"github.com/OCAP2/markerpack/pkg/core"
)

// ErrSeparator is returned when toggling a separator category.
var ErrSeparator = errors.New("separator categories cannot be toggled")

// Content is a pack in its owned form: the category forest plus every
// marker and trail. Trail geometry is decoded when present.
type Content struct {
	Categories []core.Category `json:"categories"`
	Markers    []core.Marker   `json:"markers"`
	Trails     []core.Trail    `json:"trails"`
}

// RenderMarker is a marker ready to draw.
type RenderMarker struct {
	GUID       uuid.UUID       `json:"guid"`
	MapID      uint16          `json:"mapId"`
	Position   core.Vec3       `json:"position"`
	Category   core.CategoryID `json:"category"`
	Attributes core.Resolved   `json:"attributes"`
}

// RenderTrail is a trail ready to draw.
type RenderTrail struct {
	GUID       uuid.UUID           `json:"guid"`
	MapID      uint16              `json:"mapId"`
	Category   core.CategoryID     `json:"category"`
	Attributes core.Resolved       `json:"attributes"`
	Geometry   *core.TrailGeometry `json:"-"`
	Summary    geo.Summary         `json:"summary"`
}

// Pack is one loaded pack for one account. It is not safe for concurrent
// use; Service serializes access.
type Pack struct {
	tree      *category.Tree
	registry  *registry.Registry
	resolver  *resolve.Resolver
	engine    *activation.Engine
	paths     *cache.PathCache
	summaries map[uuid.UUID]geo.Summary
}

// NewPack builds a pack from content for account. data is the account's
// persisted activation record, nil for a new account. Entities that cannot
// be added are skipped and reported; the rest of the pack still loads.
func NewPack(account string, data *core.AccountData, content Content) (*Pack, []error) {
	p := &Pack{
		tree:      category.New(),
		paths:     cache.NewPathCache(),
		summaries: make(map[uuid.UUID]geo.Summary),
	}
	p.registry = registry.New(p.tree)
	p.resolver = resolve.NewResolver(p.tree, nil)
	p.engine = activation.New(account, activation.BehaviorFunc(p.behavior), activation.WithAccountData(data))

	var errs []error
	for _, c := range content.Categories {
		if err := p.tree.Insert(nil, c); err != nil {
			errs = append(errs, fmt.Errorf("category %q: %w", c.Name, err))
		}
	}
	for _, m := range content.Markers {
		if err := p.registry.AddMarker(m); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range content.Trails {
		if err := p.AddTrail(t); err != nil {
			errs = append(errs, err)
		}
	}
	p.engine.SeedCategories(p.defaultEnabled())
	return p, errs
}

func (p *Pack) defaultEnabled() []core.CategoryID {
	var ids []core.CategoryID
	p.tree.Walk(func(c *core.Category, _ int) bool {
		if c.DefaultToggle && !c.IsSeparator {
			ids = append(ids, c.ID)
		}
		return true
	})
	return ids
}

func (p *Pack) Tree() *category.Tree         { return p.tree }
func (p *Pack) Registry() *registry.Registry { return p.registry }
func (p *Pack) Engine() *activation.Engine   { return p.engine }
func (p *Pack) Resolver() *resolve.Resolver  { return p.resolver }

// Content returns a copy of the pack in its owned form.
func (p *Pack) Content() Content {
	c := Content{Categories: p.tree.Forest()}
	for _, m := range p.registry.Markers() {
		mc := *m
		mc.Attributes = m.Attributes.Clone()
		c.Markers = append(c.Markers, mc)
	}
	for _, t := range p.registry.Trails() {
		tc := *t
		tc.Attributes = t.Attributes.Clone()
		c.Trails = append(c.Trails, tc)
	}
	return c
}

// Resolved returns the effective attributes of an entity.
func (p *Pack) Resolved(guid uuid.UUID) (core.Resolved, error) {
	cat, ok := p.registry.Category(guid)
	if !ok {
		return core.Resolved{}, fmt.Errorf("resolve %s: %w", guid, registry.ErrNotFound)
	}
	override, version, _ := p.registry.Override(guid)
	return p.resolver.Resolve(guid, cat, override, version)
}

func (p *Pack) behavior(guid uuid.UUID) (core.Behavior, error) {
	r, err := p.Resolved(guid)
	if err != nil {
		return core.Behavior{}, err
	}
	return r.Behavior, nil
}

// Shown reports whether a category and all its ancestors are enabled.
// Separators are always shown.
func (p *Pack) Shown(id core.CategoryID) bool {
	chain := p.tree.Ancestors(id)
	if len(chain) == 0 {
		return false
	}
	for _, a := range chain {
		c, _ := p.tree.Get(a)
		if !c.IsSeparator && !p.engine.CategoryEnabled(a) {
			return false
		}
	}
	return true
}

// ActiveMarkers returns the markers on ctx's map that are enabled, pass the
// context filters and are not suppressed.
func (p *Pack) ActiveMarkers(ctx core.Context) []RenderMarker {
	var out []RenderMarker
	for m := range p.registry.MarkersByMap(ctx.MapID) {
		r, ok := p.active(m.GUID, m.Category, ctx)
		if !ok {
			continue
		}
		out = append(out, RenderMarker{
			GUID:       m.GUID,
			MapID:      m.MapID,
			Position:   m.Position,
			Category:   m.Category,
			Attributes: r,
		})
	}
	return out
}

// ActiveTrails is ActiveMarkers for trails.
func (p *Pack) ActiveTrails(ctx core.Context) []RenderTrail {
	var out []RenderTrail
	for t := range p.registry.TrailsByMap(ctx.MapID) {
		r, ok := p.active(t.GUID, t.Category, ctx)
		if !ok {
			continue
		}
		out = append(out, RenderTrail{
			GUID:       t.GUID,
			MapID:      t.MapID,
			Category:   t.Category,
			Attributes: r,
			Geometry:   t.Geometry,
			Summary:    p.summaries[t.GUID],
		})
	}
	return out
}

func (p *Pack) active(guid uuid.UUID, cat core.CategoryID, ctx core.Context) (core.Resolved, bool) {
	if !p.Shown(cat) {
		return core.Resolved{}, false
	}
	r, err := p.Resolved(guid)
	if err != nil || !ctx.Passes(r) {
		return core.Resolved{}, false
	}
	return r, p.engine.IsVisible(guid, ctx)
}

// Trigger activates the entity with guid.
func (p *Pack) Trigger(guid uuid.UUID, ctx core.Context) (activation.TriggerResult, error) {
	return p.engine.Trigger(guid, ctx)
}

// AutoTrigger triggers every active auto-trigger marker within its trigger
// range of pos and returns the ones that became suppressed.
func (p *Pack) AutoTrigger(pos core.Vec3, ctx core.Context) []uuid.UUID {
	var hits []uuid.UUID
	for _, m := range p.ActiveMarkers(ctx) {
		r := m.Attributes
		if !r.Flags.Has(core.FlagAutoTrigger) || !r.Behavior.Triggerable() {
			continue
		}
		if !geo.Within(pos, m.Position, r.TriggerRange) {
			continue
		}
		if res, err := p.engine.Trigger(m.GUID, ctx); err == nil && res == activation.Suppressed {
			hits = append(hits, m.GUID)
		}
	}
	return hits
}

func (p *Pack) Tick(ctx core.Context) activation.TickReport {
	return p.engine.Tick(ctx)
}

func (p *Pack) Untrigger(guid uuid.UUID) bool {
	return p.engine.Untrigger(guid)
}

// ToggleCategory enables or disables a category and reports whether its
// state changed.
func (p *Pack) ToggleCategory(id core.CategoryID, enabled bool) (bool, error) {
	c, ok := p.tree.Get(id)
	if !ok {
		return false, &category.IDError{ID: id, Err: category.ErrUnknownCategory}
	}
	if c.IsSeparator {
		return false, &category.IDError{ID: id, Err: ErrSeparator}
	}
	return p.engine.SetCategoryEnabled(id, enabled), nil
}

// FindCategory looks a category up by its slash separated name path.
func (p *Pack) FindCategory(path string) (core.CategoryID, bool) {
	if id, ok := p.paths.Get(path); ok && p.tree.Contains(id) {
		return id, true
	}
	id, ok := p.tree.FindByPath(path)
	if ok {
		p.paths.Set(path, id)
	}
	return id, ok
}

// CreateCategory adds a default category under parent, or as a root when
// parent is nil. It starts enabled when its default toggle is set.
func (p *Pack) CreateCategory(parent *core.CategoryID) (core.Category, error) {
	c, err := p.tree.CreateChild(parent)
	if err != nil {
		return core.Category{}, err
	}
	if c.DefaultToggle {
		p.engine.SetCategoryEnabled(c.ID, true)
	}
	return *c, nil
}

// RemoveCategory deletes a category, its descendants and every entity they
// hold, along with their activation records.
func (p *Pack) RemoveCategory(id core.CategoryID) ([]core.CategoryID, []uuid.UUID, error) {
	removed, err := p.tree.Remove(id)
	if err != nil {
		return nil, nil, err
	}
	orphans := p.registry.RemoveCategories(removed)
	p.forget(orphans...)
	p.engine.ForgetCategories(removed)
	p.paths.Reset()
	return removed, orphans, nil
}

// MoveCategory reparents a category. Resolved attributes of the moved
// subtree are recomputed on next use.
func (p *Pack) MoveCategory(id core.CategoryID, parent *core.CategoryID) error {
	if err := p.tree.Move(id, parent); err != nil {
		return err
	}
	p.paths.Reset()
	return nil
}

// RenameCategory sets the name of id. displayName defaults to name.
func (p *Pack) RenameCategory(id core.CategoryID, name, displayName string) error {
	c, ok := p.tree.Get(id)
	if !ok {
		return &category.IDError{ID: id, Err: category.ErrUnknownCategory}
	}
	if displayName == "" {
		displayName = name
	}
	c.Name, c.DisplayName = name, displayName
	p.paths.Reset()
	return nil
}

func (p *Pack) SetCategoryAttributes(id core.CategoryID, attrs core.Attributes) error {
	return p.tree.SetAttributes(id, attrs)
}

func (p *Pack) AddMarker(m core.Marker) error {
	return p.registry.AddMarker(m)
}

// AddTrail registers a trail and summarizes its geometry.
func (p *Pack) AddTrail(t core.Trail) error {
	if err := p.registry.AddTrail(t); err != nil {
		return err
	}
	if t.Geometry != nil {
		p.summaries[t.GUID] = geo.Summarize(*t.Geometry)
	}
	return nil
}

// AddTrailBinary registers a trail whose geometry is the .trl file data.
func (p *Pack) AddTrailBinary(t core.Trail, data []byte) error {
	if err := p.registry.AddTrailBinary(t, data); err != nil {
		return err
	}
	if tr, ok := p.registry.Trail(t.GUID); ok && tr.Geometry != nil {
		p.summaries[t.GUID] = geo.Summarize(*tr.Geometry)
	}
	return nil
}

// RemoveEntity deletes a marker or trail and its activation records.
func (p *Pack) RemoveEntity(guid uuid.UUID) bool {
	if !p.registry.Remove(guid) {
		return false
	}
	p.forget(guid)
	return true
}

func (p *Pack) forget(guids ...uuid.UUID) {
	p.engine.Forget(guids...)
	for _, guid := range guids {
		p.resolver.Invalidate(guid)
		delete(p.summaries, guid)
	}
}

func (p *Pack) SetEntityAttributes(guid uuid.UUID, attrs core.Attributes) error {
	return p.registry.SetAttributes(guid, attrs)
}

// PackStats summarizes the pack's size and activation state.
type PackStats struct {
	Categories  int              `json:"categories"`
	Markers     int              `json:"markers"`
	Trails      int              `json:"trails"`
	Activation  activation.Stats `json:"activation"`
	CacheSize   int              `json:"cacheSize"`
	CacheHits   int              `json:"cacheHits"`
	CacheMisses int              `json:"cacheMisses"`
}

func (p *Pack) Stats() PackStats {
	s := PackStats{
		Categories: p.tree.Len(),
		Activation: p.engine.Stats(),
		CacheSize:  p.resolver.Cache().Len(),
	}
	s.Markers, s.Trails = p.registry.Len()
	s.CacheHits, s.CacheMisses = p.resolver.Cache().Stats()
	return s
}
