// Package registry holds the markers and trails of a pack, indexed by guid
// and by map.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/internal/trl"
	"github.com/OCAP2/markerpack/pkg/core"
)

var (
	ErrNilGUID     = errors.New("entity guid is nil")
	ErrMapMismatch = errors.New("trail geometry map id does not match trail map id")
	ErrNotFound    = errors.New("entity not found")
)

// DanglingCategoryError is returned when an entity references a category the
// tree does not contain.
type DanglingCategoryError struct {
	GUID     uuid.UUID
	Category core.CategoryID
}

func (e *DanglingCategoryError) Error() string {
	return fmt.Sprintf("entity %s references unknown category %d", e.GUID, e.Category)
}

// DuplicateGUIDError is returned when a guid is already registered.
type DuplicateGUIDError struct {
	GUID uuid.UUID
}

func (e *DuplicateGUIDError) Error() string {
	return fmt.Sprintf("duplicate entity guid %s", e.GUID)
}

// Categories is the view of the category tree the registry validates against.
type Categories interface {
	Contains(id core.CategoryID) bool
}

type entry struct {
	marker  *core.Marker
	trail   *core.Trail
	seq     uint64
	version uint64
}

func (e *entry) mapID() uint16 {
	if e.marker != nil {
		return e.marker.MapID
	}
	return e.trail.MapID
}

func (e *entry) guid() uuid.UUID {
	if e.marker != nil {
		return e.marker.GUID
	}
	return e.trail.GUID
}

func (e *entry) category() core.CategoryID {
	if e.marker != nil {
		return e.marker.Category
	}
	return e.trail.Category
}

// Registry stores markers and trails. It is not safe for concurrent use.
type Registry struct {
	categories Categories
	entries    map[uuid.UUID]*entry
	markers    map[uint16][]uuid.UUID
	trails     map[uint16][]uuid.UUID
	seq        uint64
}

func New(categories Categories) *Registry {
	return &Registry{
		categories: categories,
		entries:    make(map[uuid.UUID]*entry),
		markers:    make(map[uint16][]uuid.UUID),
		trails:     make(map[uint16][]uuid.UUID),
	}
}

func (r *Registry) check(guid uuid.UUID, cat core.CategoryID) error {
	if guid == uuid.Nil {
		return ErrNilGUID
	}
	if _, dup := r.entries[guid]; dup {
		return &DuplicateGUIDError{GUID: guid}
	}
	if !r.categories.Contains(cat) {
		return &DanglingCategoryError{GUID: guid, Category: cat}
	}
	return nil
}

// AddMarker registers a copy of m.
func (r *Registry) AddMarker(m core.Marker) error {
	if err := r.check(m.GUID, m.Category); err != nil {
		return err
	}
	m.Attributes = m.Attributes.Clone()
	r.seq++
	r.entries[m.GUID] = &entry{marker: &m, seq: r.seq}
	r.markers[m.MapID] = append(r.markers[m.MapID], m.GUID)
	return nil
}

// AddTrail registers a copy of t. Geometry, when present, must be on the
// trail's map.
func (r *Registry) AddTrail(t core.Trail) error {
	if err := r.check(t.GUID, t.Category); err != nil {
		return err
	}
	if t.Geometry != nil && t.Geometry.MapID != uint32(t.MapID) {
		return fmt.Errorf("trail %s: %w (file %d, trail %d)", t.GUID, ErrMapMismatch, t.Geometry.MapID, t.MapID)
	}
	t.Attributes = t.Attributes.Clone()
	r.seq++
	r.entries[t.GUID] = &entry{trail: &t, seq: r.seq}
	r.trails[t.MapID] = append(r.trails[t.MapID], t.GUID)
	return nil
}

// AddTrailBinary decodes data as a .trl file and registers t with that
// geometry. The geometry is never decoded again.
func (r *Registry) AddTrailBinary(t core.Trail, data []byte) error {
	g, err := trl.Decode(data)
	if err != nil {
		return fmt.Errorf("trail %s: %w", t.GUID, err)
	}
	t.Geometry = &g
	return r.AddTrail(t)
}

// Remove deletes the marker or trail with guid.
func (r *Registry) Remove(guid uuid.UUID) bool {
	e, ok := r.entries[guid]
	if !ok {
		return false
	}
	delete(r.entries, guid)
	index := r.trails
	if e.marker != nil {
		index = r.markers
	}
	m := e.mapID()
	index[m] = slices.DeleteFunc(index[m], func(id uuid.UUID) bool { return id == guid })
	if len(index[m]) == 0 {
		delete(index, m)
	}
	return true
}

func (r *Registry) Marker(guid uuid.UUID) (*core.Marker, bool) {
	e, ok := r.entries[guid]
	if !ok || e.marker == nil {
		return nil, false
	}
	return e.marker, true
}

func (r *Registry) Trail(guid uuid.UUID) (*core.Trail, bool) {
	e, ok := r.entries[guid]
	if !ok || e.trail == nil {
		return nil, false
	}
	return e.trail, true
}

// Contains reports whether guid is a registered marker or trail.
func (r *Registry) Contains(guid uuid.UUID) bool {
	_, ok := r.entries[guid]
	return ok
}

// Category returns the category of the entity with guid.
func (r *Registry) Category(guid uuid.UUID) (core.CategoryID, bool) {
	e, ok := r.entries[guid]
	if !ok {
		return 0, false
	}
	return e.category(), true
}

// Override returns the entity's own template and its version.
func (r *Registry) Override(guid uuid.UUID) (core.Attributes, uint64, bool) {
	e, ok := r.entries[guid]
	if !ok {
		return core.Attributes{}, 0, false
	}
	if e.marker != nil {
		return e.marker.Attributes, e.version, true
	}
	return e.trail.Attributes, e.version, true
}

// SetAttributes replaces the entity's own template and bumps its version.
func (r *Registry) SetAttributes(guid uuid.UUID, attrs core.Attributes) error {
	e, ok := r.entries[guid]
	if !ok {
		return fmt.Errorf("set attributes of %s: %w", guid, ErrNotFound)
	}
	if e.marker != nil {
		e.marker.Attributes = attrs.Clone()
	} else {
		e.trail.Attributes = attrs.Clone()
	}
	e.version++
	return nil
}

// MarkersByMap returns a sequence over the markers on mapID in insertion
// order. Each iteration of the sequence starts over.
func (r *Registry) MarkersByMap(mapID uint16) iter.Seq[*core.Marker] {
	return func(yield func(*core.Marker) bool) {
		for _, guid := range r.markers[mapID] {
			if e, ok := r.entries[guid]; ok && !yield(e.marker) {
				return
			}
		}
	}
}

// TrailsByMap returns a sequence over the trails on mapID in insertion order.
func (r *Registry) TrailsByMap(mapID uint16) iter.Seq[*core.Trail] {
	return func(yield func(*core.Trail) bool) {
		for _, guid := range r.trails[mapID] {
			if e, ok := r.entries[guid]; ok && !yield(e.trail) {
				return
			}
		}
	}
}

// Markers returns every marker ordered by map id, then insertion.
func (r *Registry) Markers() []*core.Marker {
	var out []*core.Marker
	for _, m := range sortedKeys(r.markers) {
		out = slices.AppendSeq(out, r.MarkersByMap(m))
	}
	return out
}

// Trails returns every trail ordered by map id, then insertion.
func (r *Registry) Trails() []*core.Trail {
	var out []*core.Trail
	for _, m := range sortedKeys(r.trails) {
		out = slices.AppendSeq(out, r.TrailsByMap(m))
	}
	return out
}

// Maps returns every map id with at least one entity, ascending.
func (r *Registry) Maps() []uint16 {
	ids := sortedKeys(r.markers)
	for _, m := range sortedKeys(r.trails) {
		if _, ok := r.markers[m]; !ok {
			ids = append(ids, m)
		}
	}
	slices.Sort(ids)
	return ids
}

func sortedKeys(m map[uint16][]uuid.UUID) []uint16 {
	keys := make([]uint16, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Orphans lists entities whose category is in removed, in insertion order.
func (r *Registry) Orphans(removed []core.CategoryID) []uuid.UUID {
	set := make(map[core.CategoryID]struct{}, len(removed))
	for _, id := range removed {
		set[id] = struct{}{}
	}
	var hits []*entry
	for _, e := range r.entries {
		if _, hit := set[e.category()]; hit {
			hits = append(hits, e)
		}
	}
	slices.SortFunc(hits, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	ids := make([]uuid.UUID, len(hits))
	for i, e := range hits {
		ids[i] = e.guid()
	}
	return ids
}

// RemoveCategories deletes every entity whose category is in removed and
// returns their guids.
func (r *Registry) RemoveCategories(removed []core.CategoryID) []uuid.UUID {
	orphans := r.Orphans(removed)
	for _, guid := range orphans {
		r.Remove(guid)
	}
	return orphans
}

// Len returns the number of markers and trails.
func (r *Registry) Len() (markers, trails int) {
	for _, e := range r.entries {
		if e.marker != nil {
			markers++
		} else {
			trails++
		}
	}
	return markers, trails
}
