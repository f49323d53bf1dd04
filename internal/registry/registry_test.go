package registry

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/internal/category"
	"github.com/OCAP2/markerpack/internal/trl"
	"github.com/OCAP2/markerpack/pkg/core"
)

func newRegistry(t *testing.T, ids ...core.CategoryID) (*Registry, *category.Tree) {
	t.Helper()
	tree := category.New()
	for _, id := range ids {
		require.NoError(t, tree.Insert(nil, core.Category{ID: id}))
	}
	return New(tree), tree
}

func marker(mapID uint16, cat core.CategoryID) core.Marker {
	return core.Marker{GUID: uuid.New(), MapID: mapID, Category: cat}
}

func TestAddMarker_Validation(t *testing.T) {
	r, _ := newRegistry(t, 1)

	m := marker(15, 1)
	require.NoError(t, r.AddMarker(m))

	var dup *DuplicateGUIDError
	err := r.AddMarker(m)
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, m.GUID, dup.GUID)

	var dangling *DanglingCategoryError
	bad := marker(15, 9)
	err = r.AddMarker(bad)
	require.True(t, errors.As(err, &dangling))
	assert.Equal(t, core.CategoryID(9), dangling.Category)
	assert.Equal(t, bad.GUID, dangling.GUID)

	err = r.AddMarker(core.Marker{Category: 1})
	assert.ErrorIs(t, err, ErrNilGUID)

	markers, trails := r.Len()
	assert.Equal(t, 1, markers)
	assert.Equal(t, 0, trails)
}

func TestGUIDsAreSharedBetweenMarkersAndTrails(t *testing.T) {
	r, _ := newRegistry(t, 1)
	m := marker(15, 1)
	require.NoError(t, r.AddMarker(m))

	var dup *DuplicateGUIDError
	err := r.AddTrail(core.Trail{GUID: m.GUID, MapID: 15, Category: 1})
	assert.True(t, errors.As(err, &dup))
}

func TestMarkersByMap_LazyAndRestartable(t *testing.T) {
	r, _ := newRegistry(t, 1)
	var want []uuid.UUID
	for i := 0; i < 5; i++ {
		m := marker(15, 1)
		want = append(want, m.GUID)
		require.NoError(t, r.AddMarker(m))
	}
	require.NoError(t, r.AddMarker(marker(16, 1)))

	seq := r.MarkersByMap(15)
	collect := func() []uuid.UUID {
		var got []uuid.UUID
		for m := range seq {
			got = append(got, m.GUID)
		}
		return got
	}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect(), "second iteration restarts")

	// early stop
	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	assert.Empty(t, slices.Collect(r.MarkersByMap(99)))
}

func TestAddTrailBinary(t *testing.T) {
	r, _ := newRegistry(t, 1)
	data := trl.Encode(core.TrailGeometry{MapID: 15, Nodes: []core.Vec3{{1, 2, 3}, {4, 5, 6}}})

	tr := core.Trail{GUID: uuid.New(), MapID: 15, Category: 1, TrailFile: "a.trl"}
	require.NoError(t, r.AddTrailBinary(tr, data))

	got, ok := r.Trail(tr.GUID)
	require.True(t, ok)
	require.NotNil(t, got.Geometry)
	assert.Len(t, got.Geometry.Nodes, 2)

	trails := slices.Collect(r.TrailsByMap(15))
	require.Len(t, trails, 1)
	assert.Same(t, got, trails[0])
}

func TestAddTrailBinary_Errors(t *testing.T) {
	r, _ := newRegistry(t, 1)

	err := r.AddTrailBinary(core.Trail{GUID: uuid.New(), MapID: 15, Category: 1}, make([]byte, 7))
	assert.ErrorIs(t, err, trl.ErrFileTooSmall)

	data := trl.Encode(core.TrailGeometry{MapID: 16, Nodes: []core.Vec3{{1, 2, 3}}})
	err = r.AddTrailBinary(core.Trail{GUID: uuid.New(), MapID: 15, Category: 1}, data)
	assert.ErrorIs(t, err, ErrMapMismatch)

	_, trails := r.Len()
	assert.Zero(t, trails)
}

func TestRemove(t *testing.T) {
	r, _ := newRegistry(t, 1)
	m := marker(15, 1)
	require.NoError(t, r.AddMarker(m))

	assert.True(t, r.Remove(m.GUID))
	assert.False(t, r.Remove(m.GUID))
	assert.False(t, r.Contains(m.GUID))
	assert.Empty(t, r.Maps())
}

func TestOrphansAfterCategoryRemoval(t *testing.T) {
	r, tree := newRegistry(t)
	root, err := tree.CreateChild(nil)
	require.NoError(t, err)
	rootID := root.ID
	child, err := tree.CreateChild(&rootID)
	require.NoError(t, err)
	other, err := tree.CreateChild(nil)
	require.NoError(t, err)

	a := marker(1, child.ID)
	b := core.Trail{GUID: uuid.New(), MapID: 2, Category: rootID}
	c := marker(1, other.ID)
	require.NoError(t, r.AddMarker(a))
	require.NoError(t, r.AddTrail(b))
	require.NoError(t, r.AddMarker(c))

	removed, err := tree.Remove(rootID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{a.GUID, b.GUID}, r.Orphans(removed))
	assert.Equal(t, []uuid.UUID{a.GUID, b.GUID}, r.RemoveCategories(removed))
	assert.Empty(t, r.Orphans(removed))
	assert.True(t, r.Contains(c.GUID))
}

func TestSetAttributesBumpsVersion(t *testing.T) {
	r, _ := newRegistry(t, 1)
	m := marker(15, 1)
	require.NoError(t, r.AddMarker(m))

	_, v0, ok := r.Override(m.GUID)
	require.True(t, ok)
	require.NoError(t, r.SetAttributes(m.GUID, core.Attributes{Alpha: core.Ptr[float32](0.3)}))

	attrs, v1, _ := r.Override(m.GUID)
	assert.Equal(t, v0+1, v1)
	assert.Equal(t, float32(0.3), *attrs.Alpha)

	assert.ErrorIs(t, r.SetAttributes(uuid.New(), core.Attributes{}), ErrNotFound)
}

func TestMapsAndOrdering(t *testing.T) {
	r, _ := newRegistry(t, 1)
	m50 := marker(50, 1)
	m15 := marker(15, 1)
	require.NoError(t, r.AddMarker(m50))
	require.NoError(t, r.AddMarker(m15))
	require.NoError(t, r.AddTrail(core.Trail{GUID: uuid.New(), MapID: 30, Category: 1}))

	assert.Equal(t, []uint16{15, 30, 50}, r.Maps())
	all := r.Markers()
	require.Len(t, all, 2)
	assert.Equal(t, m15.GUID, all[0].GUID)
	assert.Equal(t, m50.GUID, all[1].GUID)
}
