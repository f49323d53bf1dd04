package parser

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/internal/trl"
	"github.com/OCAP2/markerpack/pkg/core"
)

func testLookup(path string) (core.CategoryID, bool) {
	if path == "tyria/jp" {
		return 4, true
	}
	return 0, false
}

func TestParseCreateCategory(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name       string
		args       []string
		wantParent *core.CategoryID
		wantName   string
		wantErr    bool
	}{
		{name: "root", args: []string{""}, wantParent: nil},
		{name: "root with name", args: []string{`""`, `"fish"`}, wantName: "fish"},
		{name: "under path", args: []string{"tyria/jp", "daily"}, wantParent: core.Ptr[core.CategoryID](4), wantName: "daily"},
		{name: "under id", args: []string{"7"}, wantParent: core.Ptr[core.CategoryID](7)},
		{name: "unknown parent", args: []string{"nowhere"}, wantErr: true},
		{name: "no args", args: nil, wantErr: true},
		{name: "too many", args: []string{"1", "a", "b"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, name, err := p.ParseCreateCategory(tt.args, testLookup)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantParent, parent)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestParseMoveCategory(t *testing.T) {
	p := newTestParser()

	id, parent, err := p.ParseMoveCategory([]string{"3", "tyria/jp"}, testLookup)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryID(3), id)
	require.NotNil(t, parent)
	assert.Equal(t, core.CategoryID(4), *parent)

	id, parent, err = p.ParseMoveCategory([]string{"tyria/jp", ""}, testLookup)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryID(4), id)
	assert.Nil(t, parent)

	_, _, err = p.ParseMoveCategory([]string{"3"}, testLookup)
	assert.ErrorIs(t, err, ErrArgCount)
	_, _, err = p.ParseMoveCategory([]string{"missing", ""}, testLookup)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestParseCategoryAttributes(t *testing.T) {
	p := newTestParser()

	// hosts double the quotes inside string arguments
	id, attrs, err := p.ParseCategoryAttributes([]string{"2", `"{""alpha"":0.5,""behavior"":4,""resetLength"":60}"`}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryID(2), id)
	require.NotNil(t, attrs.Alpha)
	assert.Equal(t, float32(0.5), *attrs.Alpha)
	assert.Equal(t, core.ReappearAfterTimer, *attrs.Behavior)
	assert.Equal(t, uint32(60), *attrs.ResetLength)

	_, attrs, err = p.ParseCategoryAttributes([]string{"2", ""}, nil)
	require.NoError(t, err)
	assert.True(t, attrs.IsZero())

	_, _, err = p.ParseCategoryAttributes([]string{"2", "{not json"}, nil)
	assert.Error(t, err)
}

func TestParseEntityAttributes(t *testing.T) {
	p := newTestParser()
	guid := uuid.MustParse("20000000-0000-0000-0000-000000000001")

	got, attrs, err := p.ParseEntityAttributes([]string{core.Base64GUID(guid), `{"triggerRange":5}`})
	require.NoError(t, err)
	assert.Equal(t, guid, got)
	assert.Equal(t, float32(5), *attrs.TriggerRange)

	_, _, err = p.ParseEntityAttributes([]string{"garbage", `{}`})
	assert.Error(t, err)
}

func TestParseMarker(t *testing.T) {
	p := newTestParser()

	m, err := p.ParseMarker([]string{`{"guid":"20000000-0000-0000-0000-000000000001","mapId":15,"position":[1,2,3],"category":4}`})
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("20000000-0000-0000-0000-000000000001"), m.GUID)
	assert.Equal(t, uint16(15), m.MapID)
	assert.Equal(t, core.Vec3{1, 2, 3}, m.Position)
	assert.Equal(t, core.CategoryID(4), m.Category)

	m, err = p.ParseMarker([]string{`{"mapId":15}`})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.GUID)

	_, err = p.ParseMarker([]string{"[]"})
	assert.Error(t, err)
	_, err = p.ParseMarker(nil)
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestParseTrail(t *testing.T) {
	p := newTestParser()
	geometry := trl.Encode(core.TrailGeometry{MapID: 15, Nodes: []core.Vec3{{1, 2, 3}}})

	tr, data, err := p.ParseTrail([]string{`{"mapId":15,"category":1}`, base64.StdEncoding.EncodeToString(geometry)})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tr.GUID)
	assert.Equal(t, uint16(15), tr.MapID)
	assert.Equal(t, geometry, data)

	_, data, err = p.ParseTrail([]string{`{"mapId":15}`})
	require.NoError(t, err)
	assert.Nil(t, data)

	_, _, err = p.ParseTrail([]string{`{"mapId":15}`, "%%%"})
	assert.Error(t, err)
}
