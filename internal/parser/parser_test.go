package parser

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/pkg/core"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	p := newTestParser()
	require.NotNil(t, p)
}

func TestParseUintFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"float with decimals", "32.00", 32, false},
		{"float with trailing zero", "30.0", 30, false},
		{"large integer", "65535", 65535, false},
		{"large float", "65535.00", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUintFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseIntFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"negative integer", "-1", -1, false},
		{"float with decimals", "32.00", 32, false},
		{"negative float", "-1.00", -1, false},
		{"large integer", "65535", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}


func TestParseContext(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		args    []string
		want    core.Context
		wantErr bool
	}{
		{
			name: "minimal",
			args: []string{"15", "7", `"Alice"`},
			want: core.Context{MapID: 15, InstanceID: 7, Character: "Alice"},
		},
		{
			name: "float ids",
			args: []string{"1206.00", "42.0", "Bob"},
			want: core.Context{MapID: 1206, InstanceID: 42, Character: "Bob"},
		},
		{
			name: "no character",
			args: []string{"15", "7", ""},
			want: core.Context{MapID: 15, InstanceID: 7},
		},
		{
			name: "with filters",
			args: []string{"15", "7", "Alice", `"{""race"":4,""profession"":2,""mount"":1,""mapType"":32,""festivals"":8,""specializations"":[0,71]}"`},
			want: core.Context{
				MapID: 15, InstanceID: 7, Character: "Alice",
				Race: core.RaceHuman, Profession: 2, Mount: 1, MapType: core.MapTypePublic, Festivals: 8,
				Specializations: core.SpecializationSet(0, 71),
			},
		},
		{
			name: "empty filters",
			args: []string{"15", "7", "Alice", ""},
			want: core.Context{MapID: 15, InstanceID: 7, Character: "Alice"},
		},
		{name: "too few", args: []string{"15", "7"}, wantErr: true},
		{name: "too many", args: []string{"15", "7", "a", "{}", "x"}, wantErr: true},
		{name: "map id overflow", args: []string{"70000", "7", "a"}, wantErr: true},
		{name: "negative instance", args: []string{"15", "-1", "a"}, wantErr: true},
		{name: "bad json", args: []string{"15", "7", "a", "{race"}, wantErr: true},
		{name: "bad specialization", args: []string{"15", "7", "a", `{"specializations":[72]}`}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseContext(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseContext_ArgCount(t *testing.T) {
	_, err := newTestParser().ParseContext(nil)
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestParseGUID(t *testing.T) {
	id := uuid.MustParse("0f6d8a3c-2d1e-4b5a-9c8d-7e6f5a4b3c2d")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"canonical", id.String(), false},
		{"quoted", `"` + id.String() + `"`, false},
		{"base64", core.Base64GUID(id), false},
		{"garbage", "not-a-guid", true},
		{"short base64", "AAAA", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGUID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}

func TestParseGUIDArg(t *testing.T) {
	p := newTestParser()
	_, err := p.ParseGUIDArg([]string{"a", "b"})
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestParsePosition(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		args    []string
		want    core.Vec3
		wantErr bool
	}{
		{"single", []string{`"1.5,2,-3"`}, core.Vec3{1.5, 2, -3}, false},
		{"three", []string{"1", "2", "3"}, core.Vec3{1, 2, 3}, false},
		{"two", []string{"1", "2"}, core.Vec3{}, true},
		{"not numbers", []string{"a,b,c"}, core.Vec3{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParsePosition(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategoryRef(t *testing.T) {
	lookup := func(path string) (core.CategoryID, bool) {
		if path == "tyria/jp" {
			return 4, true
		}
		return 0, false
	}

	tests := []struct {
		name    string
		input   string
		want    core.CategoryID
		wantErr bool
		errIs   error
	}{
		{name: "numeric", input: "3", want: 3},
		{name: "float", input: "3.0", want: 3},
		{name: "path", input: `"tyria/jp"`, want: 4},
		{name: "unknown path", input: "tyria/hp", wantErr: true, errIs: ErrUnknownCategory},
		{name: "overflow", input: "70000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategoryRef(tt.input, lookup)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseToggle(t *testing.T) {
	p := newTestParser()

	id, enabled, err := p.ParseToggle([]string{"2", `"false"`}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryID(2), id)
	assert.False(t, enabled)

	_, _, err = p.ParseToggle([]string{"2", "maybe"}, nil)
	assert.Error(t, err)

	_, _, err = p.ParseToggle([]string{"2"}, nil)
	assert.ErrorIs(t, err, ErrArgCount)
}
