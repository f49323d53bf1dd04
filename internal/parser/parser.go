package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/internal/geo"
	"github.com/OCAP2/markerpack/internal/util"
	"github.com/OCAP2/markerpack/pkg/core"
)

var (
	ErrArgCount        = errors.New("wrong number of arguments")
	ErrUnknownCategory = errors.New("unknown category")
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Script hosts often serialize every number as a float.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

func parseBounded(s string, bits int, what string) (uint64, error) {
	v, err := parseUintFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	if v>>bits != 0 {
		return 0, fmt.Errorf("invalid %s %q: out of range", what, s)
	}
	return v, nil
}

// contextFilters is the optional JSON object carried as the fourth
// :CONTEXT: argument.
type contextFilters struct {
	Mount           uint16 `json:"mount"`
	Profession      uint16 `json:"profession"`
	Race            uint8  `json:"race"`
	MapType         uint32 `json:"mapType"`
	Festivals       uint8  `json:"festivals"`
	Specializations []int  `json:"specializations"`
}

// Parser provides pure []string -> core value conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseContext parses [mapId, instanceId, character, filters?]. The time
// field is left zero; the service stamps it.
func (p *Parser) ParseContext(args []string) (core.Context, error) {
	var ctx core.Context
	if len(args) < 3 || len(args) > 4 {
		return ctx, fmt.Errorf("context: %w: got %d, want 3 or 4", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)

	mapID, err := parseBounded(args[0], 16, "map id")
	if err != nil {
		return ctx, err
	}
	instanceID, err := parseBounded(args[1], 32, "instance id")
	if err != nil {
		return ctx, err
	}
	ctx.MapID = uint16(mapID)
	ctx.InstanceID = uint32(instanceID)
	ctx.Character = args[2]

	if len(args) == 4 && args[3] != "" {
		var f contextFilters
		if err := json.Unmarshal([]byte(args[3]), &f); err != nil {
			return ctx, fmt.Errorf("error unmarshalling context filters: %w", err)
		}
		for _, o := range f.Specializations {
			if o < 0 || o >= core.SpecializationCount {
				return ctx, fmt.Errorf("invalid specialization ordinal %d", o)
			}
		}
		ctx.Mount = core.Mounts(f.Mount)
		ctx.Profession = core.Professions(f.Profession)
		ctx.Race = core.Races(f.Race)
		ctx.MapType = core.MapTypes(f.MapType)
		ctx.Festivals = core.Festivals(f.Festivals)
		ctx.Specializations = core.SpecializationSet(f.Specializations...)
	}

	p.logger.Debug("Parsed context",
		"mapId", ctx.MapID,
		"instanceId", ctx.InstanceID,
		"character", ctx.Character)

	return ctx, nil
}

// ParseGUID accepts the canonical uuid form as well as the base64 form
// used by marker pack files.
func ParseGUID(s string) (uuid.UUID, error) {
	s = util.TrimQuotes(strings.TrimSpace(s))
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	id, err := core.ParseBase64GUID(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid guid %q: %w", s, err)
	}
	return id, nil
}

// ParseGUIDArg parses a single-argument command.
func (p *Parser) ParseGUIDArg(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, fmt.Errorf("guid: %w: got %d, want 1", ErrArgCount, len(args))
	}
	return ParseGUID(args[0])
}

// ParsePosition parses [x, y, z] or a single "x,y,z" argument.
func (p *Parser) ParsePosition(args []string) (core.Vec3, error) {
	args = util.CleanArgs(args)
	switch len(args) {
	case 1:
		return geo.Vec3FromString(args[0])
	case 3:
		return geo.Vec3FromString(strings.Join(args, ","))
	}
	return core.Vec3{}, fmt.Errorf("position: %w: got %d, want 1 or 3", ErrArgCount, len(args))
}

// ParseCategoryRef resolves a numeric id or a slash separated path. lookup is
// consulted for paths only.
func ParseCategoryRef(s string, lookup CategoryLookup) (core.CategoryID, error) {
	s = util.FixEscapeQuotes(util.TrimQuotes(strings.TrimSpace(s)))
	if s == "" {
		return 0, fmt.Errorf("empty category reference")
	}
	if v, err := parseUintFromFloat(s); err == nil {
		if v > uint64(^core.CategoryID(0)) {
			return 0, fmt.Errorf("invalid category id %q: out of range", s)
		}
		return core.CategoryID(v), nil
	}
	if lookup != nil {
		if id, ok := lookup(s); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// ParseToggle parses [category, enabled].
func (p *Parser) ParseToggle(args []string, lookup CategoryLookup) (core.CategoryID, bool, error) {
	if len(args) != 2 {
		return 0, false, fmt.Errorf("toggle: %w: got %d, want 2", ErrArgCount, len(args))
	}
	id, err := ParseCategoryRef(args[0], lookup)
	if err != nil {
		return 0, false, err
	}
	enabled, ok := util.ParseBool(util.TrimQuotes(args[1]))
	if !ok {
		return 0, false, fmt.Errorf("invalid toggle state %q", args[1])
	}
	return id, enabled, nil
}
