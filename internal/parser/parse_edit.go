package parser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/internal/util"
	"github.com/OCAP2/markerpack/pkg/core"
)

// CategoryLookup resolves a slash separated category path.
type CategoryLookup func(path string) (core.CategoryID, bool)

// parseParentRef parses an optional parent reference. An empty string
// means the category becomes a root.
func parseParentRef(s string, lookup CategoryLookup) (*core.CategoryID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := ParseCategoryRef(s, lookup)
	if err != nil {
		return nil, fmt.Errorf("parent: %w", err)
	}
	return &id, nil
}

func parseAttributes(s string) (core.Attributes, error) {
	var attrs core.Attributes
	if s == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return attrs, fmt.Errorf("error unmarshalling attributes: %w", err)
	}
	return attrs, nil
}

// ParseCreateCategory parses [parent, name?]. An empty parent creates a root.
func (p *Parser) ParseCreateCategory(args []string, lookup CategoryLookup) (*core.CategoryID, string, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, "", fmt.Errorf("create category: %w: got %d, want 1 or 2", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)
	parent, err := parseParentRef(args[0], lookup)
	if err != nil {
		return nil, "", err
	}
	var name string
	if len(args) == 2 {
		name = args[1]
	}
	return parent, name, nil
}

// ParseMoveCategory parses [category, newParent]. An empty parent moves the
// category to the roots.
func (p *Parser) ParseMoveCategory(args []string, lookup CategoryLookup) (core.CategoryID, *core.CategoryID, error) {
	if len(args) != 2 {
		return 0, nil, fmt.Errorf("move category: %w: got %d, want 2", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)
	id, err := ParseCategoryRef(args[0], lookup)
	if err != nil {
		return 0, nil, err
	}
	parent, err := parseParentRef(args[1], lookup)
	if err != nil {
		return 0, nil, err
	}
	return id, parent, nil
}

// ParseCategoryAttributes parses [category, attributes JSON].
func (p *Parser) ParseCategoryAttributes(args []string, lookup CategoryLookup) (core.CategoryID, core.Attributes, error) {
	if len(args) != 2 {
		return 0, core.Attributes{}, fmt.Errorf("category attributes: %w: got %d, want 2", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)
	id, err := ParseCategoryRef(args[0], lookup)
	if err != nil {
		return 0, core.Attributes{}, err
	}
	attrs, err := parseAttributes(args[1])
	return id, attrs, err
}

// ParseEntityAttributes parses [guid, attributes JSON].
func (p *Parser) ParseEntityAttributes(args []string) (uuid.UUID, core.Attributes, error) {
	if len(args) != 2 {
		return uuid.Nil, core.Attributes{}, fmt.Errorf("entity attributes: %w: got %d, want 2", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)
	guid, err := ParseGUID(args[0])
	if err != nil {
		return uuid.Nil, core.Attributes{}, err
	}
	attrs, err := parseAttributes(args[1])
	return guid, attrs, err
}

// ParseMarker parses [marker JSON]. A marker without a guid gets a new one.
func (p *Parser) ParseMarker(args []string) (core.Marker, error) {
	var m core.Marker
	if len(args) != 1 {
		return m, fmt.Errorf("marker: %w: got %d, want 1", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)
	if err := json.Unmarshal([]byte(args[0]), &m); err != nil {
		return m, fmt.Errorf("error unmarshalling marker: %w", err)
	}
	if m.GUID == uuid.Nil {
		m.GUID = uuid.New()
	}

	p.logger.Debug("Parsed marker",
		"guid", m.GUID,
		"mapId", m.MapID,
		"category", m.Category)

	return m, nil
}

// ParseTrail parses [trail JSON, base64 .trl data?]. A trail without a guid
// gets a new one. The returned data is nil when no geometry was sent.
func (p *Parser) ParseTrail(args []string) (core.Trail, []byte, error) {
	var t core.Trail
	if len(args) < 1 || len(args) > 2 {
		return t, nil, fmt.Errorf("trail: %w: got %d, want 1 or 2", ErrArgCount, len(args))
	}
	args = util.CleanArgs(args)
	if err := json.Unmarshal([]byte(args[0]), &t); err != nil {
		return t, nil, fmt.Errorf("error unmarshalling trail: %w", err)
	}
	if t.GUID == uuid.Nil {
		t.GUID = uuid.New()
	}
	var data []byte
	if len(args) == 2 && args[1] != "" {
		raw, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			return t, nil, fmt.Errorf("invalid trail data: %w", err)
		}
		data = raw
	}
	return t, data, nil
}
