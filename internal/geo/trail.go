package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/markerpack/pkg/core"
)

// TrailLine builds a line string from trail nodes. Trails with fewer than
// two nodes yield an empty line.
func TrailLine(nodes []core.Vec3) geom.LineString {
	if len(nodes) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(nodes)*3)
	for _, n := range nodes {
		flat = append(flat, float64(n[0]), float64(n[2]), float64(n[1]))
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
}

// Summary describes a trail for culling and display.
type Summary struct {
	Nodes  int     `json:"nodes"`
	Length float64 `json:"length"`
	// MinX/MinZ and MaxX/MaxZ bound the trail on the map plane.
	MinX float64 `json:"minX"`
	MinZ float64 `json:"minZ"`
	MaxX float64 `json:"maxX"`
	MaxZ float64 `json:"maxZ"`
}

// Summarize returns the planar length and bounding box of g.
func Summarize(g core.TrailGeometry) Summary {
	s := Summary{Nodes: len(g.Nodes)}
	if len(g.Nodes) == 0 {
		return s
	}
	ls := TrailLine(g.Nodes)
	s.Length = ls.Length()

	env := ls.Envelope()
	if len(g.Nodes) == 1 {
		env = Point(g.Nodes[0]).Envelope()
	}
	if lo, hi, ok := env.MinMaxXYs(); ok {
		s.MinX, s.MinZ = lo.X, lo.Y
		s.MaxX, s.MaxZ = hi.X, hi.Y
	}
	return s
}

// Contains reports whether the map plane position of v lies inside the
// summary's bounding box grown by margin.
func (s Summary) Contains(v core.Vec3, margin float64) bool {
	x, z := float64(v[0]), float64(v[2])
	return s.Nodes > 0 &&
		x >= s.MinX-margin && x <= s.MaxX+margin &&
		z >= s.MinZ-margin && z <= s.MaxZ+margin
}

// ParseNodes parses a JSON array of [x,y,z] triples.
// Input format: "[[x1,y1,z1],[x2,y2,z2],...]"
func ParseNodes(input string) ([]core.Vec3, error) {
	var coords [][]float32
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse trail nodes JSON: %w", err)
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("trail must have at least 2 nodes, got %d", len(coords))
	}
	nodes := make([]core.Vec3, len(coords))
	for i, c := range coords {
		if len(c) != 3 {
			return nil, fmt.Errorf("node %d has %d values, want 3", i, len(c))
		}
		nodes[i] = core.Vec3{c[0], c[1], c[2]}
	}
	return nodes, nil
}
