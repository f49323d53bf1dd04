package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/markerpack/pkg/core"
)

// Game coordinates are y-up. The map plane is (x, z), so geometries are
// built with XY = (x, z) and Z = height.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Vec3FromString parses "x,y,z" into a position.
func Vec3FromString(coords string) (core.Vec3, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 3 {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	var v core.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		v[i] = float32(f)
	}
	return v, nil
}

// Point converts a game position to a planar point with height.
func Point(v core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: float64(v[0]), Y: float64(v[2])},
		Z:    float64(v[1]),
		Type: geom.DimXYZ,
	})
}

// Distance returns the straight line distance between two positions.
func Distance(a, b core.Vec3) float64 {
	dx := float64(a[0] - b[0])
	dy := float64(a[1] - b[1])
	dz := float64(a[2] - b[2])
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Within reports whether b is within r meters of a.
func Within(a, b core.Vec3, r float32) bool {
	return Distance(a, b) <= float64(r)
}
