// pkg/core/marker.go
package core

import "github.com/google/uuid"

// Marker is a point of interest on a map.
type Marker struct {
	GUID       uuid.UUID  `json:"guid"`
	MapID      uint16     `json:"mapId"`
	Position   Vec3       `json:"position"`
	Category   CategoryID `json:"category"`
	Attributes Attributes `json:"attributes,omitzero"`
}

// Trail is a path drawn on a map. Its geometry lives in a separate .trl file
// and is decoded once when the trail is registered.
type Trail struct {
	GUID       uuid.UUID      `json:"guid"`
	MapID      uint16         `json:"mapId"`
	Category   CategoryID     `json:"category"`
	Attributes Attributes     `json:"attributes,omitzero"`
	TrailFile  string         `json:"trailFile,omitempty"`
	Geometry   *TrailGeometry `json:"-"`
}

// TrailGeometry is the decoded content of a .trl file.
type TrailGeometry struct {
	Version uint32
	MapID   uint32
	Nodes   []Vec3
}
