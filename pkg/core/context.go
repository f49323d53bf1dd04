// pkg/core/context.go
package core

import "time"

// Context is the game state observed by the host on each tick.
type Context struct {
	MapID      uint16    `json:"mapId"`
	InstanceID uint32    `json:"instanceId"`
	Character  string    `json:"character"`
	Time       time.Time `json:"time"`

	Mount           Mounts          `json:"mount,omitempty"`
	Profession      Professions     `json:"profession,omitempty"`
	Race            Races           `json:"race,omitempty"`
	Specializations Specializations `json:"specializations,omitzero"`
	MapType         MapTypes        `json:"mapType,omitempty"`
	Festivals       Festivals       `json:"festivals,omitempty"`
}

// Passes reports whether r's filter bitsets admit this context.
func (c Context) Passes(r Resolved) bool {
	return r.Races.Matches(c.Race) &&
		r.Professions.Matches(c.Profession) &&
		r.Mounts.Matches(c.Mount) &&
		r.Festivals.Matches(c.Festivals) &&
		r.MapTypes.Matches(c.MapType) &&
		r.Specializations.Matches(c.Specializations)
}
