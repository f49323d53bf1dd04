// pkg/core/attributes.go
package core

// Attributes is a template of optional display and behavior settings.
// A nil field is transparent in the cascade: the value comes from the
// nearest ancestor category that sets it, or from the hard defaults.
type Attributes struct {
	Alpha          *float32  `json:"alpha,omitempty"`
	Color          *[4]uint8 `json:"color,omitempty"`
	Scale          *float32  `json:"iconSize,omitempty"`
	IconFile       *string   `json:"iconFile,omitempty"`
	Texture        *string   `json:"texture,omitempty"`
	HeightOffset   *float32  `json:"heightOffset,omitempty"`
	Rotation       *Vec3     `json:"rotation,omitempty"`
	FadeNear       *float32  `json:"fadeNear,omitempty"`
	FadeFar        *float32  `json:"fadeFar,omitempty"`
	MinSize        *uint16   `json:"minSize,omitempty"`
	MaxSize        *uint16   `json:"maxSize,omitempty"`
	MapDisplaySize *uint16   `json:"mapDisplaySize,omitempty"`
	TriggerRange   *float32  `json:"triggerRange,omitempty"`
	InfoText       *string   `json:"info,omitempty"`
	InfoRange      *float32  `json:"infoRange,omitempty"`
	TipName        *string   `json:"tipName,omitempty"`
	TipDescription *string   `json:"tipDescription,omitempty"`
	ToggleCategory *string   `json:"toggleCategory,omitempty"`
	TrailScale     *float32  `json:"trailScale,omitempty"`
	TrailDataFile  *string   `json:"trailData,omitempty"`

	// Behavior and its parameters cascade independently, so a category can
	// set resetLength for children that pick the behavior themselves.
	Behavior    *BehaviorKind `json:"behavior,omitempty"`
	ResetLength *uint32       `json:"resetLength,omitempty"`
	ResetOffset *uint32       `json:"resetOffset,omitempty"`

	Flags           *MarkerFlags     `json:"flags,omitempty"`
	Races           *Races           `json:"races,omitempty"`
	Professions     *Professions     `json:"professions,omitempty"`
	Mounts          *Mounts          `json:"mounts,omitempty"`
	Festivals       *Festivals       `json:"festivals,omitempty"`
	Specializations *Specializations `json:"specializations,omitempty"`
	MapTypes        *MapTypes        `json:"mapTypes,omitempty"`
}

// take copies src into *dst when dst is unset. The copy keeps the two
// templates from sharing storage.
func take[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// InheritFrom fills every unset field of a from other. Fields already set on
// a are never overwritten.
func (a *Attributes) InheritFrom(other *Attributes) {
	if other == nil {
		return
	}
	take(&a.Alpha, other.Alpha)
	take(&a.Color, other.Color)
	take(&a.Scale, other.Scale)
	take(&a.IconFile, other.IconFile)
	take(&a.Texture, other.Texture)
	take(&a.HeightOffset, other.HeightOffset)
	take(&a.Rotation, other.Rotation)
	take(&a.FadeNear, other.FadeNear)
	take(&a.FadeFar, other.FadeFar)
	take(&a.MinSize, other.MinSize)
	take(&a.MaxSize, other.MaxSize)
	take(&a.MapDisplaySize, other.MapDisplaySize)
	take(&a.TriggerRange, other.TriggerRange)
	take(&a.InfoText, other.InfoText)
	take(&a.InfoRange, other.InfoRange)
	take(&a.TipName, other.TipName)
	take(&a.TipDescription, other.TipDescription)
	take(&a.ToggleCategory, other.ToggleCategory)
	take(&a.TrailScale, other.TrailScale)
	take(&a.TrailDataFile, other.TrailDataFile)
	take(&a.Behavior, other.Behavior)
	take(&a.ResetLength, other.ResetLength)
	take(&a.ResetOffset, other.ResetOffset)
	take(&a.Flags, other.Flags)
	take(&a.Races, other.Races)
	take(&a.Professions, other.Professions)
	take(&a.Mounts, other.Mounts)
	take(&a.Festivals, other.Festivals)
	take(&a.Specializations, other.Specializations)
	take(&a.MapTypes, other.MapTypes)
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	var c Attributes
	c.InheritFrom(&a)
	return c
}

// IsZero reports whether no field is set.
func (a Attributes) IsZero() bool {
	return a == Attributes{}
}

// Ptr returns a pointer to v. Handy for building templates.
func Ptr[T any](v T) *T { return &v }

// Resolved is the effective attribute set of an entity after the cascade.
// Every field has a value.
type Resolved struct {
	Alpha          float32  `json:"alpha"`
	Color          [4]uint8 `json:"color"`
	Scale          float32  `json:"iconSize"`
	IconFile       string   `json:"iconFile,omitempty"`
	Texture        string   `json:"texture,omitempty"`
	HeightOffset   float32  `json:"heightOffset"`
	Rotation       *Vec3    `json:"rotation,omitempty"`
	FadeNear       float32  `json:"fadeNear"`
	FadeFar        float32  `json:"fadeFar"`
	MinSize        uint16   `json:"minSize"`
	MaxSize        uint16   `json:"maxSize"`
	MapDisplaySize uint16   `json:"mapDisplaySize"`
	TriggerRange   float32  `json:"triggerRange"`
	InfoText       string   `json:"info,omitempty"`
	InfoRange      float32  `json:"infoRange"`
	TipName        string   `json:"tipName,omitempty"`
	TipDescription string   `json:"tipDescription,omitempty"`
	ToggleCategory string   `json:"toggleCategory,omitempty"`
	TrailScale     float32  `json:"trailScale"`
	TrailDataFile  string   `json:"trailData,omitempty"`
	Behavior       Behavior `json:"behavior"`

	Flags           MarkerFlags     `json:"flags"`
	Races           Races           `json:"races,omitempty"`
	Professions     Professions     `json:"professions,omitempty"`
	Mounts          Mounts          `json:"mounts,omitempty"`
	Festivals       Festivals       `json:"festivals,omitempty"`
	Specializations Specializations `json:"specializations,omitzero"`
	MapTypes        MapTypes        `json:"mapTypes,omitempty"`
}
