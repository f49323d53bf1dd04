// pkg/core/behavior.go
package core

import "fmt"

// BehaviorKind describes what happens when the player triggers a marker.
// Values match the numeric "behavior" attribute used by TacO packs.
type BehaviorKind uint8

const (
	AlwaysVisible BehaviorKind = iota
	ReappearOnMapChange
	ReappearOnDailyReset
	OnlyVisibleBeforeActivation
	ReappearAfterTimer
	ReappearOnMapReset
	OncePerInstance
	DailyPerChar
	OncePerInstancePerChar
	WvWObjective
)

var behaviorNames = [...]string{
	AlwaysVisible:               "AlwaysVisible",
	ReappearOnMapChange:         "ReappearOnMapChange",
	ReappearOnDailyReset:        "ReappearOnDailyReset",
	OnlyVisibleBeforeActivation: "OnlyVisibleBeforeActivation",
	ReappearAfterTimer:          "ReappearAfterTimer",
	ReappearOnMapReset:          "ReappearOnMapReset",
	OncePerInstance:             "OncePerInstance",
	DailyPerChar:                "DailyPerChar",
	OncePerInstancePerChar:      "OncePerInstancePerChar",
	WvWObjective:                "WvWObjective",
}

func (k BehaviorKind) String() string {
	if k.Valid() {
		return behaviorNames[k]
	}
	return fmt.Sprintf("BehaviorKind(%d)", uint8(k))
}

// Valid reports whether k is a known variant.
func (k BehaviorKind) Valid() bool {
	return int(k) < len(behaviorNames)
}

// Scope is where the suppression record of a triggered marker lives.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeAccount
	ScopeCharacter
	ScopeLive
)

func (s Scope) String() string {
	switch s {
	case ScopeAccount:
		return "account"
	case ScopeCharacter:
		return "character"
	case ScopeLive:
		return "live"
	default:
		return "none"
	}
}

// Scope returns the suppression scope implied by the variant.
func (k BehaviorKind) Scope() Scope {
	switch k {
	case ReappearOnDailyReset, OnlyVisibleBeforeActivation, ReappearAfterTimer, ReappearOnMapReset:
		return ScopeAccount
	case DailyPerChar:
		return ScopeCharacter
	case ReappearOnMapChange, OncePerInstance, OncePerInstancePerChar:
		return ScopeLive
	default:
		return ScopeNone
	}
}

// Behavior is a fully resolved behavior with its parameters.
type Behavior struct {
	Kind BehaviorKind `json:"kind"`
	// ResetLength is the sleep duration in seconds for ReappearAfterTimer.
	ResetLength uint32 `json:"resetLength,omitempty"`
	// CycleLength and CycleOffset (seconds) drive ReappearOnMapReset.
	CycleLength uint32 `json:"cycleLength,omitempty"`
	CycleOffset uint32 `json:"cycleOffset,omitempty"`
}

// Triggerable reports whether triggering the marker changes its state at all.
// WvWObjective is kept inert until its semantics are defined.
func (b Behavior) Triggerable() bool {
	return b.Kind != AlwaysVisible && b.Kind != WvWObjective && b.Kind.Valid()
}

func (b Behavior) String() string {
	switch b.Kind {
	case ReappearAfterTimer:
		return fmt.Sprintf("%s{resetLength=%d}", b.Kind, b.ResetLength)
	case ReappearOnMapReset:
		return fmt.Sprintf("%s{cycleLength=%d, cycleOffset=%d}", b.Kind, b.CycleLength, b.CycleOffset)
	default:
		return b.Kind.String()
	}
}
