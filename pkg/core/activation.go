// pkg/core/activation.go
package core

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// AccountData is the persisted activation state shared by every character of
// an account.
type AccountData struct {
	Permanent  GUIDSet `json:"permanent"`
	DailyReset GUIDSet `json:"dailyReset"`
	// DailyResetAt is when DailyReset expires. Zero when the set is empty.
	DailyResetAt      time.Time               `json:"dailyResetAt,omitzero"`
	TimerBased        map[uuid.UUID]time.Time `json:"timerBased"`
	EnabledCategories CategorySet             `json:"enabledCategories"`
	// Seeded is set once EnabledCategories has been initialized from the
	// pack's default toggles.
	Seeded bool `json:"seeded,omitempty"`
}

// NewAccountData returns an empty record with all collections allocated.
func NewAccountData() *AccountData {
	return &AccountData{
		Permanent:         GUIDSet{},
		DailyReset:        GUIDSet{},
		TimerBased:        map[uuid.UUID]time.Time{},
		EnabledCategories: CategorySet{},
	}
}

// Normalize allocates nil collections, e.g. after decoding a sparse record.
func (a *AccountData) Normalize() {
	if a.Permanent == nil {
		a.Permanent = GUIDSet{}
	}
	if a.DailyReset == nil {
		a.DailyReset = GUIDSet{}
	}
	if a.TimerBased == nil {
		a.TimerBased = map[uuid.UUID]time.Time{}
	}
	if a.EnabledCategories == nil {
		a.EnabledCategories = CategorySet{}
	}
}

// CharacterData is the persisted activation state of one character.
type CharacterData struct {
	DailyReset   GUIDSet   `json:"dailyReset"`
	DailyResetAt time.Time `json:"dailyResetAt,omitzero"`
}

func NewCharacterData() *CharacterData {
	return &CharacterData{DailyReset: GUIDSet{}}
}

func (c *CharacterData) Normalize() {
	if c.DailyReset == nil {
		c.DailyReset = GUIDSet{}
	}
}

// Clone returns a deep copy.
func (a *AccountData) Clone() *AccountData {
	c := &AccountData{
		Permanent:         maps.Clone(a.Permanent),
		DailyReset:        maps.Clone(a.DailyReset),
		DailyResetAt:      a.DailyResetAt,
		TimerBased:        maps.Clone(a.TimerBased),
		EnabledCategories: maps.Clone(a.EnabledCategories),
		Seeded:            a.Seeded,
	}
	c.Normalize()
	return c
}

// Clone returns a deep copy.
func (c *CharacterData) Clone() *CharacterData {
	out := &CharacterData{DailyReset: maps.Clone(c.DailyReset), DailyResetAt: c.DailyResetAt}
	out.Normalize()
	return out
}
