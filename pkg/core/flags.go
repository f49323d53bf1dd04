// pkg/core/flags.go
package core

// MarkerFlags groups the boolean display switches of a marker.
type MarkerFlags uint8

const (
	// FlagAutoTrigger triggers the marker when the player is within trigger range.
	FlagAutoTrigger MarkerFlags = 1 << iota
	// FlagCountdown shows a countdown for sleeping markers.
	FlagCountdown
	FlagInGameVisibility
	FlagMapScale
	FlagMapVisibility
	// FlagMiniMapEdgeHerd keeps the marker on the minimap edge when out of bounds.
	FlagMiniMapEdgeHerd
	FlagMiniMapVisibility
)

// Has reports whether every bit of o is set.
func (f MarkerFlags) Has(o MarkerFlags) bool { return f&o == o }

// Races filters markers by character race. Zero means all races.
type Races uint8

const (
	RaceAsura Races = 1 << iota
	RaceCharr
	RaceHuman
	RaceNorn
	RaceSylvari
)

// Matches reports whether a character of race r passes the filter f.
func (f Races) Matches(r Races) bool { return f == 0 || f&r != 0 }

// Professions filters markers by profession. Zero means all professions.
type Professions uint16

const (
	ProfessionElementalist Professions = 1 << iota
	ProfessionEngineer
	ProfessionGuardian
	ProfessionMesmer
	ProfessionNecromancer
	ProfessionRanger
	ProfessionRevenant
	ProfessionThief
	ProfessionWarrior
)

func (f Professions) Matches(p Professions) bool { return f == 0 || f&p != 0 }

// Mounts filters markers by the mount the player is riding. Zero means any.
type Mounts uint16

const (
	MountGriffon Mounts = 1 << iota
	MountJackal
	MountRaptor
	MountRollerBeetle
	MountSkimmer
	MountSkyscale
	MountSpringer
	MountWarclaw
)

func (f Mounts) Matches(m Mounts) bool { return f == 0 || f&m != 0 }

// Festivals filters markers by the festivals currently running.
type Festivals uint8

const (
	FestivalDragonBash Festivals = 1 << iota
	FestivalFourWinds
	FestivalHalloween
	FestivalLunarNewYear
	FestivalSuperAdventureBox
	FestivalWintersday
)

func (f Festivals) Matches(active Festivals) bool { return f == 0 || f&active != 0 }

// MapTypes filters markers by the type of the current map.
type MapTypes uint32

const (
	MapTypeRedirect MapTypes = 1 << iota
	MapTypeCharacterCreate
	MapTypePvP
	MapTypeGvG
	MapTypeInstance
	MapTypePublic
	MapTypeTournament
	MapTypeTutorial
	MapTypeUserTournament
	MapTypeEternalBattlegrounds
	MapTypeBlueBorderlands
	MapTypeGreenBorderlands
	MapTypeRedBorderlands
	MapTypeFortunesVale
	MapTypeObsidianSanctum
	MapTypeEdgeOfTheMists
	MapTypePublicMini
	_
	MapTypeWvWLounge
)

func (f MapTypes) Matches(t MapTypes) bool { return f == 0 || f&t != 0 }

// SpecializationCount is the number of elite and core specializations tracked.
const SpecializationCount = 72

// Specializations is a 72-bit set indexed by specialization ordinal
// (0 = Dueling ... 71 = Untamed).
type Specializations [2]uint64

// SpecializationSet builds a set from ordinals. Out-of-range ordinals are ignored.
func SpecializationSet(ordinals ...int) Specializations {
	var s Specializations
	for _, o := range ordinals {
		s = s.With(o)
	}
	return s
}

// With returns a copy of s with ordinal set.
func (s Specializations) With(ordinal int) Specializations {
	if ordinal < 0 || ordinal >= SpecializationCount {
		return s
	}
	s[ordinal/64] |= 1 << (ordinal % 64)
	return s
}

// Has reports whether ordinal is set.
func (s Specializations) Has(ordinal int) bool {
	if ordinal < 0 || ordinal >= SpecializationCount {
		return false
	}
	return s[ordinal/64]&(1<<(ordinal%64)) != 0
}

func (s Specializations) IsZero() bool { return s[0] == 0 && s[1] == 0 }

// Matches reports whether any of the active specializations passes the filter.
func (s Specializations) Matches(active Specializations) bool {
	if s.IsZero() {
		return true
	}
	return s[0]&active[0] != 0 || s[1]&active[1] != 0
}
