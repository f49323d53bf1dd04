// Package activation decides whether triggered markers are visible and keeps
// the activation records that survive restarts.
//
// The engine performs no I/O and no locking. Hosts that call it from more
// than one goroutine serialize every call themselves.
package activation

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/pkg/core"
)

var (
	ErrNotTriggerable = errors.New("behavior cannot be triggered")
	ErrNoCharacter    = errors.New("behavior needs a character but context has none")
)

// TriggerResult tells whether a trigger changed any state.
type TriggerResult int

const (
	// Suppressed means the marker was visible and is now hidden.
	Suppressed TriggerResult = iota + 1
	// AlreadySuppressed means the trigger was a no-op.
	AlreadySuppressed
)

func (r TriggerResult) String() string {
	switch r {
	case Suppressed:
		return "suppressed"
	case AlreadySuppressed:
		return "already suppressed"
	default:
		return "unknown"
	}
}

// BehaviorSource resolves the effective behavior of a marker or trail.
type BehaviorSource interface {
	Behavior(guid uuid.UUID) (core.Behavior, error)
}

// BehaviorFunc adapts a function to BehaviorSource.
type BehaviorFunc func(guid uuid.UUID) (core.Behavior, error)

func (f BehaviorFunc) Behavior(guid uuid.UUID) (core.Behavior, error) { return f(guid) }

type instanceKey struct {
	guid     uuid.UUID
	instance uint32
}

type instanceCharKey struct {
	guid      uuid.UUID
	instance  uint32
	character string
}

// Engine holds the activation state of one account: its persisted account
// and character records plus the live sets that die with the process.
type Engine struct {
	account   string
	behaviors BehaviorSource

	data       *core.AccountData
	characters map[string]*core.CharacterData

	mapChange    map[uuid.UUID]uint16
	instance     map[instanceKey]struct{}
	instanceChar map[instanceCharKey]struct{}

	dirtyAccount bool
	dirtyChars   map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithAccountData attaches an already loaded account record.
func WithAccountData(data *core.AccountData) Option {
	return func(e *Engine) { e.LoadAccount(data) }
}

func New(account string, behaviors BehaviorSource, opts ...Option) *Engine {
	e := &Engine{
		account:      account,
		behaviors:    behaviors,
		data:         core.NewAccountData(),
		characters:   make(map[string]*core.CharacterData),
		mapChange:    make(map[uuid.UUID]uint16),
		instance:     make(map[instanceKey]struct{}),
		instanceChar: make(map[instanceCharKey]struct{}),
		dirtyChars:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) AccountName() string { return e.account }

// LoadAccount replaces the account record. A nil record resets it.
func (e *Engine) LoadAccount(data *core.AccountData) {
	if data == nil {
		data = core.NewAccountData()
	}
	data.Normalize()
	e.data = data
	e.dirtyAccount = false
}

// LoadCharacter replaces the record of character name.
func (e *Engine) LoadCharacter(name string, data *core.CharacterData) {
	if data == nil {
		data = core.NewCharacterData()
	}
	data.Normalize()
	e.characters[name] = data
	delete(e.dirtyChars, name)
}

// HasCharacter reports whether a record for name is loaded.
func (e *Engine) HasCharacter(name string) bool {
	_, ok := e.characters[name]
	return ok
}

// Account returns the live account record. Callers must not modify it.
func (e *Engine) Account() *core.AccountData { return e.data }

// Character returns the live record of name, if loaded.
func (e *Engine) Character(name string) (*core.CharacterData, bool) {
	c, ok := e.characters[name]
	return c, ok
}

func (e *Engine) character(name string) *core.CharacterData {
	c, ok := e.characters[name]
	if !ok {
		c = core.NewCharacterData()
		e.characters[name] = c
	}
	return c
}

func (e *Engine) markCharacter(name string) { e.dirtyChars[name] = struct{}{} }

// Trigger records that the player activated guid. Triggering a marker that
// is already suppressed leaves every record untouched.
func (e *Engine) Trigger(guid uuid.UUID, ctx core.Context) (TriggerResult, error) {
	b, err := e.behaviors.Behavior(guid)
	if err != nil {
		return 0, fmt.Errorf("trigger %s: %w", guid, err)
	}
	if !b.Triggerable() {
		return 0, fmt.Errorf("trigger %s (%s): %w", guid, b.Kind, ErrNotTriggerable)
	}
	now := ctx.Time

	switch b.Kind {
	case core.ReappearOnMapChange:
		if m, ok := e.mapChange[guid]; ok && m == ctx.MapID {
			return AlreadySuppressed, nil
		}
		e.mapChange[guid] = ctx.MapID

	case core.OncePerInstance:
		key := instanceKey{guid: guid, instance: ctx.InstanceID}
		if _, ok := e.instance[key]; ok {
			return AlreadySuppressed, nil
		}
		e.instance[key] = struct{}{}

	case core.OncePerInstancePerChar:
		if ctx.Character == "" {
			return 0, fmt.Errorf("trigger %s (%s): %w", guid, b.Kind, ErrNoCharacter)
		}
		key := instanceCharKey{guid: guid, instance: ctx.InstanceID, character: ctx.Character}
		if _, ok := e.instanceChar[key]; ok {
			return AlreadySuppressed, nil
		}
		e.instanceChar[key] = struct{}{}

	case core.ReappearOnDailyReset:
		e.expireAccountDaily(now)
		if e.data.DailyReset.Has(guid) {
			return AlreadySuppressed, nil
		}
		e.clearAccount(guid)
		e.data.DailyReset.Add(guid)
		if e.data.DailyResetAt.IsZero() {
			e.data.DailyResetAt = NextDailyReset(now)
		}
		e.dirtyAccount = true

	case core.OnlyVisibleBeforeActivation:
		if e.data.Permanent.Has(guid) {
			return AlreadySuppressed, nil
		}
		e.clearAccount(guid)
		e.data.Permanent.Add(guid)
		e.dirtyAccount = true

	case core.ReappearAfterTimer, core.ReappearOnMapReset:
		if wake, ok := e.data.TimerBased[guid]; ok && now.Before(wake) {
			return AlreadySuppressed, nil
		}
		var wake time.Time
		if b.Kind == core.ReappearAfterTimer {
			wake = now.Add(time.Duration(b.ResetLength) * time.Second)
		} else {
			wake = NextMapReset(now, time.Duration(b.CycleLength)*time.Second, time.Duration(b.CycleOffset)*time.Second)
		}
		e.clearAccount(guid)
		e.data.TimerBased[guid] = wake.UTC()
		e.dirtyAccount = true

	case core.DailyPerChar:
		if ctx.Character == "" {
			return 0, fmt.Errorf("trigger %s (%s): %w", guid, b.Kind, ErrNoCharacter)
		}
		c := e.character(ctx.Character)
		e.expireCharacterDaily(ctx.Character, c, now)
		if c.DailyReset.Has(guid) {
			return AlreadySuppressed, nil
		}
		c.DailyReset.Add(guid)
		if c.DailyResetAt.IsZero() {
			c.DailyResetAt = NextDailyReset(now)
		}
		e.markCharacter(ctx.Character)
	}
	return Suppressed, nil
}

// clearAccount removes guid from every persisted account set.
func (e *Engine) clearAccount(guid uuid.UUID) bool {
	removed := e.data.Permanent.Remove(guid)
	removed = e.data.DailyReset.Remove(guid) || removed
	if _, ok := e.data.TimerBased[guid]; ok {
		delete(e.data.TimerBased, guid)
		removed = true
	}
	if removed {
		e.dirtyAccount = true
	}
	return removed
}

func (e *Engine) expireAccountDaily(now time.Time) int {
	if !dailyExpired(e.data.DailyReset, e.data.DailyResetAt, now) {
		return 0
	}
	n := len(e.data.DailyReset)
	e.data.DailyReset = core.GUIDSet{}
	e.data.DailyResetAt = time.Time{}
	e.dirtyAccount = true
	return n
}

func (e *Engine) expireCharacterDaily(name string, c *core.CharacterData, now time.Time) int {
	if !dailyExpired(c.DailyReset, c.DailyResetAt, now) {
		return 0
	}
	n := len(c.DailyReset)
	c.DailyReset = core.GUIDSet{}
	c.DailyResetAt = time.Time{}
	e.markCharacter(name)
	return n
}

// dailyExpired reports whether a daily set is due for clearing. A loaded set
// with no deadline has lost its reset time and counts as already expired.
func dailyExpired(set core.GUIDSet, at time.Time, now time.Time) bool {
	if at.IsZero() {
		return len(set) > 0
	}
	return !now.Before(at)
}

func dailyActive(set core.GUIDSet, at time.Time, guid uuid.UUID, now time.Time) bool {
	return set.Has(guid) && !dailyExpired(set, at, now)
}

// IsVisible reports whether guid should be shown in ctx. It never changes
// state; a record whose reset condition already holds counts as visible.
func (e *Engine) IsVisible(guid uuid.UUID, ctx core.Context) bool {
	if b, err := e.behaviors.Behavior(guid); err == nil && !b.Triggerable() {
		return true
	}
	now := ctx.Time
	if e.data.Permanent.Has(guid) {
		return false
	}
	if dailyActive(e.data.DailyReset, e.data.DailyResetAt, guid, now) {
		return false
	}
	if wake, ok := e.data.TimerBased[guid]; ok && now.Before(wake) {
		return false
	}
	if c, ok := e.characters[ctx.Character]; ok && dailyActive(c.DailyReset, c.DailyResetAt, guid, now) {
		return false
	}
	if m, ok := e.mapChange[guid]; ok && m == ctx.MapID {
		return false
	}
	if _, ok := e.instance[instanceKey{guid: guid, instance: ctx.InstanceID}]; ok {
		return false
	}
	if _, ok := e.instanceChar[instanceCharKey{guid: guid, instance: ctx.InstanceID, character: ctx.Character}]; ok {
		return false
	}
	return true
}

// TickReport counts the records a tick removed.
type TickReport struct {
	Timers         int `json:"timers"`
	AccountDaily   int `json:"accountDaily"`
	CharacterDaily int `json:"characterDaily"`
	MapChange      int `json:"mapChange"`
	Instance       int `json:"instance"`
	InstanceChar   int `json:"instanceChar"`
}

// Total returns the number of removed records.
func (r TickReport) Total() int {
	return r.Timers + r.AccountDaily + r.CharacterDaily + r.MapChange + r.Instance + r.InstanceChar
}

// Tick removes every record whose reset condition holds in ctx.
func (e *Engine) Tick(ctx core.Context) TickReport {
	var r TickReport
	now := ctx.Time

	for guid, wake := range e.data.TimerBased {
		if !now.Before(wake) {
			delete(e.data.TimerBased, guid)
			r.Timers++
		}
	}
	if r.Timers > 0 {
		e.dirtyAccount = true
	}
	r.AccountDaily = e.expireAccountDaily(now)
	for name, c := range e.characters {
		r.CharacterDaily += e.expireCharacterDaily(name, c, now)
	}

	for guid, m := range e.mapChange {
		if m != ctx.MapID {
			delete(e.mapChange, guid)
			r.MapChange++
		}
	}
	for key := range e.instance {
		if key.instance != ctx.InstanceID {
			delete(e.instance, key)
			r.Instance++
		}
	}
	for key := range e.instanceChar {
		if key.instance != ctx.InstanceID || key.character != ctx.Character {
			delete(e.instanceChar, key)
			r.InstanceChar++
		}
	}
	return r
}

// Untrigger removes guid from every account, character and live record.
func (e *Engine) Untrigger(guid uuid.UUID) bool {
	removed := e.clearAccount(guid)
	for name, c := range e.characters {
		if c.DailyReset.Remove(guid) {
			e.markCharacter(name)
			removed = true
		}
	}
	if _, ok := e.mapChange[guid]; ok {
		delete(e.mapChange, guid)
		removed = true
	}
	for key := range e.instance {
		if key.guid == guid {
			delete(e.instance, key)
			removed = true
		}
	}
	for key := range e.instanceChar {
		if key.guid == guid {
			delete(e.instanceChar, key)
			removed = true
		}
	}
	return removed
}

// Forget drops every record of guid. Used when an entity leaves the pack.
func (e *Engine) Forget(guids ...uuid.UUID) {
	for _, guid := range guids {
		e.Untrigger(guid)
	}
}

// SeedCategories enables the given categories the first time the account
// sees the pack. It reports whether seeding happened.
func (e *Engine) SeedCategories(enabled []core.CategoryID) bool {
	if e.data.Seeded {
		return false
	}
	for _, id := range enabled {
		e.data.EnabledCategories.Add(id)
	}
	e.data.Seeded = true
	e.dirtyAccount = true
	return true
}

// SetCategoryEnabled toggles a category and reports whether it changed.
func (e *Engine) SetCategoryEnabled(id core.CategoryID, enabled bool) bool {
	var changed bool
	if enabled {
		changed = e.data.EnabledCategories.Add(id)
	} else {
		changed = e.data.EnabledCategories.Remove(id)
	}
	if changed {
		e.dirtyAccount = true
	}
	return changed
}

func (e *Engine) CategoryEnabled(id core.CategoryID) bool {
	return e.data.EnabledCategories.Has(id)
}

// ForgetCategories drops toggles of removed categories.
func (e *Engine) ForgetCategories(ids []core.CategoryID) {
	for _, id := range ids {
		if e.data.EnabledCategories.Remove(id) {
			e.dirtyAccount = true
		}
	}
}

// Dirty holds copies of the records changed since the last TakeDirty.
type Dirty struct {
	Account    *core.AccountData
	Characters map[string]*core.CharacterData
}

func (d Dirty) Empty() bool { return d.Account == nil && len(d.Characters) == 0 }

// TakeDirty returns deep copies of every changed record and clears the
// dirty marks. The copies may be handed to another goroutine.
func (e *Engine) TakeDirty() Dirty {
	var d Dirty
	if e.dirtyAccount {
		d.Account = e.data.Clone()
		e.dirtyAccount = false
	}
	if len(e.dirtyChars) > 0 {
		d.Characters = make(map[string]*core.CharacterData, len(e.dirtyChars))
		for name := range e.dirtyChars {
			if c, ok := e.characters[name]; ok {
				d.Characters[name] = c.Clone()
			}
		}
		clear(e.dirtyChars)
	}
	return d
}

// Snapshot returns deep copies of the account and every loaded character.
func (e *Engine) Snapshot() Dirty {
	d := Dirty{Account: e.data.Clone(), Characters: make(map[string]*core.CharacterData, len(e.characters))}
	for name, c := range e.characters {
		d.Characters[name] = c.Clone()
	}
	return d
}

// Stats counts the records currently held, without applying resets.
type Stats struct {
	Permanent      int `json:"permanent"`
	AccountDaily   int `json:"accountDaily"`
	Timers         int `json:"timers"`
	CharacterDaily int `json:"characterDaily"`
	Live           int `json:"live"`
	Characters     int `json:"characters"`
	Categories     int `json:"enabledCategories"`
}

func (e *Engine) Stats() Stats {
	s := Stats{
		Permanent:    len(e.data.Permanent),
		AccountDaily: len(e.data.DailyReset),
		Timers:       len(e.data.TimerBased),
		Live:         len(e.mapChange) + len(e.instance) + len(e.instanceChar),
		Characters:   len(e.characters),
		Categories:   len(e.data.EnabledCategories),
	}
	for c := range maps.Values(e.characters) {
		s.CharacterDaily += len(c.DailyReset)
	}
	return s
}
