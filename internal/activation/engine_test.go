package activation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/pkg/core"
)

var errUnknown = errors.New("unknown guid")

type behaviors map[uuid.UUID]core.Behavior

func (b behaviors) Behavior(guid uuid.UUID) (core.Behavior, error) {
	if v, ok := b[guid]; ok {
		return v, nil
	}
	return core.Behavior{}, errUnknown
}

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func ctxAt(t time.Time) core.Context {
	return core.Context{MapID: 15, InstanceID: 100, Character: "Alice", Time: t}
}

func setup(kind core.BehaviorKind) (*Engine, uuid.UUID) {
	guid := uuid.New()
	src := behaviors{guid: {Kind: kind, ResetLength: 60, CycleLength: 3600, CycleOffset: 600}}
	return New("acc", src), guid
}

func TestTrigger_AlwaysVisibleRejected(t *testing.T) {
	for _, kind := range []core.BehaviorKind{core.AlwaysVisible, core.WvWObjective} {
		t.Run(kind.String(), func(t *testing.T) {
			e, guid := setup(kind)
			_, err := e.Trigger(guid, ctxAt(t0))
			assert.ErrorIs(t, err, ErrNotTriggerable)
			assert.True(t, e.IsVisible(guid, ctxAt(t0)))
			assert.True(t, e.TakeDirty().Empty())
		})
	}
}

func TestTrigger_UnknownGUID(t *testing.T) {
	e := New("acc", behaviors{})
	_, err := e.Trigger(uuid.New(), ctxAt(t0))
	assert.ErrorIs(t, err, errUnknown)
}

func TestTrigger_TimerLifecycle(t *testing.T) {
	e, guid := setup(core.ReappearAfterTimer)

	res, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)
	assert.Equal(t, Suppressed, res)
	assert.Equal(t, t0.Add(60*time.Second), e.Account().TimerBased[guid])

	assert.False(t, e.IsVisible(guid, ctxAt(t0.Add(time.Second))))
	assert.True(t, e.IsVisible(guid, ctxAt(t0.Add(61*time.Second))), "satisfied before tick")

	report := e.Tick(ctxAt(t0.Add(61 * time.Second)))
	assert.Equal(t, 1, report.Timers)
	assert.Empty(t, e.Account().TimerBased)
	assert.True(t, e.IsVisible(guid, ctxAt(t0.Add(61*time.Second))))
}

func TestTrigger_Idempotent(t *testing.T) {
	kinds := []core.BehaviorKind{
		core.ReappearOnMapChange,
		core.ReappearOnDailyReset,
		core.OnlyVisibleBeforeActivation,
		core.ReappearAfterTimer,
		core.ReappearOnMapReset,
		core.OncePerInstance,
		core.DailyPerChar,
		core.OncePerInstancePerChar,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			e, guid := setup(kind)
			ctx := ctxAt(t0)

			res, err := e.Trigger(guid, ctx)
			require.NoError(t, err)
			assert.Equal(t, Suppressed, res)
			assert.False(t, e.IsVisible(guid, ctx))
			before := e.Snapshot()
			e.TakeDirty()

			res, err = e.Trigger(guid, ctx)
			require.NoError(t, err)
			assert.Equal(t, AlreadySuppressed, res)
			assert.Equal(t, before, e.Snapshot())
			assert.True(t, e.TakeDirty().Empty())
		})
	}
}

func TestMapChange(t *testing.T) {
	e, guid := setup(core.ReappearOnMapChange)
	ctx := ctxAt(t0)

	_, err := e.Trigger(guid, ctx)
	require.NoError(t, err)
	assert.False(t, e.IsVisible(guid, ctx))

	moved := ctx
	moved.MapID = 16
	assert.True(t, e.IsVisible(guid, moved))
	report := e.Tick(moved)
	assert.Equal(t, 1, report.MapChange)

	assert.True(t, e.IsVisible(guid, ctx), "returning to the map shows it again")
	assert.True(t, e.TakeDirty().Empty(), "live records are never persisted")
}

func TestOncePerInstance(t *testing.T) {
	e, guid := setup(core.OncePerInstance)
	ctx := ctxAt(t0)
	_, err := e.Trigger(guid, ctx)
	require.NoError(t, err)

	other := ctx
	other.Character = "Bob"
	assert.False(t, e.IsVisible(guid, other), "instance scope ignores the character")

	other.InstanceID = 101
	assert.True(t, e.IsVisible(guid, other))
	assert.Equal(t, 1, e.Tick(other).Instance)
}

func TestOncePerInstancePerChar(t *testing.T) {
	e, guid := setup(core.OncePerInstancePerChar)
	ctx := ctxAt(t0)
	_, err := e.Trigger(guid, ctx)
	require.NoError(t, err)

	bob := ctx
	bob.Character = "Bob"
	assert.True(t, e.IsVisible(guid, bob))
	assert.False(t, e.IsVisible(guid, ctx))

	assert.Equal(t, 1, e.Tick(bob).InstanceChar)
	assert.True(t, e.IsVisible(guid, ctx))

	noChar := ctx
	noChar.Character = ""
	_, err = e.Trigger(guid, noChar)
	assert.ErrorIs(t, err, ErrNoCharacter)
}

func TestDailyReset_Account(t *testing.T) {
	e, guid := setup(core.ReappearOnDailyReset)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	midnight := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight, e.Account().DailyResetAt)

	bob := ctxAt(t0)
	bob.Character = "Bob"
	assert.False(t, e.IsVisible(guid, bob), "account scope hides it for every character")
	assert.False(t, e.IsVisible(guid, ctxAt(midnight.Add(-time.Nanosecond))))
	assert.True(t, e.IsVisible(guid, ctxAt(midnight)))

	report := e.Tick(ctxAt(midnight))
	assert.Equal(t, 1, report.AccountDaily)
	assert.Empty(t, e.Account().DailyReset)
	assert.True(t, e.Account().DailyResetAt.IsZero())
}

func TestDailyReset_TriggerAfterExpirySweeps(t *testing.T) {
	e, guid := setup(core.ReappearOnDailyReset)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	nextDay := t0.Add(24 * time.Hour)
	res, err := e.Trigger(guid, ctxAt(nextDay))
	require.NoError(t, err)
	assert.Equal(t, Suppressed, res)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), e.Account().DailyResetAt)
}

func TestDailyReset_LoadedWithoutDeadlineExpires(t *testing.T) {
	guid, perChar := uuid.New(), uuid.New()
	e := New("acc", behaviors{
		guid:    {Kind: core.ReappearOnDailyReset},
		perChar: {Kind: core.DailyPerChar},
	})

	acc := core.NewAccountData()
	acc.DailyReset.Add(guid)
	e.LoadAccount(acc)
	char := core.NewCharacterData()
	char.DailyReset.Add(perChar)
	e.LoadCharacter("Alice", char)

	assert.True(t, e.IsVisible(guid, ctxAt(t0)))
	assert.True(t, e.IsVisible(perChar, ctxAt(t0)))

	report := e.Tick(ctxAt(t0))
	assert.Equal(t, 1, report.AccountDaily)
	assert.Equal(t, 1, report.CharacterDaily)
	assert.Empty(t, e.Account().DailyReset)

	dirty := e.TakeDirty()
	assert.NotNil(t, dirty.Account)
	require.Contains(t, dirty.Characters, "Alice")
	assert.Empty(t, dirty.Characters["Alice"].DailyReset)

	res, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)
	assert.Equal(t, Suppressed, res)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), e.Account().DailyResetAt)
}

func TestDailyPerChar(t *testing.T) {
	e, guid := setup(core.DailyPerChar)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	bob := ctxAt(t0)
	bob.Character = "Bob"
	assert.True(t, e.IsVisible(guid, bob))
	assert.False(t, e.IsVisible(guid, ctxAt(t0)))
	assert.Empty(t, e.Account().DailyReset, "character scope is separate from account scope")

	dirty := e.TakeDirty()
	assert.Nil(t, dirty.Account)
	require.Contains(t, dirty.Characters, "Alice")
	assert.True(t, dirty.Characters["Alice"].DailyReset.Has(guid))

	report := e.Tick(ctxAt(t0.Add(24 * time.Hour)))
	assert.Equal(t, 1, report.CharacterDaily)
}

func TestOnlyVisibleBeforeActivation(t *testing.T) {
	e, guid := setup(core.OnlyVisibleBeforeActivation)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	far := ctxAt(t0.AddDate(5, 0, 0))
	far.MapID, far.InstanceID, far.Character = 99, 1, "Bob"
	e.Tick(far)
	assert.False(t, e.IsVisible(guid, far))

	assert.True(t, e.Untrigger(guid))
	assert.True(t, e.IsVisible(guid, far))
	assert.False(t, e.Untrigger(guid))
}

func TestMapReset(t *testing.T) {
	e, guid := setup(core.ReappearOnMapReset)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	// cycle 1h, offset 10m: boundaries at hh:10
	assert.Equal(t, time.Date(2024, 3, 10, 12, 10, 0, 0, time.UTC), e.Account().TimerBased[guid])
}

func TestAccountSetsAreExclusive(t *testing.T) {
	guid := uuid.New()
	src := behaviors{guid: {Kind: core.OnlyVisibleBeforeActivation}}
	e := New("acc", src)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	src[guid] = core.Behavior{Kind: core.ReappearAfterTimer, ResetLength: 10}
	_, err = e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)
	assert.False(t, e.Account().Permanent.Has(guid))
	assert.Contains(t, e.Account().TimerBased, guid)
}

func TestIsVisible_IgnoresRecordsOfUntriggerableBehavior(t *testing.T) {
	guid := uuid.New()
	src := behaviors{guid: {Kind: core.OnlyVisibleBeforeActivation}}
	e := New("acc", src)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	src[guid] = core.Behavior{Kind: core.AlwaysVisible}
	assert.True(t, e.IsVisible(guid, ctxAt(t0)))
}

func TestLoadAccount_RoundTripsState(t *testing.T) {
	e, guid := setup(core.ReappearAfterTimer)
	_, err := e.Trigger(guid, ctxAt(t0))
	require.NoError(t, err)

	restored := New("acc", e.behaviors, WithAccountData(e.Snapshot().Account))
	assert.False(t, restored.IsVisible(guid, ctxAt(t0.Add(time.Second))))
	assert.True(t, restored.IsVisible(guid, ctxAt(t0.Add(60*time.Second))))
}

func TestCategories(t *testing.T) {
	e := New("acc", behaviors{})

	assert.True(t, e.SeedCategories([]core.CategoryID{1, 2}))
	assert.False(t, e.SeedCategories([]core.CategoryID{3}))
	assert.True(t, e.CategoryEnabled(1))
	assert.False(t, e.CategoryEnabled(3))

	assert.True(t, e.SetCategoryEnabled(1, false))
	assert.False(t, e.SetCategoryEnabled(1, false))
	assert.False(t, e.CategoryEnabled(1))

	e.ForgetCategories([]core.CategoryID{2})
	assert.Equal(t, 0, e.Stats().Categories)
}

func TestStats(t *testing.T) {
	guids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	src := behaviors{
		guids[0]: {Kind: core.OnlyVisibleBeforeActivation},
		guids[1]: {Kind: core.OncePerInstance},
		guids[2]: {Kind: core.DailyPerChar},
	}
	e := New("acc", src)
	for _, g := range guids {
		_, err := e.Trigger(g, ctxAt(t0))
		require.NoError(t, err)
	}
	s := e.Stats()
	assert.Equal(t, 1, s.Permanent)
	assert.Equal(t, 1, s.Live)
	assert.Equal(t, 1, s.CharacterDaily)
	assert.Equal(t, 1, s.Characters)
}
