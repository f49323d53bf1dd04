package convert

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/OCAP2/markerpack/internal/model"
	"github.com/OCAP2/markerpack/pkg/core"
)

func sampleAccount() *core.AccountData {
	a := core.NewAccountData()
	a.Permanent.Add(uuid.MustParse("00000000-0000-0000-0000-000000000002"))
	a.Permanent.Add(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	a.DailyReset.Add(uuid.New())
	a.DailyResetAt = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	a.TimerBased[uuid.New()] = time.Date(2024, 3, 10, 12, 1, 0, 123456789, time.UTC)
	a.EnabledCategories.Add(4)
	a.EnabledCategories.Add(1)
	a.Seeded = true
	return a
}

// Round-trip: Core → GORM → Core
func TestAccountRoundTrip(t *testing.T) {
	orig := sampleAccount()

	row, err := CoreToAccount("acc", orig)
	require.NoError(t, err)
	assert.Equal(t, "acc", row.Name)
	assert.JSONEq(t, `["00000000-0000-0000-0000-000000000001","00000000-0000-0000-0000-000000000002"]`, string(row.Permanent))
	assert.JSONEq(t, `[1,4]`, string(row.EnabledCategories))

	back, err := AccountToCore(row)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestAccountRoundTrip_Empty(t *testing.T) {
	row, err := CoreToAccount("acc", &core.AccountData{})
	require.NoError(t, err)
	assert.Nil(t, row.DailyResetAt)
	assert.JSONEq(t, `[]`, string(row.Permanent))

	back, err := AccountToCore(row)
	require.NoError(t, err)
	assert.Equal(t, core.NewAccountData(), back)
}

func TestAccountToCore_NullColumns(t *testing.T) {
	back, err := AccountToCore(model.Account{Name: "acc"})
	require.NoError(t, err)
	assert.Equal(t, core.NewAccountData(), back)
}

func TestAccountToCore_Corrupt(t *testing.T) {
	_, err := AccountToCore(model.Account{Name: "acc", Permanent: datatypes.JSON(`{`)})
	assert.Error(t, err)
}

func TestCharacterRoundTrip(t *testing.T) {
	orig := core.NewCharacterData()
	orig.DailyReset.Add(uuid.New())
	orig.DailyResetAt = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	row, err := CoreToCharacter("acc", "Alice", orig)
	require.NoError(t, err)
	assert.Equal(t, "acc", row.Account)
	assert.Equal(t, "Alice", row.Name)

	back, err := CharacterToCore(row)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}
