package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/OCAP2/markerpack/internal/model"
	"github.com/OCAP2/markerpack/pkg/core"
)

func fromJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// AccountToCore converts a GORM Account to a core.AccountData.
func AccountToCore(a model.Account) (*core.AccountData, error) {
	out := core.NewAccountData()
	if err := fromJSON(a.Permanent, &out.Permanent); err != nil {
		return nil, fmt.Errorf("decode permanent of %s: %w", a.Name, err)
	}
	if err := fromJSON(a.DailyReset, &out.DailyReset); err != nil {
		return nil, fmt.Errorf("decode daily reset of %s: %w", a.Name, err)
	}
	if err := fromJSON(a.TimerBased, &out.TimerBased); err != nil {
		return nil, fmt.Errorf("decode timers of %s: %w", a.Name, err)
	}
	if err := fromJSON(a.EnabledCategories, &out.EnabledCategories); err != nil {
		return nil, fmt.Errorf("decode categories of %s: %w", a.Name, err)
	}
	out.DailyResetAt = timeValue(a.DailyResetAt)
	out.Seeded = a.Seeded
	out.Normalize()
	return out, nil
}

// CharacterToCore converts a GORM Character to a core.CharacterData.
func CharacterToCore(c model.Character) (*core.CharacterData, error) {
	out := core.NewCharacterData()
	if err := fromJSON(c.DailyReset, &out.DailyReset); err != nil {
		return nil, fmt.Errorf("decode daily reset of %s/%s: %w", c.Account, c.Name, err)
	}
	out.DailyResetAt = timeValue(c.DailyResetAt)
	out.Normalize()
	return out, nil
}
