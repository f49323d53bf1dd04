// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/OCAP2/markerpack/internal/model"
	"github.com/OCAP2/markerpack/pkg/core"
)

func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// CoreToAccount converts a core.AccountData to a GORM model.Account.
func CoreToAccount(name string, a *core.AccountData) (model.Account, error) {
	a.Normalize()
	permanent, err := toJSON(a.Permanent)
	if err != nil {
		return model.Account{}, fmt.Errorf("encode permanent: %w", err)
	}
	daily, err := toJSON(a.DailyReset)
	if err != nil {
		return model.Account{}, fmt.Errorf("encode daily reset: %w", err)
	}
	timers, err := toJSON(a.TimerBased)
	if err != nil {
		return model.Account{}, fmt.Errorf("encode timers: %w", err)
	}
	cats, err := toJSON(a.EnabledCategories)
	if err != nil {
		return model.Account{}, fmt.Errorf("encode categories: %w", err)
	}
	return model.Account{
		Name:              name,
		Permanent:         permanent,
		DailyReset:        daily,
		DailyResetAt:      timePtr(a.DailyResetAt),
		TimerBased:        timers,
		EnabledCategories: cats,
		Seeded:            a.Seeded,
	}, nil
}

// CoreToCharacter converts a core.CharacterData to a GORM model.Character.
func CoreToCharacter(account, name string, c *core.CharacterData) (model.Character, error) {
	c.Normalize()
	daily, err := toJSON(c.DailyReset)
	if err != nil {
		return model.Character{}, fmt.Errorf("encode daily reset: %w", err)
	}
	return model.Character{
		Account:      account,
		Name:         name,
		DailyReset:   daily,
		DailyResetAt: timePtr(c.DailyResetAt),
	}, nil
}
