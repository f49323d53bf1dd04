package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// SchemaVersion is written to StoreInfo on first migration.
const SchemaVersion = 1

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&StoreInfo{},
	&Account{},
	&Character{},
}

// StoreInfo describes the activation store itself
type StoreInfo struct {
	gorm.Model
	SchemaVersion int `json:"schemaVersion"`
}

func (*StoreInfo) TableName() string {
	return "store_infos"
}

// Account is the persisted activation record of one account. Sets are kept
// as sorted JSON arrays, timer wake times as RFC3339Nano strings keyed by guid.
type Account struct {
	Name              string         `json:"name" gorm:"primaryKey;size:127"`
	Permanent         datatypes.JSON `json:"permanent"`
	DailyReset        datatypes.JSON `json:"dailyReset"`
	DailyResetAt      *time.Time     `json:"dailyResetAt"`
	TimerBased        datatypes.JSON `json:"timerBased"`
	EnabledCategories datatypes.JSON `json:"enabledCategories"`
	Seeded            bool           `json:"seeded"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func (*Account) TableName() string {
	return "accounts"
}

// Character is the persisted activation record of one character.
type Character struct {
	Account      string         `json:"account" gorm:"primaryKey;size:127"`
	Name         string         `json:"name" gorm:"primaryKey;size:127"`
	DailyReset   datatypes.JSON `json:"dailyReset"`
	DailyResetAt *time.Time     `json:"dailyResetAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (*Character) TableName() string {
	return "characters"
}
