package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel common columns
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// All returns every model managed by migrations, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Campaign{},
		&CampaignMember{},
		&Character{},
		&InitiativeSession{},
		&InitiativeEntry{},
	}
}
