package models

// Character a player character or a GM controlled NPC sheet
type Character struct {
	BaseModel
	UserID          uint   `gorm:"not null;index" json:"user_id"`
	CampaignID      *uint  `gorm:"index" json:"campaign_id,omitempty"`
	Name            string `gorm:"size:100;not null" json:"name"`
	Race            string `gorm:"size:50" json:"race"`
	Class           string `gorm:"column:char_class;size:50" json:"class"`
	Level           int    `gorm:"default:1" json:"level"`
	InitiativeBonus int    `gorm:"default:0" json:"initiative_bonus"`
	IsNPC           bool   `gorm:"column:is_npc;default:false" json:"is_npc"`
	IsActive        bool   `gorm:"default:true" json:"is_active"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Character) TableName() string {
	return "characters"
}
