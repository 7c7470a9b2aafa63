package models

import "time"

// InitiativeSession one combat encounter in a campaign
type InitiativeSession struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CampaignID  uint       `gorm:"not null;index:idx_session_campaign_active" json:"campaign_id"`
	StartedBy   uint       `gorm:"not null" json:"started_by"`
	IsActive    bool       `gorm:"not null;default:true;index:idx_session_campaign_active" json:"is_active"`
	CurrentTurn int        `gorm:"not null;default:1" json:"current_turn"`
	RoundNumber int        `gorm:"not null;default:1" json:"round_number"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Entries []InitiativeEntry `gorm:"foreignKey:SessionID" json:"-"`
}

func (InitiativeSession) TableName() string {
	return "initiative_sessions"
}

// InitiativeEntry one combatant in a session's turn queue. Removal is a soft
// delete through IsActive so ended encounters keep their history.
type InitiativeEntry struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SessionID       uint      `gorm:"not null;index:idx_entry_session_active" json:"session_id"`
	CharacterID     *uint     `gorm:"index" json:"character_id,omitempty"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	InitiativeRoll  int       `gorm:"not null" json:"initiative_roll"`
	InitiativeBonus int       `gorm:"not null;default:0" json:"initiative_bonus"`
	IsPlayer        bool      `gorm:"not null;default:false" json:"is_player"`
	OrderPosition   int       `gorm:"not null;default:0" json:"order_position"`
	IsActive        bool      `gorm:"not null;default:true;index:idx_entry_session_active" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`

	Character *Character `gorm:"foreignKey:CharacterID" json:"-"`
}

func (InitiativeEntry) TableName() string {
	return "initiative_entries"
}

// TotalInitiative is roll plus bonus. It is never stored.
func (e *InitiativeEntry) TotalInitiative() int {
	return e.InitiativeRoll + e.InitiativeBonus
}
