package models

import "time"

// Campaign status values
const (
	CampaignStatusActive   = "active"
	CampaignStatusArchived = "archived"
)

// Campaign a group of players run by one game master
type Campaign struct {
	BaseModel
	Name         string `gorm:"size:100;not null" json:"name"`
	Description  string `gorm:"size:1000" json:"description"`
	GameMasterID uint   `gorm:"not null;index" json:"game_master_id"`
	JoinCode     string `gorm:"uniqueIndex;size:8;not null" json:"join_code"`
	MaxPlayers   int    `gorm:"default:6" json:"max_players"`
	Status       string `gorm:"size:20;default:'active'" json:"status"`

	GameMaster *User            `gorm:"foreignKey:GameMasterID" json:"game_master,omitempty"`
	Members    []CampaignMember `gorm:"foreignKey:CampaignID" json:"-"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// IsArchived reports whether the campaign no longer accepts activity.
func (c *Campaign) IsArchived() bool {
	return c.Status == CampaignStatusArchived
}

// CampaignMember membership of a user in a campaign
type CampaignMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;uniqueIndex:idx_campaign_user" json:"campaign_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_campaign_user;index" json:"user_id"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	JoinedAt   time.Time `json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (CampaignMember) TableName() string {
	return "campaign_members"
}
