package models

import (
	"time"

	"gorm.io/gorm"
)

// User account
type User struct {
	BaseModel
	Username     string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Status       string     `gorm:"size:20;default:'active'" json:"status"` // active, banned
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP  string     `gorm:"size:50" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Status == "" {
		u.Status = "active"
	}
	return nil
}

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool {
	return u.Status == "active"
}

// UpdateLoginInfo stamps the last login.
func (u *User) UpdateLoginInfo(ip string) {
	now := time.Now()
	u.LastLoginAt = &now
	u.LastLoginIP = ip
}
