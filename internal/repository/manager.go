package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Manager hands out repositories bound to one connection, built on first use.
type Manager struct {
	db *gorm.DB

	userOnce sync.Once
	user     UserRepository

	campaignOnce sync.Once
	campaign     CampaignRepository

	characterOnce sync.Once
	character     CharacterRepository

	initiativeOnce sync.Once
	initiative     InitiativeRepository
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

func (m *Manager) User() UserRepository {
	m.userOnce.Do(func() {
		m.user = NewUserRepository(m.db)
	})
	return m.user
}

func (m *Manager) Campaign() CampaignRepository {
	m.campaignOnce.Do(func() {
		m.campaign = NewCampaignRepository(m.db)
	})
	return m.campaign
}

func (m *Manager) Character() CharacterRepository {
	m.characterOnce.Do(func() {
		m.character = NewCharacterRepository(m.db)
	})
	return m.character
}

func (m *Manager) Initiative() InitiativeRepository {
	m.initiativeOnce.Do(func() {
		m.initiative = NewInitiativeRepository(m.db)
	})
	return m.initiative
}
