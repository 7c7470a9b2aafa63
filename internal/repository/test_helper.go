package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/initiative-tracker/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a private in-memory sqlite database for t, migrated and
// closed on cleanup. The pool holds one connection so the shared-cache
// database lives as long as the test.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SeedUser inserts a user named username.
func SeedUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedCampaign inserts an active campaign run by gmID with the GM as member.
func SeedCampaign(t testing.TB, db *gorm.DB, gmID uint, joinCode string) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		Name:         "Campaign " + joinCode,
		GameMasterID: gmID,
		JoinCode:     joinCode,
		MaxPlayers:   6,
		Status:       models.CampaignStatusActive,
	}
	require.NoError(t, db.Create(campaign).Error)
	require.NoError(t, db.Create(&models.CampaignMember{
		CampaignID: campaign.ID,
		UserID:     gmID,
		IsActive:   true,
	}).Error)
	return campaign
}
