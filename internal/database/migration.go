package database

import (
	"fmt"

	"github.com/wfunc/initiative-tracker/internal/logger"
	"github.com/wfunc/initiative-tracker/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate migrates DB.
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}
	return Migrate(DB)
}

// Migrate creates or updates every table. File backed sqlite databases are
// guarded by a lock file so two processes never migrate at once.
func Migrate(db *gorm.DB) error {
	log := logger.WithModule("database")

	if dbPath := getDBPath(db); dbPath != "" {
		CleanupStaleLocks(dbPath)
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			log.Error("migration lock unavailable", zap.Error(err))
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	if db.Dialector.Name() == "sqlite" {
		db.Exec("PRAGMA foreign_keys = OFF")
		defer db.Exec("PRAGMA foreign_keys = ON")
	}

	for _, model := range models.All() {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("migration failed",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
	}

	createIndexes(db, log)

	log.Info("database migrated")
	return nil
}

// createIndexes adds composite indexes the struct tags cannot express.
func createIndexes(db *gorm.DB, log *zap.Logger) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_entries_session_order ON initiative_entries(session_id, is_active, order_position)",
		"CREATE INDEX IF NOT EXISTS idx_characters_campaign_active ON characters(campaign_id, is_active)",
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			log.Warn("create index failed", zap.String("index", idx), zap.Error(err))
		}
	}
}
