package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wfunc/initiative-tracker/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockAttempts = 30
	lockStaleAge = 5 * time.Minute
)

func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"
	log := logger.WithModule("database")

	for i := 0; i < lockAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			log.Debug("migration lock acquired", zap.String("lock", lockPath))
			return lockFile, nil
		}

		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAge {
			log.Warn("removing stale migration lock", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		log.Debug("waiting for migration lock", zap.Int("attempt", i+1))
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("migration lock %s held by another process", lockPath)
}

func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}
	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
}

// getDBPath returns the file behind a sqlite connection, or "" for servers
// and in-memory databases.
func getDBPath(db *gorm.DB) string {
	if db == nil || db.Dialector.Name() != "sqlite" {
		return ""
	}
	sqlDB, err := db.DB()
	if err != nil {
		return ""
	}

	var (
		seq        int
		name, file string
	)
	if err := sqlDB.QueryRow("PRAGMA database_list").Scan(&seq, &name, &file); err != nil {
		return ""
	}
	if file == "" || strings.Contains(file, ":memory:") {
		return ""
	}
	return file
}

// CleanupStaleLocks removes lock files next to dbPath left by crashed runs.
func CleanupStaleLocks(dbPath string) {
	matches, _ := filepath.Glob(dbPath + "*.lock")
	for _, lockFile := range matches {
		if info, err := os.Stat(lockFile); err == nil && time.Since(info.ModTime()) > 2*lockStaleAge {
			logger.WithModule("database").Info("removing stale lock file", zap.String("file", lockFile))
			os.Remove(lockFile)
		}
	}
}
