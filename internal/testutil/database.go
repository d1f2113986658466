// Package testutil provides test helpers for setting up in-memory databases,
// creating fixtures, and making assertions.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"tally/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AllModels is the list of all GORM models to auto-migrate in tests.
var AllModels = []interface{}{
	&models.User{},
	&models.Category{},
	&models.Entry{},
	&models.DayAggregate{},
	&models.MonthAggregate{},
	&models.UserSettings{},
	&models.AuditLog{},
}

var dbCounter atomic.Int64

// FileDBConns is the connection pool size of SetupFileDB.
const FileDBConns = 8

// SetupTestDB creates an in-memory SQLite database with all models migrated.
// Each call gets its own database. The pool holds a single connection, so
// transactions never overlap; use SetupFileDB for concurrency tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", dbCounter.Add(1))
	return openTestDB(t, dsn, 1)
}

// SetupFileDB creates a WAL-mode SQLite database under t.TempDir() with
// FileDBConns open connections, so concurrent transactions really overlap
// and stale writers fail with SQLITE_BUSY instead of queueing.
func SetupFileDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tally.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	return openTestDB(t, dsn, FileDBConns)
}

func openTestDB(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)

	if err := db.AutoMigrate(AllModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
