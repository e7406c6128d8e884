// Package testdb opens throwaway sqlite databases with the billing schema
// for package tests.
package testdb

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/netbill/backend/internal/infrastructure/persistence"
)

// New returns a migrated sqlite database in t's temp dir. Transactions take
// the write lock at BEGIN and wait on contention, so concurrent tests
// serialize instead of failing with SQLITE_BUSY.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "netbill.db") + "?_busy_timeout=10000&_txlock=immediate&_foreign_keys=on"
	db, err := persistence.Open(sqlite.Open(dsn), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}
