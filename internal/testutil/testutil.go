// Package testutil provides helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/models"
)

// NewTestDB opens a migrated in-memory SQLite database private to the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// SeedUser inserts a user with an unusable password hash.
func SeedUser(t *testing.T, gdb *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, Password: "x", Name: "Test User"}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
