// Package modeltest opens throwaway databases for package tests.
package modeltest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"solarcycle.GO/model/entity"
)

// NewDB returns a migrated sqlite database in a temp file. A file is used
// instead of :memory: so every pooled connection sees the same schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func Ptr[T any](v T) *T {
	return &v
}
