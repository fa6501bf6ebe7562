package dbtest

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// EnvPostgresDSN points the race tests at a real Postgres server.
const EnvPostgresDSN = "MARKIT_TEST_POSTGRES_DSN"

// OpenConcurrent returns a database for tests that race transactions. With
// MARKIT_TEST_POSTGRES_DSN set it is a fresh Postgres schema with a real pool,
// so FOR UPDATE and conditional updates contend. Otherwise it falls back to
// Open, where sqlite serializes every transaction.
func OpenConcurrent(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(EnvPostgresDSN))
	if dsn == "" {
		return Open(t)
	}

	admin, err := gorm.Open(postgres.Open(dsn), quietConfig)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	schema := "markit_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec(fmt.Sprintf(`CREATE SCHEMA %q`, schema)).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	adminDB, err := admin.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}

	conn, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), quietConfig)
	if err != nil {
		t.Fatalf("open postgres schema: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)
	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = admin.Exec(fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schema)).Error
		_ = adminDB.Close()
	})

	if err := conn.AutoMigrate(AllModels...); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return conn
}

// withSearchPath handles both URL and keyword/value DSNs.
func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}
