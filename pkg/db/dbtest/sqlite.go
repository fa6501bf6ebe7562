// Package dbtest opens throwaway databases migrated with the app models.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/markit/markit-server/pkg/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var quietConfig = &gorm.Config{
	SkipDefaultTransaction:                   true,
	DisableForeignKeyConstraintWhenMigrating: true,
	Logger:                                   gormlogger.Discard,
}

// AllModels lists every table the services touch.
var AllModels = []any{
	&models.Company{},
	&models.CompanyUser{},
	&models.PushToken{},
	&models.Client{},
	&models.Address{},
	&models.Product{},
	&models.Variant{},
	&models.Item{},
	&models.Trynbuy{},
	&models.TrynbuyCartItem{},
	&models.TrynbuyReturnedItem{},
	&models.Bill{},
	&models.BillEntry{},
	&models.DeliveryPartner{},
	&models.DeliveryPartnerEarning{},
	&models.OutboxEvent{},
	&models.OutboxDLQ{},
}

// Open returns a file backed sqlite database limited to one connection, so
// concurrent transactions in tests serialize instead of failing with SQLITE_BUSY.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markit.db")
	conn, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), quietConfig)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(AllModels...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}
