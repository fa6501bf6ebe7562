package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := ValidateFS(Embedded(), EmbeddedDir); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Embedded(), EmbeddedDir+"/*_"+suffix+".sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := fs.ReadFile(Embedded(), matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	return string(data)
}

func TestStockAndInvoiceConstraints(t *testing.T) {
	catalog := readMigration(t, "create_catalog")
	for _, sub := range []string{
		"CHECK (qty >= 0)",
		"CONSTRAINT uq_items_variant_size UNIQUE (variant_id, size)",
		"invoice_counter BIGINT NOT NULL DEFAULT 1",
	} {
		if !strings.Contains(catalog, sub) {
			t.Errorf("catalog migration missing %q", sub)
		}
	}

	bills := readMigration(t, "create_bills")
	for _, sub := range []string{
		"CONSTRAINT uq_bills_company_invoice UNIQUE (company_id, invoice_number)",
		"CONSTRAINT uq_bills_trynbuy UNIQUE (trynbuy_id)",
		"DROP TABLE IF EXISTS bills",
	} {
		if !strings.Contains(bills, sub) {
			t.Errorf("bills migration missing %q", sub)
		}
	}

	orders := readMigration(t, "create_trynbuys")
	if !strings.Contains(orders, "quantity INTEGER NOT NULL CHECK (quantity > 0)") {
		t.Errorf("cart items must reject non positive quantities")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Bill Notes!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260304050607_add_bill_notes.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if _, err := CreateSQLMigration(dir, "add bill notes", now); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("select 1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected bad filename to fail validation")
	}
}
