package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/migrate"
	"github.com/vendeo/vendeo-backend/pkg/migrate/migrations"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestDistributorMigrationMatchesConstraintNames(t *testing.T) {
	content := readMigration(t, "create_distributors")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS distributors",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_distributors_user_id ON distributors (user_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_distributors_referral_code ON distributors (referral_code)",
		"CHECK (parent_id IS NULL OR parent_id <> id)",
		"DROP TABLE IF EXISTS distributors",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCommissionTransactionMigrationConstrainsStatus(t *testing.T) {
	content := readMigration(t, "create_commission_transactions")
	checks := []string{
		"CHECK (statut IN ('calculee', 'validee', 'payee'))",
		"CHECK (montant > 0)",
		"idx_commission_tx_dist_month ON commission_transactions (distributor_id, mois)",
		"DROP TABLE IF EXISTS commission_transactions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCommissionRuleSeedIsIdempotent(t *testing.T) {
	content := readMigration(t, "seed_commission_rules")
	if !strings.Contains(content, "ON CONFLICT (niveau, product_type) DO NOTHING") {
		t.Fatalf("seed must not fail when rules already exist")
	}
}

func TestOutboxMigrationAcceptsEveryEventType(t *testing.T) {
	content := readMigration(t, "create_outbox")
	for _, eventType := range []enums.OutboxEventType{
		enums.EventDistributorRegistered,
		enums.EventDistributorReparented,
		enums.EventCommissionRecorded,
		enums.EventCommissionMonthValidated,
		enums.EventCommissionMonthPaid,
	} {
		if !strings.Contains(content, "'"+string(eventType)+"'") {
			t.Errorf("event type %s missing from outbox_events check", eventType)
		}
	}
	for _, aggregate := range []enums.OutboxAggregateType{enums.AggregateDistributor, enums.AggregateCommissionTransaction} {
		if !strings.Contains(content, "'"+string(aggregate)+"'") {
			t.Errorf("aggregate type %s missing from outbox_events check", aggregate)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Batches!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_batches.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"20260501000000_no_down.sql":  "-- +goose Up\nSELECT 1;\n",
		"20260501000000_swapped.sql":  "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n",
		"20260501000000_unclosed.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		"20261399000000_bad_date.sql": "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		"add_rates.sql":               "-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := migrate.ValidateDir(dir); err == nil {
			t.Errorf("%s: expected validation failure", name)
		}
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected error for unusable name")
	}
}

func TestEmbeddedMigrationsMatchDir(t *testing.T) {
	embedded, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob dir: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, dir has %d", len(embedded), len(onDisk))
	}
	for i, path := range onDisk {
		if filepath.Base(path) != embedded[i] {
			t.Errorf("embedded[%d] = %s, want %s", i, embedded[i], filepath.Base(path))
		}
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := migrate.New(nil, "", nil); err == nil {
		t.Fatal("expected error without db")
	}
}
