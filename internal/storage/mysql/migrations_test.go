package mysql

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"

	"AfriArt-Gallery/deploy/migrations"
)

func TestSplitStatementsSkipsComments(t *testing.T) {
	script := `-- 第一张表
CREATE TABLE a (id INT);

-- 第二张表
CREATE TABLE b (id INT);
`
	statements := splitStatements(script)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE a (id INT)" || statements[1] != "CREATE TABLE b (id INT)" {
		t.Fatalf("unexpected statements %q", statements)
	}
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	files := fstest.MapFS{
		"0002_orders.sql": {Data: []byte("CREATE TABLE orders (id INT);")},
		"0001_init.sql":   {Data: []byte("CREATE TABLE users (id INT); CREATE TABLE admins (id INT);")},
		"README.md":       {Data: []byte("not a migration")},
		"0003_empty.sql":  {Data: []byte("-- nothing yet\n")},
	}
	loaded, err := loadMigrations(files)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(loaded))
	}
	if loaded[0].Version != "0001" || len(loaded[0].statements) != 2 || loaded[1].Version != "0002" {
		t.Fatalf("unexpected order %+v", loaded)
	}
}

func TestEmbeddedSchemaCreatesEveryTable(t *testing.T) {
	loaded, err := loadMigrations(migrations.Files)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) == 0 || loaded[0].Version != "0001" {
		t.Fatalf("expected 0001 migration, got %+v", loaded)
	}
	joined := strings.Join(loaded[0].statements, "\n")
	for _, table := range []string{
		"users", "artists", "admins", "artworks", "exhibitions", "contact_messages",
		"artwork_orders", "exhibition_bookings", "mpesa_transactions", "background_jobs",
	} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema is missing table %s", table)
		}
	}
}

func TestMigrateAppliesPendingOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	loaded, err := loadMigrations(migrations.Files)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	for _, m := range loaded {
		mock.ExpectBegin()
		for range m.statements {
			mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(m.Version, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	applied, err := Migrate(context.Background(), db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(applied) != len(loaded) {
		t.Fatalf("expected %d applied, got %d", len(loaded), len(applied))
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"version"})
	for _, m := range loaded {
		rows.AddRow(m.Version)
	}
	mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(rows)

	applied, err = Migrate(context.Background(), db)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing to apply, got %d", len(applied))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("afriart:secret@tcp(127.0.0.1:3306)/afriart")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for _, want := range []string{"parseTime=true", "clientFoundRows=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected %s in %s", want, dsn)
		}
	}
	if _, err := normalizeDSN("  "); err == nil {
		t.Fatalf("empty DSN must be rejected")
	}
}
