package drift_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pgsqlite/pgsqlite/internal/drift"
	"github.com/pgsqlite/pgsqlite/internal/migration"
)

func bootstrapped(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := migration.New(db).Up(context.Background()); err != nil {
		t.Fatalf("bootstrap shadow catalog: %v", err)
	}
	return db
}

func TestCheckFindsNoDriftWhenInSync(t *testing.T) {
	db := bootstrapped(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER NOT NULL, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO __pgsqlite_schema (table_name, column_name, pg_type, pg_oid, not_null) VALUES
		('users', 'id', 'int4', 23, 1), ('users', 'name', 'text', 25, 0)`); err != nil {
		t.Fatalf("seed shadow catalog: %v", err)
	}

	findings, err := drift.New(db).Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestCheckFindsColumnMissingFromShadowCatalog(t *testing.T) {
	db := bootstrapped(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER NOT NULL, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	// Only "id" is recorded; "name" was added outside pgsqlite's translators.
	if _, err := db.ExecContext(ctx, `INSERT INTO __pgsqlite_schema (table_name, column_name, pg_type, pg_oid, not_null) VALUES
		('users', 'id', 'int4', 23, 1)`); err != nil {
		t.Fatalf("seed shadow catalog: %v", err)
	}

	findings, err := drift.New(db).Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != 1 || findings[0].Column != "name" {
		t.Fatalf("expected one finding for column \"name\", got %+v", findings)
	}
}

func TestCheckFindsNotNullMismatch(t *testing.T) {
	db := bootstrapped(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	// Shadow catalog disagrees: recorded as nullable, live schema says NOT NULL.
	if _, err := db.ExecContext(ctx, `INSERT INTO __pgsqlite_schema (table_name, column_name, pg_type, pg_oid, not_null) VALUES
		('users', 'id', 'int4', 23, 0)`); err != nil {
		t.Fatalf("seed shadow catalog: %v", err)
	}

	findings, err := drift.New(db).Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one NOT NULL mismatch finding, got %+v", findings)
	}
}

func TestCheckIgnoresBookkeepingTables(t *testing.T) {
	db := bootstrapped(t)
	findings, err := drift.New(db).Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected bookkeeping tables to be excluded from user-table scan, got %+v", findings)
	}
}
