// Package migration applies pgsqlite's own bookkeeping schema (the shadow
// catalog tables internal/catalog declares, plus anything added in later
// releases) as a versioned, checksummed sequence, rather than the single
// idempotent CREATE-TABLE-IF-NOT-EXISTS script the teacher's
// pkg/platform/storage.Up runs. A single script is enough when the schema
// only ever grows by adding new IF NOT EXISTS tables, but pgsqlite's
// shadow catalog needs to evolve column-by-column across releases (a
// sequences table added in a later version, say), so each step is
// recorded by checksum in a ledger table to detect a script that changed
// underneath an already-migrated database.
package migration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// Step is one versioned migration. Order in Steps is the only thing that
// determines execution order; Version is the key each applied step is
// recorded under in the ledger. A ledger holding versions that Steps no
// longer lists is not detected.
type Step struct {
	Version     int
	Description string
	SQL         string
}

// Steps is pgsqlite's full migration history. v1 installs the shadow
// catalog's bootstrap tables (internal/catalog.BootstrapSQL); new versions
// are appended here, never edited in place once released, since editing a
// released step's SQL would change its checksum under already-migrated
// databases.
var Steps = []Step{
	{
		Version:     1,
		Description: "shadow catalog bootstrap tables",
		SQL:         catalog.BootstrapSQL,
	},
	{
		Version:     2,
		Description: "record declared column ordinal in the shadow schema",
		SQL:         `ALTER TABLE __pgsqlite_schema ADD COLUMN ordinal INTEGER NOT NULL DEFAULT 0;`,
	},
}

const lockTableSQL = `CREATE TABLE IF NOT EXISTS __pgsqlite_migration_lock (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	locked  INTEGER NOT NULL DEFAULT 0
)`

const ledgerTableSQL = `CREATE TABLE IF NOT EXISTS __pgsqlite_migrations (
	version     INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
)`

// ErrChecksumMismatch means a migration already recorded as applied no
// longer matches the compiled-in step's SQL text.
type ErrChecksumMismatch struct {
	Version int
	Want    string
	Got     string
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("migration: version %d checksum mismatch (recorded %s, compiled %s)", e.Version, e.Want, e.Got)
}

// Runner applies Steps against a single SQLite connection, holding the
// database-local lock row for the duration so two sessions racing to open
// the same file don't both try to migrate it.
type Runner struct {
	db *sql.DB
}

func New(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Up ensures the lock/ledger tables exist, then applies every step whose
// version is not yet recorded, verifying checksums of steps that are.
func (r *Runner) Up(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, lockTableSQL); err != nil {
		return fmt.Errorf("migration: create lock table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, ledgerTableSQL); err != nil {
		return fmt.Errorf("migration: create ledger table: %w", err)
	}

	if err := r.acquireLock(ctx); err != nil {
		return err
	}
	defer r.releaseLock(ctx)

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, step := range Steps {
		sum := checksum(step.SQL)
		if recordedSum, ok := applied[step.Version]; ok {
			if recordedSum != sum {
				return &ErrChecksumMismatch{Version: step.Version, Want: recordedSum, Got: sum}
			}
			continue
		}
		if err := r.applyStep(ctx, step, sum); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports which compiled-in steps have not yet been recorded as
// applied, without running them; used at startup to decide whether to
// exit with "schema version outdated" before any migration runs.
func (r *Runner) Pending(ctx context.Context) ([]Step, error) {
	if _, err := r.db.ExecContext(ctx, ledgerTableSQL); err != nil {
		return nil, fmt.Errorf("migration: create ledger table: %w", err)
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Step
	for _, step := range Steps {
		if _, ok := applied[step.Version]; !ok {
			pending = append(pending, step)
		}
	}
	return pending, nil
}

func (r *Runner) acquireLock(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO __pgsqlite_migration_lock (id, locked) VALUES (1, 1)
		ON CONFLICT(id) DO UPDATE SET locked = 1 WHERE locked = 0`)
	if err != nil {
		return fmt.Errorf("migration: acquire lock: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("migration: database is locked by another migration in progress")
	}
	return nil
}

func (r *Runner) releaseLock(ctx context.Context) {
	r.db.ExecContext(ctx, `UPDATE __pgsqlite_migration_lock SET locked = 0 WHERE id = 1`)
}

func (r *Runner) appliedVersions(ctx context.Context) (map[int]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, checksum FROM __pgsqlite_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migration: read ledger: %w", err)
	}
	defer rows.Close()
	out := map[int]string{}
	for rows.Next() {
		var v int
		var sum string
		if err := rows.Scan(&v, &sum); err != nil {
			return nil, err
		}
		out[v] = sum
	}
	return out, rows.Err()
}

func (r *Runner) applyStep(ctx context.Context, step Step, sum string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(step.SQL) {
		if strings.TrimSpace(stmt) == "" || strings.TrimSpace(stmt) == ";" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration: version %d (%s) failed at:\n%s\nerr: %w", step.Version, step.Description, firstLine(stmt), err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO __pgsqlite_migrations (version, description, checksum) VALUES (?, ?, ?)`,
		step.Version, step.Description, sum); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

func splitSQL(s string) []string {
	raw := strings.Split(s, ";")
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part+";")
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
