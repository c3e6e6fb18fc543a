// Package drift detects divergence between pgsqlite's shadow catalog
// (__pgsqlite_schema, populated at CREATE TABLE time) and SQLite's live
// schema (sqlite_master/PRAGMA table_info), which can happen if something
// outside pgsqlite's translators touches the database file directly (a
// manual sqlite3 session, a restored backup from a different pgsqlite
// version). Grounded on the teacher's pkg/platform/storage schema-check
// pattern, generalized from a one-shot migration check into an on-demand
// comparison report.
package drift

import (
	"context"
	"database/sql"
	"fmt"
)

// Finding describes one divergence between the shadow catalog and the live
// schema.
type Finding struct {
	Table   string
	Column  string
	Problem string
}

// Detector compares __pgsqlite_schema against PRAGMA table_info for every
// user table.
type Detector struct {
	db *sql.DB
}

func New(db *sql.DB) *Detector {
	return &Detector{db: db}
}

// Check returns every divergence found: a shadow-catalog column with no
// matching live column, a live column with no shadow entry, or a not-null
// flag mismatch.
func (d *Detector) Check(ctx context.Context) ([]Finding, error) {
	tables, err := d.userTables(ctx)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, table := range tables {
		shadow, err := d.shadowColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		live, err := d.liveColumns(ctx, table)
		if err != nil {
			return nil, err
		}

		for col, notNull := range live {
			shadowNotNull, ok := shadow[col]
			if !ok {
				findings = append(findings, Finding{Table: table, Column: col, Problem: "column present in SQLite schema but not recorded in shadow catalog"})
				continue
			}
			if shadowNotNull != notNull {
				findings = append(findings, Finding{Table: table, Column: col, Problem: "NOT NULL mismatch between shadow catalog and live schema"})
			}
		}
		for col := range shadow {
			if _, ok := live[col]; !ok {
				findings = append(findings, Finding{Table: table, Column: col, Problem: "column recorded in shadow catalog but missing from SQLite schema"})
			}
		}
	}
	return findings, nil
}

func (d *Detector) userTables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '__pgsqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (d *Detector) shadowColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT column_name, not_null FROM __pgsqlite_schema WHERE table_name = ?`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var col string
		var notNull int
		if err := rows.Scan(&col, &notNull); err != nil {
			return nil, err
		}
		out[col] = notNull != 0
	}
	return out, rows.Err()
}

func (d *Detector) liveColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = notnull != 0
	}
	return out, rows.Err()
}
