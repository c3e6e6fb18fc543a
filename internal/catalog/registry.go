// Package catalog maintains pgsqlite's shadow catalog: the __pgsqlite_*
// bookkeeping tables that remember PG-specific facts SQLite's own
// sqlite_master/PRAGMA introspection cannot express (declared PG type name,
// NUMERIC precision/scale, VARCHAR length, ENUM label sets) and the
// synthesis of pg_catalog/information_schema query results from that
// bookkeeping plus live schema introspection. Grounded on the teacher's
// pkg/platform/storage schema-as-const-SQL pattern, generalized into a
// queryable registry instead of a one-shot migration.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// BootstrapSQL creates the shadow tables pgsqlite needs alongside any user
// schema. It is executed once per database by the migration engine's first
// versioned step (see internal/migration), not here, so that registry
// methods never implicitly mutate schema.
const BootstrapSQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_schema (
  table_name  TEXT NOT NULL,
  column_name TEXT NOT NULL,
  pg_type     TEXT NOT NULL,
  pg_oid      INTEGER NOT NULL,
  not_null    INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (table_name, column_name)
);

CREATE TABLE IF NOT EXISTS __pgsqlite_numeric_constraints (
  table_name  TEXT NOT NULL,
  column_name TEXT NOT NULL,
  precision   INTEGER NOT NULL,
  scale       INTEGER NOT NULL,
  PRIMARY KEY (table_name, column_name)
);

CREATE TABLE IF NOT EXISTS __pgsqlite_string_constraints (
  table_name  TEXT NOT NULL,
  column_name TEXT NOT NULL,
  max_length  INTEGER NOT NULL,
  is_char     INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (table_name, column_name)
);

CREATE TABLE IF NOT EXISTS __pgsqlite_enum_types (
  type_name TEXT PRIMARY KEY,
  type_oid  INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS __pgsqlite_enum_values (
  type_name  TEXT NOT NULL REFERENCES __pgsqlite_enum_types(type_name) ON DELETE CASCADE,
  label      TEXT NOT NULL,
  sort_order INTEGER NOT NULL,
  PRIMARY KEY (type_name, label)
);

CREATE TABLE IF NOT EXISTS __pgsqlite_sequences (
  sequence_name TEXT PRIMARY KEY,
  table_name    TEXT NOT NULL,
  column_name   TEXT NOT NULL,
  last_value    INTEGER NOT NULL DEFAULT 0
);
`

// TypeEntry records a single column's declared PG type, kept separate from
// SQLite's storage-class-only type affinity. Ordinal is the column's
// position in its CREATE TABLE (0-based); SQLite's own row storage has no
// notion of column order independent of sqlite_master's text, so callers
// that need positional-parameter-to-column mapping (constraint validation,
// COPY's implicit column list) sort by this field rather than depending on
// map iteration order.
type TypeEntry struct {
	TableName  string
	ColumnName string
	PGType     string
	PGOid      uint32
	NotNull    bool
	Ordinal    int
}

// NumericConstraint is a NUMERIC(p,s) column's declared precision/scale.
type NumericConstraint struct {
	TableName  string
	ColumnName string
	Precision  int
	Scale      int
}

// StringConstraint is a VARCHAR(n)/CHAR(n) column's declared max length.
type StringConstraint struct {
	TableName  string
	ColumnName string
	MaxLength  int
	IsChar     bool
}

// EnumType is a CREATE TYPE ... AS ENUM definition.
type EnumType struct {
	Name   string
	OID    uint32
	Labels []string
}

// Registry is the in-process, per-session-connection view of the shadow
// catalog tables, cached after first load and invalidated on DDL.
type Registry struct {
	db *sql.DB

	types    map[string]map[string]TypeEntry // table -> column -> entry
	numerics map[string]map[string]NumericConstraint
	strings  map[string]map[string]StringConstraint
	enums    map[string]EnumType
	loaded   bool
}

func New(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Invalidate forces the next accessor to reload from the shadow tables;
// the registry's own write methods call it after every shadow-table write.
func (r *Registry) Invalidate() {
	r.loaded = false
}

func (r *Registry) ensureLoaded(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	r.types = map[string]map[string]TypeEntry{}
	r.numerics = map[string]map[string]NumericConstraint{}
	r.strings = map[string]map[string]StringConstraint{}
	r.enums = map[string]EnumType{}

	rows, err := r.db.QueryContext(ctx, `SELECT table_name, column_name, pg_type, pg_oid, not_null, ordinal FROM __pgsqlite_schema`)
	if err != nil {
		return fmt.Errorf("catalog: load schema: %w", err)
	}
	for rows.Next() {
		var e TypeEntry
		var notNull int
		if err := rows.Scan(&e.TableName, &e.ColumnName, &e.PGType, &e.PGOid, &notNull, &e.Ordinal); err != nil {
			rows.Close()
			return err
		}
		e.NotNull = notNull != 0
		if r.types[e.TableName] == nil {
			r.types[e.TableName] = map[string]TypeEntry{}
		}
		r.types[e.TableName][e.ColumnName] = e
	}
	rows.Close()

	nrows, err := r.db.QueryContext(ctx, `SELECT table_name, column_name, precision, scale FROM __pgsqlite_numeric_constraints`)
	if err != nil {
		return fmt.Errorf("catalog: load numeric constraints: %w", err)
	}
	for nrows.Next() {
		var c NumericConstraint
		if err := nrows.Scan(&c.TableName, &c.ColumnName, &c.Precision, &c.Scale); err != nil {
			nrows.Close()
			return err
		}
		if r.numerics[c.TableName] == nil {
			r.numerics[c.TableName] = map[string]NumericConstraint{}
		}
		r.numerics[c.TableName][c.ColumnName] = c
	}
	nrows.Close()

	srows, err := r.db.QueryContext(ctx, `SELECT table_name, column_name, max_length, is_char FROM __pgsqlite_string_constraints`)
	if err != nil {
		return fmt.Errorf("catalog: load string constraints: %w", err)
	}
	for srows.Next() {
		var c StringConstraint
		var isChar int
		if err := srows.Scan(&c.TableName, &c.ColumnName, &c.MaxLength, &isChar); err != nil {
			srows.Close()
			return err
		}
		c.IsChar = isChar != 0
		if r.strings[c.TableName] == nil {
			r.strings[c.TableName] = map[string]StringConstraint{}
		}
		r.strings[c.TableName][c.ColumnName] = c
	}
	srows.Close()

	erows, err := r.db.QueryContext(ctx, `SELECT type_name, type_oid FROM __pgsqlite_enum_types`)
	if err != nil {
		return fmt.Errorf("catalog: load enum types: %w", err)
	}
	names := []string{}
	for erows.Next() {
		var name string
		var oid uint32
		if err := erows.Scan(&name, &oid); err != nil {
			erows.Close()
			return err
		}
		r.enums[name] = EnumType{Name: name, OID: oid}
		names = append(names, name)
	}
	erows.Close()

	for _, name := range names {
		et := r.enums[name]
		lrows, err := r.db.QueryContext(ctx, `SELECT label FROM __pgsqlite_enum_values WHERE type_name = ? ORDER BY sort_order`, name)
		if err != nil {
			return fmt.Errorf("catalog: load enum values: %w", err)
		}
		for lrows.Next() {
			var label string
			if err := lrows.Scan(&label); err != nil {
				lrows.Close()
				return err
			}
			et.Labels = append(et.Labels, label)
		}
		lrows.Close()
		r.enums[name] = et
	}

	r.loaded = true
	return nil
}

func (r *Registry) ColumnType(ctx context.Context, table, column string) (TypeEntry, bool) {
	if err := r.ensureLoaded(ctx); err != nil {
		return TypeEntry{}, false
	}
	cols, ok := r.types[table]
	if !ok {
		return TypeEntry{}, false
	}
	e, ok := cols[column]
	return e, ok
}

func (r *Registry) TableColumns(ctx context.Context, table string) (map[string]TypeEntry, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return r.types[table], nil
}

func (r *Registry) NumericConstraintFor(ctx context.Context, table, column string) (NumericConstraint, bool) {
	if err := r.ensureLoaded(ctx); err != nil {
		return NumericConstraint{}, false
	}
	cols, ok := r.numerics[table]
	if !ok {
		return NumericConstraint{}, false
	}
	c, ok := cols[column]
	return c, ok
}

func (r *Registry) StringConstraintFor(ctx context.Context, table, column string) (StringConstraint, bool) {
	if err := r.ensureLoaded(ctx); err != nil {
		return StringConstraint{}, false
	}
	cols, ok := r.strings[table]
	if !ok {
		return StringConstraint{}, false
	}
	c, ok := cols[column]
	return c, ok
}

func (r *Registry) EnumByName(ctx context.Context, name string) (EnumType, bool) {
	if err := r.ensureLoaded(ctx); err != nil {
		return EnumType{}, false
	}
	e, ok := r.enums[name]
	return e, ok
}

func (r *Registry) Enums(ctx context.Context) (map[string]EnumType, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return r.enums, nil
}

// RecordColumn persists a column's declared PG type into the shadow
// catalog; called by CreateTableTranslator as it rewrites CREATE TABLE.
func (r *Registry) RecordColumn(ctx context.Context, e TypeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO __pgsqlite_schema (table_name, column_name, pg_type, pg_oid, not_null, ordinal)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET pg_type=excluded.pg_type, pg_oid=excluded.pg_oid, not_null=excluded.not_null, ordinal=excluded.ordinal
	`, e.TableName, e.ColumnName, e.PGType, e.PGOid, boolToInt(e.NotNull), e.Ordinal)
	r.Invalidate()
	return err
}

func (r *Registry) RecordNumericConstraint(ctx context.Context, c NumericConstraint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO __pgsqlite_numeric_constraints (table_name, column_name, precision, scale)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET precision=excluded.precision, scale=excluded.scale
	`, c.TableName, c.ColumnName, c.Precision, c.Scale)
	r.Invalidate()
	return err
}

func (r *Registry) RecordStringConstraint(ctx context.Context, c StringConstraint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO __pgsqlite_string_constraints (table_name, column_name, max_length, is_char)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET max_length=excluded.max_length, is_char=excluded.is_char
	`, c.TableName, c.ColumnName, c.MaxLength, boolToInt(c.IsChar))
	r.Invalidate()
	return err
}

func (r *Registry) RecordEnumType(ctx context.Context, et EnumType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO __pgsqlite_enum_types (type_name, type_oid) VALUES (?, ?)
		ON CONFLICT(type_name) DO UPDATE SET type_oid=excluded.type_oid`, et.Name, et.OID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM __pgsqlite_enum_values WHERE type_name = ?`, et.Name); err != nil {
		tx.Rollback()
		return err
	}
	for i, label := range et.Labels {
		if _, err := tx.ExecContext(ctx, `INSERT INTO __pgsqlite_enum_values (type_name, label, sort_order) VALUES (?, ?, ?)`, et.Name, label, i); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.Invalidate()
	return nil
}

func (r *Registry) DropTable(ctx context.Context, table string) error {
	for _, stmt := range []string{
		`DELETE FROM __pgsqlite_schema WHERE table_name = ?`,
		`DELETE FROM __pgsqlite_numeric_constraints WHERE table_name = ?`,
		`DELETE FROM __pgsqlite_string_constraints WHERE table_name = ?`,
	} {
		if _, err := r.db.ExecContext(ctx, stmt, table); err != nil {
			return err
		}
	}
	r.Invalidate()
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MarshalEnumLabels is a small helper for callers that want to stash a
// label set as JSON (used by drift reporting).
func MarshalEnumLabels(labels []string) (string, error) {
	b, err := json.Marshal(labels)
	return string(b), err
}
