package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

// Result is a synthesized catalog result set: column names/OIDs plus rows,
// built entirely in Go rather than round-tripped through SQLite (modernc.org/sqlite,
// unlike mattn/go-sqlite3, exposes no convenient Go-level virtual-table
// registration API, so pgsqlite answers catalog queries directly instead of
// the ATTACH-virtual-table trick kqlite's pkg/pgwire/utils.go uses -- see
// DESIGN.md).
type Result struct {
	Columns []ResultColumn
	Rows    [][]any
}

type ResultColumn struct {
	Name string
	OID  uint32
}

// Handler recognizes and answers the small set of catalog/information_schema
// queries PG clients (psql, JDBC, GORM, etc.) issue during startup and
// schema reflection.
type Handler struct {
	db  *sql.DB
	reg *Registry
}

func NewHandler(db *sql.DB, reg *Registry) *Handler {
	return &Handler{db: db, reg: reg}
}

// Intercept returns a synthesized Result and true if normalizedSQL (already
// lower-cased and whitespace-collapsed by the caller) names a catalog
// relation this handler understands; otherwise ok is false and the caller
// should run the query against SQLite unmodified.
func (h *Handler) Intercept(ctx context.Context, normalizedSQL string) (*Result, bool, error) {
	switch {
	case strings.Contains(normalizedSQL, "pg_catalog.pg_type") || strings.HasPrefix(normalizedSQL, "select * from pg_type"):
		res, err := h.pgType(ctx)
		return res, true, err
	case strings.Contains(normalizedSQL, "pg_catalog.pg_namespace"):
		return h.pgNamespace(), true, nil
	case strings.Contains(normalizedSQL, "pg_catalog.pg_class") || strings.Contains(normalizedSQL, "from pg_class"):
		res, err := h.pgClass(ctx)
		return res, true, err
	case strings.Contains(normalizedSQL, "pg_catalog.pg_attribute") || strings.Contains(normalizedSQL, "from pg_attribute"):
		res, err := h.pgAttribute(ctx)
		return res, true, err
	case strings.Contains(normalizedSQL, "pg_catalog.pg_settings"):
		return h.pgSettings(), true, nil
	case strings.Contains(normalizedSQL, "information_schema.columns"):
		res, err := h.infoColumns(ctx)
		return res, true, err
	case strings.Contains(normalizedSQL, "information_schema.tables"):
		res, err := h.infoTables(ctx)
		return res, true, err
	case strings.Contains(normalizedSQL, "version()"):
		return h.version(), true, nil
	case normalizedSQL == "select current_database()":
		return h.scalarText("current_database", h.currentDatabase()), true, nil
	case normalizedSQL == "select current_schema()":
		return h.scalarText("current_schema", "public"), true, nil
	case normalizedSQL == "select current_user" || normalizedSQL == "select current_user()":
		return h.scalarText("current_user", "pgsqlite"), true, nil
	default:
		return nil, false, nil
	}
}

func (h *Handler) scalarText(col, val string) *Result {
	return &Result{
		Columns: []ResultColumn{{Name: col, OID: typeconv.OIDText}},
		Rows:    [][]any{{val}},
	}
}

func (h *Handler) currentDatabase() string {
	return "main"
}

func (h *Handler) version() *Result {
	return h.scalarText("version", "PostgreSQL 14.9 (pgsqlite) on sqlite, compiled by pgsqlite")
}

func (h *Handler) pgNamespace() *Result {
	return &Result{
		Columns: []ResultColumn{
			{Name: "oid", OID: typeconv.OIDInt4},
			{Name: "nspname", OID: typeconv.OIDText},
			{Name: "nspowner", OID: typeconv.OIDInt4},
		},
		Rows: [][]any{
			{int64(11), "pg_catalog", int64(10)},
			{int64(2200), "public", int64(10)},
		},
	}
}

func (h *Handler) pgSettings() *Result {
	settings := [][2]string{
		{"server_version", "14.9"},
		{"server_encoding", "UTF8"},
		{"client_encoding", "UTF8"},
		{"DateStyle", "ISO, MDY"},
		{"integer_datetimes", "on"},
		{"standard_conforming_strings", "on"},
		{"TimeZone", "UTC"},
	}
	res := &Result{Columns: []ResultColumn{
		{Name: "name", OID: typeconv.OIDText},
		{Name: "setting", OID: typeconv.OIDText},
	}}
	for _, s := range settings {
		res.Rows = append(res.Rows, []any{s[0], s[1]})
	}
	return res
}

func (h *Handler) pgType(ctx context.Context) (*Result, error) {
	res := &Result{Columns: []ResultColumn{
		{Name: "oid", OID: typeconv.OIDInt4},
		{Name: "typname", OID: typeconv.OIDText},
		{Name: "typnamespace", OID: typeconv.OIDInt4},
		{Name: "typlen", OID: typeconv.OIDInt2},
		{Name: "typtype", OID: typeconv.OIDBPChar},
	}}
	seen := map[uint32]bool{}
	for _, t := range typeconv.BuiltinTypes {
		if seen[t.OID] {
			continue
		}
		seen[t.OID] = true
		res.Rows = append(res.Rows, []any{int64(t.OID), t.Name, int64(11), int16(-1), "b"})
	}
	enums, err := h.reg.Enums(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range enums {
		res.Rows = append(res.Rows, []any{int64(e.OID), e.Name, int64(2200), int16(-1), "e"})
	}
	return res, nil
}

// pgClass synthesizes one row per user table/index/view from sqlite_master,
// matching the columns psql's \d and most ORMs' reflection queries read.
func (h *Handler) pgClass(ctx context.Context) (*Result, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT name, type FROM sqlite_master WHERE type IN ('table','view','index') AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '__pgsqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &Result{Columns: []ResultColumn{
		{Name: "oid", OID: typeconv.OIDInt4},
		{Name: "relname", OID: typeconv.OIDText},
		{Name: "relnamespace", OID: typeconv.OIDInt4},
		{Name: "relkind", OID: typeconv.OIDBPChar},
		{Name: "relowner", OID: typeconv.OIDInt4},
	}}
	oid := int64(16384)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		kind := "r"
		switch typ {
		case "view":
			kind = "v"
		case "index":
			kind = "i"
		}
		res.Rows = append(res.Rows, []any{oid, name, int64(2200), kind, int64(10)})
		oid++
	}
	return res, rows.Err()
}

// pgAttribute synthesizes one row per column via PRAGMA table_info joined
// with the shadow catalog's declared PG type for an accurate atttypid.
func (h *Handler) pgAttribute(ctx context.Context) (*Result, error) {
	tables, err := h.listUserTables(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []ResultColumn{
		{Name: "attrelid", OID: typeconv.OIDInt4},
		{Name: "attname", OID: typeconv.OIDText},
		{Name: "atttypid", OID: typeconv.OIDInt4},
		{Name: "attnum", OID: typeconv.OIDInt2},
		{Name: "attnotnull", OID: typeconv.OIDBool},
	}}
	relOID := int64(16384)
	for _, table := range tables {
		cols, err := h.reg.TableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		prows, err := h.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
		if err != nil {
			return nil, err
		}
		var num int16 = 1
		for prows.Next() {
			var cid int
			var name, ctype string
			var notnull, pk int
			var dflt any
			if err := prows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				prows.Close()
				return nil, err
			}
			oid := typeconv.OIDText
			nn := notnull != 0
			if e, ok := cols[name]; ok {
				oid = e.PGOid
				nn = e.NotNull
			}
			res.Rows = append(res.Rows, []any{relOID, name, int64(oid), num, nn})
			num++
		}
		prows.Close()
		relOID++
	}
	return res, nil
}

func (h *Handler) listUserTables(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '__pgsqlite_%'`)
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

func (h *Handler) infoTables(ctx context.Context) (*Result, error) {
	tables, err := h.listUserTables(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []ResultColumn{
		{Name: "table_catalog", OID: typeconv.OIDText},
		{Name: "table_schema", OID: typeconv.OIDText},
		{Name: "table_name", OID: typeconv.OIDText},
		{Name: "table_type", OID: typeconv.OIDText},
	}}
	for _, t := range tables {
		res.Rows = append(res.Rows, []any{h.currentDatabase(), "public", t, "BASE TABLE"})
	}
	return res, nil
}

func (h *Handler) infoColumns(ctx context.Context) (*Result, error) {
	tables, err := h.listUserTables(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []ResultColumn{
		{Name: "table_name", OID: typeconv.OIDText},
		{Name: "column_name", OID: typeconv.OIDText},
		{Name: "data_type", OID: typeconv.OIDText},
		{Name: "is_nullable", OID: typeconv.OIDText},
		{Name: "ordinal_position", OID: typeconv.OIDInt4},
	}}
	for _, table := range tables {
		cols, err := h.reg.TableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		prows, err := h.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
		if err != nil {
			return nil, err
		}
		pos := int64(1)
		for prows.Next() {
			var cid int
			var name, ctype string
			var notnull, pk int
			var dflt any
			if err := prows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				prows.Close()
				return nil, err
			}
			pgType := "text"
			nullable := "YES"
			if notnull != 0 {
				nullable = "NO"
			}
			if e, ok := cols[name]; ok {
				pgType = e.PGType
				if e.NotNull {
					nullable = "NO"
				}
			}
			res.Rows = append(res.Rows, []any{table, name, pgType, nullable, pos})
			pos++
		}
		prows.Close()
	}
	return res, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
