package translate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pgq "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

// CreateTableTranslator rewrites CREATE TABLE statements into SQLite DDL,
// recording each column's declared PG type in the shadow catalog (the
// storage-class-only affinity SQLite keeps is not enough to reconstruct
// RowDescription OIDs later), along with NUMERIC(p,s) and VARCHAR/CHAR(n)
// limits for the executor's parameter checks. It emits no CHECK
// constraints and installs no ENUM validation triggers. Grounded on
// xataio-pgroll's pkg/sql2pgroll/create_table.go structural walk of
// stmt.TableElts, generalized from "build a typed operation" to "build a
// rewritten CREATE TABLE plus catalog bookkeeping".
type CreateTableTranslator struct {
	Reg *catalog.Registry
}

func (t *CreateTableTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	trimmed := strings.TrimSpace(sql)
	if !hasKeywordPrefix(trimmed, "CREATE TABLE") {
		return sql, false, nil
	}
	tree, err := pgq.Parse(sql)
	if err != nil {
		// Not every CREATE TABLE dialect quirk parses; fall through and let
		// SQLite itself reject (or accept) the statement unmodified.
		return sql, false, nil
	}
	if len(tree.GetStmts()) != 1 {
		return sql, false, nil
	}
	node, ok := tree.GetStmts()[0].GetStmt().GetNode().(*pgq.Node_CreateStmt)
	if !ok {
		return sql, false, nil
	}
	stmt := node.CreateStmt
	tableName := stmt.GetRelation().GetRelname()
	if tableName == "" {
		return sql, false, nil
	}

	var colDefs []string
	ordinal := 0
	for _, elt := range stmt.GetTableElts() {
		switch e := elt.GetNode().(type) {
		case *pgq.Node_ColumnDef:
			colSQL, entry, numeric, strCon, enumCheck, err := t.convertColumn(tableName, e.ColumnDef, ordinal)
			ordinal++
			if err != nil {
				return sql, false, err
			}
			colDefs = append(colDefs, colSQL)
			if reg != nil {
				if err := reg.RecordColumn(ctx, entry); err != nil {
					return sql, false, err
				}
				if numeric != nil {
					if err := reg.RecordNumericConstraint(ctx, *numeric); err != nil {
						return sql, false, err
					}
				}
				if strCon != nil {
					if err := reg.RecordStringConstraint(ctx, *strCon); err != nil {
						return sql, false, err
					}
				}
			}
			if enumCheck != "" {
				colDefs[len(colDefs)-1] += " " + enumCheck
			}
		case *pgq.Node_Constraint:
			colDefs = append(colDefs, deparseTableConstraint(e.Constraint))
		default:
			// LIKE clauses and other element kinds pass through unsupported;
			// SQLite will reject them directly, which is acceptable here.
		}
	}

	ifNotExists := ""
	if stmt.GetIfNotExists() {
		ifNotExists = "IF NOT EXISTS "
	}
	out := fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n)", ifNotExists, quoteIdent(tableName), strings.Join(colDefs, ",\n  "))
	return out, true, nil
}

func (t *CreateTableTranslator) convertColumn(table string, col *pgq.ColumnDef, ordinal int) (string, catalog.TypeEntry, *catalog.NumericConstraint, *catalog.StringConstraint, string, error) {
	name := col.GetColname()
	typeName, mods := pgTypeNameAndMods(col.GetTypeName())
	lower := strings.ToLower(typeName)

	notNull := false
	var checkClauses []string
	for _, c := range col.GetConstraints() {
		cons := c.GetConstraint()
		switch cons.GetContype() {
		case pgq.ConstrType_CONSTR_NOTNULL:
			notNull = true
		case pgq.ConstrType_CONSTR_PRIMARY:
			checkClauses = append(checkClauses, "PRIMARY KEY")
		case pgq.ConstrType_CONSTR_UNIQUE:
			checkClauses = append(checkClauses, "UNIQUE")
		case pgq.ConstrType_CONSTR_DEFAULT:
			if cons.GetRawExpr() != nil {
				if expr, err := pgq.DeparseExpr(cons.GetRawExpr()); err == nil {
					checkClauses = append(checkClauses, "DEFAULT "+expr)
				}
			}
		}
	}

	ti, known := typeconv.BuiltinTypes[lower]
	storage := "TEXT"
	oid := typeconv.OIDText
	pgType := lower
	var numeric *catalog.NumericConstraint
	var strCon *catalog.StringConstraint
	var enumCheck string

	switch {
	case known:
		storage = ti.SQLiteStorage
		oid = ti.OID
		pgType = ti.Name
		if lower == "numeric" || lower == "decimal" {
			if len(mods) == 2 {
				p, _ := strconv.Atoi(mods[0])
				s, _ := strconv.Atoi(mods[1])
				numeric = &catalog.NumericConstraint{TableName: table, ColumnName: name, Precision: p, Scale: s}
			}
		}
		if lower == "varchar" || lower == "character varying" || lower == "char" || lower == "character" {
			if len(mods) == 1 {
				n, _ := strconv.Atoi(mods[0])
				strCon = &catalog.StringConstraint{TableName: table, ColumnName: name, MaxLength: n, IsChar: lower == "char" || lower == "character"}
			}
		}
	case strings.HasSuffix(lower, "[]"):
		elemName := strings.TrimSuffix(lower, "[]")
		elemTI, ok := typeconv.BuiltinTypes[elemName]
		storage = "TEXT"
		pgType = elemName + "[]"
		if ok {
			oid = elemTI.OID // caller/catalog resolves the true array OID dynamically
		}
	default:
		// Unknown bare word: most likely a CREATE TYPE ... AS ENUM name.
		// The column is stored as TEXT with OID 0; its labels are not
		// validated on write.
		storage = "TEXT"
		pgType = lower
		oid = 0
		enumCheck = "" // no inline CHECK, and no trigger is installed either
	}

	colSQL := fmt.Sprintf("%s %s", quoteIdent(name), storage)
	if notNull {
		colSQL += " NOT NULL"
	}
	for _, c := range checkClauses {
		colSQL += " " + c
	}

	entry := catalog.TypeEntry{TableName: table, ColumnName: name, PGType: pgType, PGOid: oid, NotNull: notNull, Ordinal: ordinal}
	return colSQL, entry, numeric, strCon, enumCheck, nil
}

// pgTypeNameAndMods extracts the dotted type name (last component, e.g.
// "varchar" from pg_catalog.varchar) and any typmod integers (e.g. the 10,2
// in numeric(10,2)).
func pgTypeNameAndMods(tn *pgq.TypeName) (string, []string) {
	if tn == nil {
		return "text", nil
	}
	names := tn.GetNames()
	last := ""
	for _, n := range names {
		if s := n.GetString_(); s != nil {
			last = s.GetSval()
		}
	}
	isArray := len(tn.GetArrayBounds()) > 0
	if isArray {
		last += "[]"
	}
	var mods []string
	for _, m := range tn.GetTypmods() {
		if ac, ok := m.GetNode().(*pgq.Node_AConst); ok {
			if iv := ac.AConst.GetIval(); iv != nil {
				mods = append(mods, strconv.Itoa(int(iv.GetIval())))
			}
		}
	}
	return last, mods
}

func deparseTableConstraint(c *pgq.Constraint) string {
	switch c.GetContype() {
	case pgq.ConstrType_CONSTR_PRIMARY:
		var cols []string
		for _, k := range c.GetKeys() {
			if s := k.GetString_(); s != nil {
				cols = append(cols, quoteIdent(s.GetSval()))
			}
		}
		return fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(cols, ", "))
	case pgq.ConstrType_CONSTR_UNIQUE:
		var cols []string
		for _, k := range c.GetKeys() {
			if s := k.GetString_(); s != nil {
				cols = append(cols, quoteIdent(s.GetSval()))
			}
		}
		return fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", "))
	case pgq.ConstrType_CONSTR_FOREIGN:
		ref := c.GetPktable().GetRelname()
		var cols []string
		for _, k := range c.GetFkAttrs() {
			if s := k.GetString_(); s != nil {
				cols = append(cols, quoteIdent(s.GetSval()))
			}
		}
		var refCols []string
		for _, k := range c.GetPkAttrs() {
			if s := k.GetString_(); s != nil {
				refCols = append(refCols, quoteIdent(s.GetSval()))
			}
		}
		return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", strings.Join(cols, ", "), quoteIdent(ref), strings.Join(refCols, ", "))
	default:
		return "CHECK (1=1)"
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func hasKeywordPrefix(sql, kw string) bool {
	s := strings.TrimSpace(sql)
	return len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], kw)
}
