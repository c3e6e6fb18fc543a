package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// RowToJSONTranslator rewrites row_to_json(table_alias) into SQLite's
// json_object(col1, table_alias.col1, col2, table_alias.col2, ...) built
// from the shadow catalog's recorded columns for that table, since SQLite's
// json1 extension has no row-to-object aggregate of its own.
type RowToJSONTranslator struct {
	Reg *catalog.Registry
}

var rowToJSONCall = regexp.MustCompile(`(?i)row_to_json\(\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\)`)

func (t *RowToJSONTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	matches := rowToJSONCall.FindAllStringSubmatch(sql, -1)
	if len(matches) == 0 {
		return sql, false, nil
	}
	tableName := findFromTable(sql)
	if tableName == "" || reg == nil {
		return sql, false, nil
	}
	cols, err := reg.TableColumns(ctx, tableName)
	if err != nil || len(cols) == 0 {
		return sql, false, nil
	}
	var names []string
	for name := range cols {
		names = append(names, name)
	}
	out := rowToJSONCall.ReplaceAllStringFunc(sql, func(m string) string {
		alias := rowToJSONCall.FindStringSubmatch(m)[1]
		var parts []string
		for _, c := range names {
			parts = append(parts, fmt.Sprintf("'%s', %s.%s", c, alias, c))
		}
		return "json_object(" + strings.Join(parts, ", ") + ")"
	})
	return out, true, nil
}

var fromPattern = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

func findFromTable(sql string) string {
	m := fromPattern.FindStringSubmatch(sql)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
