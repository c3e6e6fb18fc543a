package translate

import (
	"context"
	"regexp"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// ArrayTranslator rewrites PG's ANY(array_expr) membership test -- the
// common shape `col = ANY(x)` / `col = ANY($1)` -- into SQLite's
// EXISTS(SELECT 1 FROM json_each(x) WHERE value = col) form, since arrays
// are stored as JSON text (internal/typeconv's arrayCoder) and SQLite has
// no native ANY() operator.
type ArrayTranslator struct{}

var anyPattern = regexp.MustCompile(`(?i)([a-zA-Z_][a-zA-Z0-9_."]*)\s*=\s*ANY\s*\(\s*(\$?[a-zA-Z0-9_."]+)\s*\)`)

func (ArrayTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	if !strings.Contains(strings.ToUpper(sql), "ANY(") && !anyPattern.MatchString(sql) {
		return sql, false, nil
	}
	out := anyPattern.ReplaceAllString(sql, "EXISTS (SELECT 1 FROM json_each($2) WHERE json_each.value = $1)")
	if out == sql {
		return sql, false, nil
	}
	return out, true, nil
}
