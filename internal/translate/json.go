package translate

import (
	"context"
	"regexp"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// JSONTranslator rewrites PG's `->`/`->>` JSON field-access operators into
// SQLite's json_extract()/->>/-> (SQLite 3.38+ actually supports the same
// two operators natively for JSON1-backed values, but only against a real
// json() value, not arbitrary TEXT, so this pass wraps the left operand in
// json_extract explicitly for portability across older modernc.org/sqlite
// builds).
type JSONTranslator struct{}

var jsonArrowText = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_."]*)\s*->>\s*('[^']*'|\$?[0-9]+)`)
var jsonArrow = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_."]*)\s*->\s*('[^']*'|\$?[0-9]+)`)

func (JSONTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	if !jsonArrow.MatchString(sql) && !jsonArrowText.MatchString(sql) {
		return sql, false, nil
	}
	out := jsonArrowText.ReplaceAllString(sql, "json_extract($1, '$.' || replace($2, '\"', ''))")
	out = jsonArrow.ReplaceAllString(out, "json_extract($1, '$.' || replace($2, '\"', ''))")
	if out == sql {
		return sql, false, nil
	}
	return out, true, nil
}
