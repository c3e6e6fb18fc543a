package translate

import (
	"context"
	"regexp"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// RegexTranslator rewrites PG's regex match operators (~, ~*, !~, !~*) into
// SQLite's REGEXP/NOT REGEXP (REGEXP_I/NOT REGEXP_I for the case-insensitive
// forms). SQLite evaluates REGEXP by calling a user function named regexp(),
// which it does not ship by default, and internal/catalog/functions.go does
// not register one.
type RegexTranslator struct{}

var regexOps = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`\s!~\*\s`), " NOT REGEXP_I "},
	{regexp.MustCompile(`\s!~\s`), " NOT REGEXP "},
	{regexp.MustCompile(`\s~\*\s`), " REGEXP_I "},
	{regexp.MustCompile(`([^~!])~([^~*])`), "$1 REGEXP $2"},
}

func (RegexTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	out := sql
	changed := false
	for _, op := range regexOps {
		if op.pattern.MatchString(out) {
			out = op.pattern.ReplaceAllString(out, op.replace)
			changed = true
		}
	}
	if !changed {
		return sql, false, nil
	}
	return out, true, nil
}
