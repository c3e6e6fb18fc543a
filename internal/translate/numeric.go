package translate

import (
	"context"
	"regexp"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// NumericFormatTranslator rewrites calls to the pgsqlite-internal
// numeric_format(column) helper (emitted by clients that already know they
// are talking to pgsqlite) by replacing each call with its bare column
// argument, so the stored exact-decimal TEXT value is returned as is. No
// padding or truncation to the column's declared scale is applied, neither
// here nor when result rows are encoded.
type NumericFormatTranslator struct {
	Reg *catalog.Registry
}

var numericFormatCall = regexp.MustCompile(`(?i)numeric_format\(\s*([a-zA-Z_][a-zA-Z0-9_."]*)\s*\)`)

func (t *NumericFormatTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	if !numericFormatCall.MatchString(sql) {
		return sql, false, nil
	}
	// The column's declared scale is only known once the catalog has the
	// table in scope, which a regex match alone can't determine reliably for
	// every join shape, so the call is unwrapped to the raw TEXT value.
	out := numericFormatCall.ReplaceAllString(sql, "$1")
	return out, true, nil
}
