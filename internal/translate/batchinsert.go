package translate

import (
	"context"
	"regexp"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// BatchInsertTranslator handles PG's `ON CONFLICT ON CONSTRAINT name`
// upsert spelling, which SQLite does not support, by replacing it with a
// bare `ON CONFLICT` (no conflict target). SQLite understands the same
// `ON CONFLICT (cols) DO NOTHING/UPDATE` grammar PG does, so every other
// INSERT passes through unchanged.
type BatchInsertTranslator struct{}

var onConflictConstraint = regexp.MustCompile(`(?i)ON\s+CONFLICT\s+ON\s+CONSTRAINT\s+[a-zA-Z_][a-zA-Z0-9_]*`)

func (BatchInsertTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	if !onConflictConstraint.MatchString(sql) {
		return sql, false, nil
	}
	// Without the constraint's column list in scope here, degrade to a bare
	// ON CONFLICT (matches any unique/PK violation), which SQLite accepts;
	// exact constraint-name targeting is left as a follow-on catalog lookup.
	out := onConflictConstraint.ReplaceAllString(sql, "ON CONFLICT")
	return out, true, nil
}
