package translate

import (
	"context"
	"regexp"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// ReturningTranslator strips a trailing RETURNING clause SQLite's own
// INSERT/UPDATE/DELETE grammar does not support on the modernc.org/sqlite
// build pgsqlite targets, leaving the executor's fast-RETURNING tier (see
// internal/query) to recover the affected row(s) after the statement runs.
// It records the stripped column list and, for UPDATE/DELETE, the original
// WHERE predicate in a side value so the executor knows what to re-select
// without re-parsing -- last_insert_rowid() only identifies the row an
// INSERT touched, not the rows an UPDATE or DELETE's own WHERE clause
// selected.
type ReturningTranslator struct {
	// LastColumns captures the most recently stripped RETURNING column list.
	// The pipeline runs one statement at a time per goroutine, so this is
	// safe as instance state rather than needing a return value threaded
	// through the Translator interface.
	LastColumns []string
	LastStar    bool
	// LastWhere is the original WHERE predicate text of an UPDATE or DELETE
	// statement with RETURNING, empty for INSERT or for an UPDATE/DELETE with
	// no WHERE clause (matches every row).
	LastWhere string
}

var returningPattern = regexp.MustCompile(`(?i)\s+RETURNING\s+(.+)$`)
var dmlVerbPattern = regexp.MustCompile(`(?i)^\s*(INSERT|UPDATE|DELETE)\b`)
var wherePattern = regexp.MustCompile(`(?is)\sWHERE\s+(.+)$`)

func (t *ReturningTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	m := returningPattern.FindStringSubmatchIndex(sql)
	if m == nil {
		t.LastColumns = nil
		t.LastStar = false
		t.LastWhere = ""
		return sql, false, nil
	}
	clause := sql[m[2]:m[3]]
	t.LastStar = strings.TrimSpace(clause) == "*"
	if !t.LastStar {
		parts := strings.Split(clause, ",")
		t.LastColumns = nil
		for _, p := range parts {
			t.LastColumns = append(t.LastColumns, strings.TrimSpace(p))
		}
	} else {
		t.LastColumns = nil
	}
	out := sql[:m[0]]

	t.LastWhere = ""
	if vm := dmlVerbPattern.FindStringSubmatch(out); vm != nil {
		verb := strings.ToUpper(vm[1])
		if verb == "UPDATE" || verb == "DELETE" {
			if wm := wherePattern.FindStringSubmatchIndex(out); wm != nil {
				t.LastWhere = strings.TrimSpace(out[wm[2]:wm[3]])
			}
		}
	}
	return out, true, nil
}
