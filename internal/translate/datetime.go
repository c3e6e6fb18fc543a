package translate

import (
	"context"
	"regexp"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// DatetimeTranslator rewrites PG's datetime functions/keywords into the
// SQLite strftime-based microsecond-integer expressions that match the
// storage convention internal/typeconv's date/time coders use, so a column
// compared against now() compares correctly as two integers instead of two
// incompatible text formats.
type DatetimeTranslator struct{}

var nowPattern = regexp.MustCompile(`(?i)\b(?:now\s*\(\s*\)|CURRENT_TIMESTAMP\b)`)
var curDatePattern = regexp.MustCompile(`(?i)\bCURRENT_DATE\b`)
var curTimePattern = regexp.MustCompile(`(?i)\bCURRENT_TIME\b`)

const nowMicrosExpr = "(CAST(strftime('%s', 'now') AS INTEGER) * 1000000)"
const curDateExpr = "(CAST(julianday('now') - 2440587.5 AS INTEGER))"
const curTimeMicrosExpr = "((CAST(strftime('%H','now') AS INTEGER)*3600 + CAST(strftime('%M','now') AS INTEGER)*60 + CAST(strftime('%S','now') AS INTEGER)) * 1000000)"

func (DatetimeTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	out := sql
	changed := false
	if nowPattern.MatchString(out) {
		out = nowPattern.ReplaceAllString(out, nowMicrosExpr)
		changed = true
	}
	if curDatePattern.MatchString(out) {
		out = curDatePattern.ReplaceAllString(out, curDateExpr)
		changed = true
	}
	if curTimePattern.MatchString(out) {
		out = curTimePattern.ReplaceAllString(out, curTimeMicrosExpr)
		changed = true
	}
	if !changed {
		return sql, false, nil
	}
	return out, true, nil
}
