package executor

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

// CopyTarget describes a COPY statement's destination table, explicit
// column list (nil means "all columns, declaration order"), and direction,
// as classified by ClassifyCopy.
type CopyTarget struct {
	Table    string
	Columns  []string
	ToStdout bool
}

// copyPattern recognizes the subset of COPY this package streams directly
// over CopyData: text-format (the PG default, no WITH clause support
// beyond what's ignored below) COPY <table> [(<cols>)] FROM STDIN/TO
// STDOUT. Anything else (COPY ... query TO STDOUT, BINARY/CSV format,
// COPY to/from a server-side file) is left to fall through to the normal
// SimpleQuery path, which reports it as an ordinary syntax/unsupported
// error rather than hanging the client.
var copyPattern = regexp.MustCompile(`(?is)^\s*COPY\s+"?([A-Za-z_][A-Za-z0-9_]*)"?\s*(?:\(([^)]*)\))?\s+(FROM\s+STDIN|TO\s+STDOUT)\b`)

// ClassifyCopy reports whether stmt is a COPY ... FROM STDIN/TO STDOUT
// statement this executor can stream, and if so its parsed target.
func ClassifyCopy(stmt string) (CopyTarget, bool) {
	m := copyPattern.FindStringSubmatch(stmt)
	if m == nil {
		return CopyTarget{}, false
	}
	var cols []string
	if strings.TrimSpace(m[2]) != "" {
		for _, c := range strings.Split(m[2], ",") {
			cols = append(cols, stripQuotes(strings.TrimSpace(c)))
		}
	}
	return CopyTarget{
		Table:    stripQuotes(m[1]),
		Columns:  cols,
		ToStdout: strings.HasPrefix(strings.ToUpper(strings.TrimSpace(m[3])), "TO"),
	}, true
}

// resolveColumns returns target's explicit column list, or the table's
// full declaration-order column list when COPY named none.
func (e *Executor) resolveColumns(ctx context.Context, target CopyTarget) ([]string, error) {
	if len(target.Columns) > 0 {
		return target.Columns, nil
	}
	cols, err := e.sess.Catalog.TableColumns(ctx, target.Table)
	if err != nil {
		return nil, err
	}
	return orderedColumnNames(cols), nil
}

// PrepareCopyIn resolves target's column list and builds the
// CopyInResponse announcing all-text-format columns, matching pgproto3's
// CopyInResponse shape the pack's other backends send before reading
// CopyData.
func (e *Executor) PrepareCopyIn(ctx context.Context, target CopyTarget) (*pgproto3.CopyInResponse, []string, error) {
	cols, err := e.resolveColumns(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	return &pgproto3.CopyInResponse{
		OverallFormat: 0,
		ColumnFormats: make([]int16, len(cols)),
	}, cols, nil
}

// CopyInRow parses one COPY text-format line (tab-separated, \N for NULL)
// and inserts it into table under cols.
func (e *Executor) CopyInRow(ctx context.Context, table string, cols []string, line string) error {
	values := decodeCopyTextRow(line)
	if len(values) != len(cols) {
		return pgerror.New(pgerror.BadCopyFileFormat,
			fmt.Sprintf("row has %d columns, expected %d", len(values), len(cols)))
	}
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	_, err := e.execWithConstraints(ctx, sqlText, values)
	return err
}

// PrepareCopyOut resolves target's column list and builds the
// CopyOutResponse announcing all-text-format columns.
func (e *Executor) PrepareCopyOut(ctx context.Context, target CopyTarget) (*pgproto3.CopyOutResponse, []string, error) {
	cols, err := e.resolveColumns(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	return &pgproto3.CopyOutResponse{
		OverallFormat: 0,
		ColumnFormats: make([]int16, len(cols)),
	}, cols, nil
}

// OpenCopyOut runs the SELECT backing a COPY ... TO STDOUT over cols.
func (e *Executor) OpenCopyOut(ctx context.Context, table string, cols []string) (*sql.Rows, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	sqlText := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteIdent(table))
	return e.sess.DB().QueryContext(ctx, sqlText)
}

// ScanCopyOutRow scans the current row of rows (already advanced via
// rows.Next) and encodes it as one COPY text-format line, without the
// trailing newline.
func (e *Executor) ScanCopyOutRow(rows *sql.Rows, n int) (string, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return "", err
	}
	return encodeCopyTextRow(vals), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// decodeCopyTextRow splits a COPY text-format line into its per-column
// values, honoring \N as NULL and the standard backslash escapes.
func decodeCopyTextRow(line string) []any {
	fields := strings.Split(line, "\t")
	out := make([]any, len(fields))
	for i, f := range fields {
		if f == `\N` {
			out[i] = nil
			continue
		}
		out[i] = unescapeCopyText(f)
	}
	return out
}

func unescapeCopyText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// encodeCopyTextRow is unescapeCopyText's inverse, used for COPY TO
// STDOUT: NULL becomes \N, and tab/newline/backslash are escaped so the
// line remains a single tab-delimited record.
func encodeCopyTextRow(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			parts[i] = `\N`
			continue
		}
		parts[i] = escapeCopyText(typeconv.ToDisplayString(v))
	}
	return strings.Join(parts, "\t")
}

var copyTextEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func escapeCopyText(s string) string {
	return copyTextEscaper.Replace(s)
}
