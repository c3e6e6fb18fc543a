package translate_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/translate"
)

func TestCastTranslatorRewritesScalarCast(t *testing.T) {
	tr := translate.CastTranslator{}
	out, changed, err := tr.Translate(context.Background(), "SELECT age::int FROM users", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	if out != "SELECT CAST(age AS INTEGER) FROM users" {
		t.Fatalf("unexpected rewrite: %q", out)
	}
}

func TestCastTranslatorLeavesRegclassAlone(t *testing.T) {
	tr := translate.CastTranslator{}
	out, changed, err := tr.Translate(context.Background(), "SELECT 'users'::regclass", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if changed {
		t.Fatalf("expected regclass casts to be left for the catalog layer, got %q", out)
	}
}

func TestCastTranslatorNoOpWithoutDoubleColon(t *testing.T) {
	tr := translate.CastTranslator{}
	out, changed, err := tr.Translate(context.Background(), "SELECT 1", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if changed || out != "SELECT 1" {
		t.Fatalf("expected no-op, got changed=%v out=%q", changed, out)
	}
}

func TestRegexTranslatorRewritesMatchOperators(t *testing.T) {
	tr := translate.RegexTranslator{}
	out, changed, err := tr.Translate(context.Background(), "SELECT * FROM t WHERE name ~ 'foo'", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	if !strings.Contains(out, "REGEXP") {
		t.Fatalf("expected REGEXP in output, got %q", out)
	}
}

func TestRegexTranslatorRewritesNegatedCaseInsensitive(t *testing.T) {
	tr := translate.RegexTranslator{}
	out, changed, err := tr.Translate(context.Background(), "SELECT * FROM t WHERE name !~* 'foo'", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if !changed || !strings.Contains(out, "NOT REGEXP_I") {
		t.Fatalf("expected NOT REGEXP_I rewrite, got changed=%v out=%q", changed, out)
	}
}

func TestReturningTranslatorStripsStarClause(t *testing.T) {
	tr := &translate.ReturningTranslator{}
	out, changed, err := tr.Translate(context.Background(), "INSERT INTO t (a) VALUES (1) RETURNING *", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	if out != "INSERT INTO t (a) VALUES (1)" {
		t.Fatalf("unexpected strip: %q", out)
	}
	if !tr.LastStar || len(tr.LastColumns) != 0 {
		t.Fatalf("expected LastStar=true with no columns, got star=%v cols=%v", tr.LastStar, tr.LastColumns)
	}
}

func TestReturningTranslatorCapturesColumnList(t *testing.T) {
	tr := &translate.ReturningTranslator{}
	out, _, err := tr.Translate(context.Background(), "UPDATE t SET a = 1 WHERE id = 2 RETURNING id, a", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "UPDATE t SET a = 1 WHERE id = 2" {
		t.Fatalf("unexpected strip: %q", out)
	}
	if tr.LastStar {
		t.Fatal("expected LastStar=false for an explicit column list")
	}
	if len(tr.LastColumns) != 2 || tr.LastColumns[0] != "id" || tr.LastColumns[1] != "a" {
		t.Fatalf("expected [id a], got %v", tr.LastColumns)
	}
}

func TestReturningTranslatorCapturesUpdateWhereClause(t *testing.T) {
	tr := &translate.ReturningTranslator{}
	_, _, err := tr.Translate(context.Background(), "UPDATE t SET x = 'c' WHERE id = 1 RETURNING x", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if tr.LastWhere != "id = 1" {
		t.Fatalf("expected captured predicate %q, got %q", "id = 1", tr.LastWhere)
	}
}

func TestReturningTranslatorDoesNotCaptureWhereForInsert(t *testing.T) {
	tr := &translate.ReturningTranslator{}
	_, _, err := tr.Translate(context.Background(), "INSERT INTO t (a) VALUES (1) RETURNING a", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if tr.LastWhere != "" {
		t.Fatalf("expected no captured predicate for INSERT, got %q", tr.LastWhere)
	}
}

func TestReturningTranslatorNoOpWithoutClause(t *testing.T) {
	tr := &translate.ReturningTranslator{}
	out, changed, err := tr.Translate(context.Background(), "DELETE FROM t WHERE id = 1", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if changed || out != "DELETE FROM t WHERE id = 1" {
		t.Fatalf("expected no-op, got changed=%v out=%q", changed, out)
	}
	if tr.LastStar || tr.LastColumns != nil {
		t.Fatalf("expected cleared state, got star=%v cols=%v", tr.LastStar, tr.LastColumns)
	}
}
