package pgerror_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

func TestErrorStringIncludesDetailWhenPresent(t *testing.T) {
	e := pgerror.New(pgerror.SyntaxError, "syntax error near \"x\"")
	if strings.Contains(e.Error(), "(") {
		t.Fatalf("expected no parenthesized detail without one set, got %q", e.Error())
	}
	e.Detail = "at or near column 3"
	if !strings.Contains(e.Error(), e.Detail) {
		t.Fatalf("expected detail in error string, got %q", e.Error())
	}
}

func TestFatalSetsSeverity(t *testing.T) {
	e := pgerror.Fatal(pgerror.ProtocolViolation, "bad message")
	if e.Severity != "FATAL" {
		t.Fatalf("expected FATAL severity, got %q", e.Severity)
	}
}

func TestDetailfDoesNotMutateOriginal(t *testing.T) {
	base := pgerror.New(pgerror.UndefinedColumn, "column does not exist")
	derived := pgerror.Detailf(base, "column %q", "foo")
	if base.Detail != "" {
		t.Fatalf("expected original error to be unmodified, got detail %q", base.Detail)
	}
	if derived.Detail != `column "foo"` {
		t.Fatalf("unexpected derived detail: %q", derived.Detail)
	}
}

func TestNumericOverflowFormatsDetail(t *testing.T) {
	e := pgerror.NumericOverflow(5, 2)
	if e.Code != pgerror.NumericValueOutOfRange {
		t.Fatalf("expected %s, got %s", pgerror.NumericValueOutOfRange, e.Code)
	}
	if !strings.Contains(e.Detail, "10^3") {
		t.Fatalf("expected precision-scale exponent in detail, got %q", e.Detail)
	}
}

func TestAsPassesThroughExistingError(t *testing.T) {
	orig := pgerror.New(pgerror.UniqueViolation, "duplicate key")
	if pgerror.As(orig) != orig {
		t.Fatal("expected As to return the same *Error instance unchanged")
	}
}

func TestAsWrapsGenericErrorAsInternal(t *testing.T) {
	wrapped := pgerror.As(errors.New("boom"))
	if wrapped.Code != pgerror.Internal {
		t.Fatalf("expected Internal code for a generic error, got %s", wrapped.Code)
	}
	if wrapped.Message != "boom" {
		t.Fatalf("expected message to carry through, got %q", wrapped.Message)
	}
}

func TestAsNilIsNil(t *testing.T) {
	if pgerror.As(nil) != nil {
		t.Fatal("expected As(nil) to return nil")
	}
}
