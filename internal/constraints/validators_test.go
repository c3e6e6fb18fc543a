package constraints_test

import (
	"strings"
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/constraints"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

func TestValidateStringLengthCountsRunesNotBytes(t *testing.T) {
	c := catalog.StringConstraint{MaxLength: 3}
	// 3 multi-byte runes, well under the byte-length limit but exactly at
	// the rune-length limit.
	if err := constraints.ValidateStringLength("日本語", c); err != nil {
		t.Fatalf("expected 3-rune value to fit VARCHAR(3), got %v", err)
	}
	if err := constraints.ValidateStringLength("日本語語", c); err == nil {
		t.Fatal("expected 4-rune value to exceed VARCHAR(3)")
	}
}

func TestValidateStringLengthUnboundedWhenZero(t *testing.T) {
	c := catalog.StringConstraint{MaxLength: 0}
	if err := constraints.ValidateStringLength(strings.Repeat("x", 10_000), c); err != nil {
		t.Fatalf("expected MaxLength 0 to mean unbounded, got %v", err)
	}
}

func TestValidateStringLengthErrorCode(t *testing.T) {
	c := catalog.StringConstraint{MaxLength: 1}
	err := constraints.ValidateStringLength("ab", c)
	if err == nil {
		t.Fatal("expected an error")
	}
	pgErr := pgerror.As(err)
	if pgErr.Code != pgerror.StringDataRightTruncation {
		t.Fatalf("expected SQLSTATE %s, got %s", pgerror.StringDataRightTruncation, pgErr.Code)
	}
}

func TestPadCharPadsToDeclaredLength(t *testing.T) {
	c := catalog.StringConstraint{MaxLength: 5, IsChar: true}
	got := constraints.PadChar("ab", c)
	if got != "ab   " {
		t.Fatalf("expected right-padded to 5 runes, got %q", got)
	}
}

func TestPadCharLeavesVarcharAlone(t *testing.T) {
	c := catalog.StringConstraint{MaxLength: 5, IsChar: false}
	got := constraints.PadChar("ab", c)
	if got != "ab" {
		t.Fatalf("expected varchar to be left unpadded, got %q", got)
	}
}

func TestValidateNumericScaleWithinPrecision(t *testing.T) {
	c := catalog.NumericConstraint{Precision: 5, Scale: 2}
	if err := constraints.ValidateNumericScale("123.45", c); err != nil {
		t.Fatalf("expected 123.45 to fit NUMERIC(5,2), got %v", err)
	}
}

func TestValidateNumericScaleOverflow(t *testing.T) {
	c := catalog.NumericConstraint{Precision: 5, Scale: 2}
	err := constraints.ValidateNumericScale("1234.56", c)
	if err == nil {
		t.Fatal("expected overflow for 1234.56 against NUMERIC(5,2)")
	}
	pgErr := pgerror.As(err)
	if pgErr.Code != pgerror.NumericValueOutOfRange {
		t.Fatalf("expected SQLSTATE %s, got %s", pgerror.NumericValueOutOfRange, pgErr.Code)
	}
}

func TestGenerateEnumTriggerEscapesQuotes(t *testing.T) {
	trigs := constraints.GenerateEnumTrigger("orders", "status", []string{"new", "it's open"})
	if len(trigs) != 2 {
		t.Fatalf("expected insert+update triggers, got %d", len(trigs))
	}
	for _, trig := range trigs {
		if !strings.Contains(trig, "it''s open") {
			t.Fatalf("expected escaped single quote in trigger body, got %q", trig)
		}
	}
}
