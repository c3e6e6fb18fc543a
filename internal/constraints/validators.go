// Package constraints enforces the PG column constraints SQLite's own
// affinity system cannot express on its own: VARCHAR/CHAR length (counted
// in Unicode scalar values, matching PG's character semantics rather than
// byte length), NUMERIC(p,s) precision/scale overflow, and ENUM label
// validity. Grounded on the teacher's internal/rbac/checker.go style of a
// small stateless Check(...) function per rule, generalized from
// role-permission checks to column-value checks.
package constraints

import (
	"unicode/utf8"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

// ValidateStringLength enforces VARCHAR(n)/CHAR(n), counting Unicode scalar
// values (runes) the way PG's character_length() does, not bytes.
func ValidateStringLength(value string, c catalog.StringConstraint) error {
	if c.MaxLength <= 0 {
		return nil
	}
	n := utf8.RuneCountInString(value)
	if n > c.MaxLength {
		return pgerror.StringTooLong("varchar", c.MaxLength)
	}
	return nil
}

// PadChar right-pads a CHAR(n) value with spaces to exactly n scalar
// values, PG's blank-padded semantics for the `char`/`bpchar` type.
func PadChar(value string, c catalog.StringConstraint) string {
	if !c.IsChar || c.MaxLength <= 0 {
		return value
	}
	n := utf8.RuneCountInString(value)
	if n >= c.MaxLength {
		return value
	}
	pad := make([]byte, c.MaxLength-n)
	for i := range pad {
		pad[i] = ' '
	}
	return value + string(pad)
}

// ValidateNumericScale enforces NUMERIC(p,s): the decimal's integer-digit
// count must fit in p-s digits once rounded to s fractional digits.
func ValidateNumericScale(decimal string, c catalog.NumericConstraint) error {
	scaled := typeconv.FormatScaled(decimal, c.Scale)
	intDigits, _ := typeconv.DigitCounts(scaled)
	// Rounding half up to s digits adds an integer digit only when every
	// kept significant digit is 9 and the first dropped digit is 5 or more
	// (99.995 at scale 2 rounds to 100.00).
	if next := typeconv.FormatScaled(decimal, c.Scale+1); c.Scale >= 0 && next[len(next)-1] >= '5' {
		nines, significant := true, false
		for _, d := range []byte(scaled) {
			if d >= '1' && d <= '9' || significant && d == '0' {
				significant = true
				nines = nines && d == '9'
			}
		}
		if significant && nines {
			intDigits++
		}
	}
	maxIntDigits := c.Precision - c.Scale
	if maxIntDigits < 0 {
		maxIntDigits = 0
	}
	if intDigits > maxIntDigits {
		return pgerror.NumericOverflow(c.Precision, c.Scale)
	}
	return nil
}

// GenerateEnumTrigger builds the BEFORE INSERT/UPDATE triggers that enforce
// ENUM label validity -- the authoritative check, since
// internal/typeconv's enumCoder only validates best-effort against the
// label set it was constructed with at prepare time, which can be stale if
// a concurrent session altered the enum.
func GenerateEnumTrigger(table, column string, labels []string) []string {
	inList := ""
	for i, l := range labels {
		if i > 0 {
			inList += ", "
		}
		inList += "'" + escapeSingleQuotes(l) + "'"
	}
	insertTrig := "CREATE TRIGGER IF NOT EXISTS " + quoteIdent(table+"_"+column+"_enum_ins") +
		" BEFORE INSERT ON " + quoteIdent(table) +
		" WHEN NEW." + quoteIdent(column) + " IS NOT NULL AND NEW." + quoteIdent(column) + " NOT IN (" + inList + ")" +
		" BEGIN SELECT RAISE(ABORT, 'invalid input value for enum " + column + "'); END"
	updateTrig := "CREATE TRIGGER IF NOT EXISTS " + quoteIdent(table+"_"+column+"_enum_upd") +
		" BEFORE UPDATE OF " + quoteIdent(column) + " ON " + quoteIdent(table) +
		" WHEN NEW." + quoteIdent(column) + " IS NOT NULL AND NEW." + quoteIdent(column) + " NOT IN (" + inList + ")" +
		" BEGIN SELECT RAISE(ABORT, 'invalid input value for enum " + column + "'); END"
	return []string{insertTrig, updateTrig}
}

func escapeSingleQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func quoteIdent(s string) string {
	return `"` + escapeDoubleQuotes(s) + `"`
}

func escapeDoubleQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
