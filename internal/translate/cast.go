package translate

import (
	"context"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// CastTranslator rewrites PG's postfix cast operator (`expr::type`) into
// SQLite's CAST(expr AS affinity), since SQLite's parser has no `::` token.
// A byte/regex pass is enough here: the postfix cast is lexically
// unambiguous (an identifier or closing paren immediately followed by `::`
// and a type name), unlike CREATE TABLE's column grammar which needs a real
// parse.
type CastTranslator struct{}

// affinityFor maps a PG type name appearing after `::` to the SQLite
// affinity CAST understands; unknown names degrade to TEXT rather than
// failing the whole statement, since CAST(x AS sometype) is accepted by
// SQLite for any type word.
func affinityFor(pgType string) string {
	t := strings.ToLower(strings.TrimSpace(pgType))
	switch {
	case strings.HasPrefix(t, "int") || t == "bigint" || t == "smallint" || t == "serial" || t == "bigserial" || t == "bool" || t == "boolean":
		return "INTEGER"
	case strings.HasPrefix(t, "float") || t == "real" || t == "double precision" || t == "numeric" || t == "decimal" || t == "money":
		return "REAL"
	case t == "bytea":
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (CastTranslator) Translate(ctx context.Context, sql string, reg *catalog.Registry) (string, bool, error) {
	if !strings.Contains(sql, "::") {
		return sql, false, nil
	}
	// regclass/regtype casts are left for the catalog functions layer
	// (to_regclass); only scalar-affinity casts are rewritten here.
	out := wrapCasts(sql)
	return out, out != sql, nil
}

// wrapCasts performs the actual expr::type -> CAST(expr AS affinity)
// rewrite in one left-to-right pass over the text; finding the left operand
// of `::` scans backward over the output built so far (see lastOperand).
func wrapCasts(sql string) string {
	var sb strings.Builder
	i := 0
	for i < len(sql) {
		if i+1 < len(sql) && sql[i] == ':' && sql[i+1] == ':' {
			left := sb.String()
			operand, consumed := lastOperand(left)
			typeStart := i + 2
			j := typeStart
			for j < len(sql) && isIdentByte(sql[j]) {
				j++
			}
			// second word of the two-word type names
			for _, w := range []string{" precision", " varying"} {
				if strings.HasPrefix(strings.ToLower(sql[j:]), w) {
					j += len(w)
					break
				}
			}
			// trailing array brackets
			for j+1 < len(sql) && sql[j] == '[' && sql[j+1] == ']' {
				j += 2
			}
			typ := strings.TrimSpace(sql[typeStart:j])
			if strings.EqualFold(typ, "regclass") || strings.EqualFold(typ, "regtype") {
				sb.WriteString("::")
				i += 2
				continue
			}
			newLeft := left[:len(left)-consumed]
			sb.Reset()
			sb.WriteString(newLeft)
			sb.WriteString("CAST(")
			sb.WriteString(operand)
			sb.WriteString(" AS ")
			sb.WriteString(affinityFor(typ))
			sb.WriteString(")")
			i = j
			continue
		}
		sb.WriteByte(sql[i])
		i++
	}
	return sb.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// lastOperand returns the trailing balanced-paren group or bare identifier
// (and single-quoted literal) at the end of s, plus how many bytes of s it
// consumed.
func lastOperand(s string) (string, int) {
	if s == "" {
		return "", 0
	}
	i := len(s)
	if s[i-1] == ')' {
		depth := 0
		j := i
		for j > 0 {
			j--
			if s[j] == ')' {
				depth++
			} else if s[j] == '(' {
				depth--
				if depth == 0 {
					return s[j:i], i - j
				}
			}
		}
		return s, i
	}
	if s[i-1] == '\'' {
		j := i - 1
		for j > 0 {
			j--
			if s[j] == '\'' {
				return s[j:i], i - j
			}
		}
		return s, i
	}
	j := i
	for j > 0 && isIdentByte(s[j-1]) {
		j--
	}
	if j == i {
		return "", 0
	}
	return s[j:i], i - j
}
