package typeconv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// boolCoder: SQLite storage is INTEGER 0/1.
type boolCoder struct{}

func (boolCoder) TextToStorage(text []byte) (any, error) {
	switch string(text) {
	case "t", "true", "1", "yes", "y", "on":
		return int64(1), nil
	case "f", "false", "0", "no", "n", "off":
		return int64(0), nil
	}
	return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type boolean: %q", text))
}

func (boolCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 1 {
		return nil, errUnsupportedBinary
	}
	if bin[0] == 0 {
		return int64(0), nil
	}
	return int64(1), nil
}

func (boolCoder) StorageToText(v any) ([]byte, error) {
	if toInt64(v) != 0 {
		return []byte("t"), nil
	}
	return []byte("f"), nil
}

func (boolCoder) StorageToBinary(v any) ([]byte, error) {
	if toInt64(v) != 0 {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

// intCoder handles int2/int4/int8, storage is always INTEGER (int64).
type intCoder struct{ bits int }

func (c intCoder) TextToStorage(text []byte) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(text)), 10, 64)
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for integer: %q", text))
	}
	return n, nil
}

func (c intCoder) BinaryToStorage(bin []byte) (any, error) {
	switch c.bits {
	case 16:
		if len(bin) != 2 {
			return nil, errUnsupportedBinary
		}
		return int64(int16(binary.BigEndian.Uint16(bin))), nil
	case 32:
		if len(bin) != 4 {
			return nil, errUnsupportedBinary
		}
		return int64(int32(binary.BigEndian.Uint32(bin))), nil
	default:
		if len(bin) != 8 {
			return nil, errUnsupportedBinary
		}
		return int64(binary.BigEndian.Uint64(bin)), nil
	}
}

func (c intCoder) StorageToText(v any) ([]byte, error) {
	return []byte(strconv.FormatInt(toInt64(v), 10)), nil
}

func (c intCoder) StorageToBinary(v any) ([]byte, error) {
	n := toInt64(v)
	switch c.bits {
	case 16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(n)))
		return buf, nil
	case 32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(n)))
		return buf, nil
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(n))
		return buf, nil
	}
}

// floatCoder handles float4/float8, storage is REAL (float64).
type floatCoder struct{ bits int }

func (c floatCoder) TextToStorage(text []byte) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(text)), 64)
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for float: %q", text))
	}
	return f, nil
}

func (c floatCoder) BinaryToStorage(bin []byte) (any, error) {
	if c.bits == 32 {
		if len(bin) != 4 {
			return nil, errUnsupportedBinary
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(bin))), nil
	}
	if len(bin) != 8 {
		return nil, errUnsupportedBinary
	}
	return math.Float64frombits(binary.BigEndian.Uint64(bin)), nil
}

func (c floatCoder) StorageToText(v any) ([]byte, error) {
	bits := 64
	if c.bits == 32 {
		bits = 32
	}
	return []byte(strconv.FormatFloat(toFloat64(v), 'g', -1, bits)), nil
}

func (c floatCoder) StorageToBinary(v any) ([]byte, error) {
	f := toFloat64(v)
	if c.bits == 32 {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf, nil
}

// textCoder handles text/varchar/char/bpchar and stores values as given.
// No CHAR padding is applied here; constraints.PadChar implements it, but
// the write path does not call it.
type textCoder struct{}

func (textCoder) TextToStorage(text []byte) (any, error) { return string(text), nil }
func (textCoder) BinaryToStorage(bin []byte) (any, error) { return string(bin), nil }
func (textCoder) StorageToText(v any) ([]byte, error)     { return []byte(toStringVal(v)), nil }
func (textCoder) StorageToBinary(v any) ([]byte, error)   { return []byte(toStringVal(v)), nil }

// byteaCoder: SQLite storage is BLOB.
type byteaCoder struct{}

func (byteaCoder) TextToStorage(text []byte) (any, error) {
	s := string(text)
	if strings.HasPrefix(s, `\x`) {
		return hexDecode(s[2:])
	}
	return unescapeBytea(s), nil
}

func (byteaCoder) BinaryToStorage(bin []byte) (any, error) {
	cp := make([]byte, len(bin))
	copy(cp, bin)
	return cp, nil
}

func (byteaCoder) StorageToText(v any) ([]byte, error) {
	b := toBytes(v)
	return []byte(`\x` + hexEncode(b)), nil
}

func (byteaCoder) StorageToBinary(v any) ([]byte, error) {
	return toBytes(v), nil
}

// moneyCoder: stores text as supplied; binary is int64 cents, which
// BinaryToStorage formats as grouped "$1,234.56" text.
type moneyCoder struct{}

func (moneyCoder) TextToStorage(text []byte) (any, error) { return string(text), nil }
func (moneyCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 8 {
		return nil, errUnsupportedBinary
	}
	cents := int64(binary.BigEndian.Uint64(bin))
	return formatMoney(cents), nil
}
func (moneyCoder) StorageToText(v any) ([]byte, error) { return []byte(toStringVal(v)), nil }
func (moneyCoder) StorageToBinary(v any) ([]byte, error) {
	cents, err := parseMoneyCents(toStringVal(v))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(cents))
	return buf, nil
}

func formatMoney(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100
	s := fmt.Sprintf("$%s.%02d", groupThousands(whole), frac)
	if neg {
		return "-" + s
	}
	return s
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

func parseMoneyCents(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for money: %q", s))
	}
	return int64(math.Round(f * 100)), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// ToDisplayString renders a storage value as text for result sets whose
// column OID has no registered coder (catalog-synthesized rows pass OID 0
// for columns this package doesn't model, e.g. regclass-shaped values).
func ToDisplayString(v any) string {
	return toStringVal(v)
}

func toStringVal(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return nil
	}
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid hex bytea")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err1 := hexVal(s[i*2])
		lo, err2 := hexVal(s[i*2+1])
		if err1 != nil || err2 != nil {
			return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid hex bytea")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, fmt.Errorf("bad hex digit")
}

func unescapeBytea(s string) []byte {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) {
			v := (s[i+1]-'0')*64 + (s[i+2]-'0')*8 + (s[i+3] - '0')
			out = append(out, v)
			i += 3
			continue
		}
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		out = append(out, s[i])
	}
	return out
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
