package typeconv

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// arrayCoder: storage is a JSON array TEXT string; text wire is the PG
// array literal grammar `{a,b,c}` / `{{a,b},{c,d}}`; binary wire is the PG
// array header followed by length-prefixed elements, per spec.md §4.2.
type arrayCoder struct {
	elem    Coder
	elemOID uint32
}

func (c arrayCoder) TextToStorage(text []byte) (any, error) {
	val, _, err := parsePGArrayLiteral(string(text), 0)
	if err != nil {
		return nil, err
	}
	storageVal, err := c.convertLiteralToStorage(val)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(storageVal)
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid array literal")
	}
	return string(b), nil
}

func (c arrayCoder) convertLiteralToStorage(v any) (any, error) {
	switch e := v.(type) {
	case []any:
		out := make([]any, len(e))
		for i, sub := range e {
			conv, err := c.convertLiteralToStorage(sub)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case *string:
		if e == nil {
			return nil, nil
		}
		sv, err := c.elem.TextToStorage([]byte(*e))
		if err != nil {
			return nil, err
		}
		return sv, nil
	case nil:
		return nil, nil
	default:
		return e, nil
	}
}

func (c arrayCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) < 12 {
		return nil, errUnsupportedBinary
	}
	ndim := int(binary.BigEndian.Uint32(bin[0:4]))
	off := 4 + 4 + 4 // ndim, hasnull flag, elemtype oid
	dims := make([]int, ndim)
	for i := 0; i < ndim; i++ {
		dims[i] = int(binary.BigEndian.Uint32(bin[off : off+4]))
		off += 8 // dim size + lower bound
	}
	flat := make([]any, 0)
	for {
		if off >= len(bin) {
			break
		}
		l := int(int32(binary.BigEndian.Uint32(bin[off : off+4])))
		off += 4
		if l < 0 {
			flat = append(flat, nil)
			continue
		}
		elemBin := bin[off : off+l]
		off += l
		sv, err := c.elem.BinaryToStorage(elemBin)
		if err != nil {
			return nil, err
		}
		flat = append(flat, sv)
	}
	nested := nestFlat(flat, dims)
	b, err := json.Marshal(nested)
	if err != nil {
		return nil, errUnsupportedBinary
	}
	return string(b), nil
}

func nestFlat(flat []any, dims []int) any {
	if len(dims) <= 1 {
		return flat
	}
	size := dims[0]
	rest := len(flat) / max(size, 1)
	out := make([]any, size)
	for i := 0; i < size; i++ {
		out[i] = nestFlat(flat[i*rest:(i+1)*rest], dims[1:])
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (c arrayCoder) StorageToText(v any) ([]byte, error) {
	var decoded any
	if err := json.Unmarshal([]byte(toStringVal(v)), &decoded); err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "corrupt array storage")
	}
	var sb strings.Builder
	if err := c.writeLiteral(&sb, decoded); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func (c arrayCoder) writeLiteral(sb *strings.Builder, v any) error {
	switch e := v.(type) {
	case []any:
		sb.WriteByte('{')
		for i, sub := range e {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := c.writeLiteral(sb, sub); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
		return nil
	case nil:
		sb.WriteString("NULL")
		return nil
	default:
		txt, err := c.elem.StorageToText(jsonScalarToStorage(e))
		if err != nil {
			return err
		}
		sb.WriteString(quoteArrayElement(string(txt)))
		return nil
	}
}

func jsonScalarToStorage(v any) any {
	if f, ok := v.(float64); ok {
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	}
	return v
}

func quoteArrayElement(s string) string {
	needsQuote := s == "" || strings.ContainsAny(s, `{}",\ `) || strings.EqualFold(s, "NULL")
	if !needsQuote {
		return s
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

func (c arrayCoder) StorageToBinary(v any) ([]byte, error) {
	var decoded any
	if err := json.Unmarshal([]byte(toStringVal(v)), &decoded); err != nil {
		return nil, errUnsupportedBinary
	}
	dims := arrayDims(decoded)
	var flat []any
	collectFlat(decoded, &flat)

	hasNull := 0
	for _, e := range flat {
		if e == nil {
			hasNull = 1
			break
		}
	}

	buf := make([]byte, 12+8*len(dims))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(dims)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(hasNull))
	binary.BigEndian.PutUint32(buf[8:12], c.elemOID)
	off := 12
	for _, d := range dims {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(d))
		binary.BigEndian.PutUint32(buf[off+4:off+8], 1)
		off += 8
	}

	for _, e := range flat {
		if e == nil {
			lenBuf := make([]byte, 4)
			binary.BigEndian.PutUint32(lenBuf, uint32(int32(-1)))
			buf = append(buf, lenBuf...)
			continue
		}
		eb, err := c.elem.StorageToBinary(jsonScalarToStorage(e))
		if err != nil {
			return nil, err
		}
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(eb)))
		buf = append(buf, lenBuf...)
		buf = append(buf, eb...)
	}
	return buf, nil
}

func arrayDims(v any) []int {
	var dims []int
	cur := v
	for {
		arr, ok := cur.([]any)
		if !ok {
			break
		}
		dims = append(dims, len(arr))
		if len(arr) == 0 {
			break
		}
		cur = arr[0]
	}
	if len(dims) == 0 {
		dims = []int{0}
	}
	return dims
}

func collectFlat(v any, out *[]any) {
	if arr, ok := v.([]any); ok {
		for _, e := range arr {
			collectFlat(e, out)
		}
		return
	}
	*out = append(*out, v)
}

// parsePGArrayLiteral parses the `{a,b,"c d",NULL,{nested}}` grammar into
// a tree of []any / *string(nil for NULL) / *string values, returning the
// position just past the closing brace.
func parsePGArrayLiteral(s string, pos int) (any, int, error) {
	s = strings.TrimSpace(s)
	if pos >= len(s) || s[pos] != '{' {
		return nil, pos, pgerror.New(pgerror.InvalidTextRepresentation, "malformed array literal")
	}
	pos++
	var elems []any
	for pos < len(s) {
		if s[pos] == '}' {
			pos++
			return elems, pos, nil
		}
		if s[pos] == ',' {
			pos++
			continue
		}
		if s[pos] == '{' {
			sub, next, err := parsePGArrayLiteral(s, pos)
			if err != nil {
				return nil, pos, err
			}
			elems = append(elems, sub)
			pos = next
			continue
		}
		if s[pos] == '"' {
			val, next, err := parseQuotedElement(s, pos)
			if err != nil {
				return nil, pos, err
			}
			elems = append(elems, &val)
			pos = next
			continue
		}
		start := pos
		for pos < len(s) && s[pos] != ',' && s[pos] != '}' {
			pos++
		}
		tok := s[start:pos]
		if strings.EqualFold(tok, "NULL") {
			elems = append(elems, nil)
		} else {
			cp := tok
			elems = append(elems, &cp)
		}
	}
	return nil, pos, pgerror.New(pgerror.InvalidTextRepresentation, "unterminated array literal")
}

func parseQuotedElement(s string, pos int) (string, int, error) {
	pos++ // skip opening quote
	var sb strings.Builder
	for pos < len(s) {
		if s[pos] == '\\' && pos+1 < len(s) {
			sb.WriteByte(s[pos+1])
			pos += 2
			continue
		}
		if s[pos] == '"' {
			return sb.String(), pos + 1, nil
		}
		sb.WriteByte(s[pos])
		pos++
	}
	return "", pos, fmt.Errorf("unterminated quoted array element")
}
