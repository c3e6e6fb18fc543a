package typeconv

import (
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// rangeCoder: storage is the canonical PG range literal TEXT, e.g. "[1,10)"
// or "empty". Binary wire is a flags byte followed by length-prefixed lower
// and upper bound values, per spec.md §4.2's range rules.
type rangeCoder struct{ elemOID uint32 }

const (
	rangeEmpty     = 0x01
	rangeLBInc     = 0x02
	rangeUBInc     = 0x04
	rangeLBInf     = 0x08
	rangeUBInf     = 0x10
)

func (c rangeCoder) elemCoder() Coder {
	switch c.elemOID {
	case OIDInt4:
		return intCoder{bits: 32}
	case OIDInt8:
		return intCoder{bits: 64}
	default:
		return numericCoder{}
	}
}

func (c rangeCoder) TextToStorage(text []byte) (any, error) {
	s := strings.TrimSpace(string(text))
	if strings.EqualFold(s, "empty") {
		return "empty", nil
	}
	if len(s) < 2 {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid input syntax for range")
	}
	lowerInc := s[0] == '['
	upperInc := s[len(s)-1] == ']'
	inner := s[1 : len(s)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid input syntax for range")
	}
	lower, upper := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	elem := c.elemCoder()
	if lower != "" {
		if _, err := elem.TextToStorage([]byte(lower)); err != nil {
			return nil, err
		}
	}
	if upper != "" {
		if _, err := elem.TextToStorage([]byte(upper)); err != nil {
			return nil, err
		}
	}
	lb := "["
	if !lowerInc {
		lb = "("
	}
	ub := "]"
	if !upperInc {
		ub = ")"
	}
	return lb + lower + "," + upper + ub, nil
}

func (c rangeCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) < 1 {
		return nil, errUnsupportedBinary
	}
	flags := bin[0]
	if flags&rangeEmpty != 0 {
		return "empty", nil
	}
	off := 1
	elem := c.elemCoder()
	lower, upper := "", ""
	if flags&rangeLBInf == 0 {
		if off+4 > len(bin) {
			return nil, errUnsupportedBinary
		}
		l := int(int32From(bin[off : off+4]))
		off += 4
		v, err := elem.BinaryToStorage(bin[off : off+l])
		if err != nil {
			return nil, err
		}
		off += l
		t, err := elem.StorageToText(v)
		if err != nil {
			return nil, err
		}
		lower = string(t)
	}
	if flags&rangeUBInf == 0 {
		if off+4 > len(bin) {
			return nil, errUnsupportedBinary
		}
		l := int(int32From(bin[off : off+4]))
		off += 4
		v, err := elem.BinaryToStorage(bin[off : off+l])
		if err != nil {
			return nil, err
		}
		off += l
		t, err := elem.StorageToText(v)
		if err != nil {
			return nil, err
		}
		upper = string(t)
	}
	lb := "("
	if flags&rangeLBInc != 0 {
		lb = "["
	}
	ub := ")"
	if flags&rangeUBInc != 0 {
		ub = "]"
	}
	return lb + lower + "," + upper + ub, nil
}

func int32From(b []byte) int32 {
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

func (c rangeCoder) StorageToText(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}

func (c rangeCoder) StorageToBinary(v any) ([]byte, error) {
	s := toStringVal(v)
	if strings.EqualFold(s, "empty") {
		return []byte{rangeEmpty}, nil
	}
	if len(s) < 2 {
		return nil, errUnsupportedBinary
	}
	lowerInc := s[0] == '['
	upperInc := s[len(s)-1] == ']'
	inner := s[1 : len(s)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return nil, errUnsupportedBinary
	}
	lower, upper := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	elem := c.elemCoder()

	var flags byte
	if lowerInc {
		flags |= rangeLBInc
	}
	if upperInc {
		flags |= rangeUBInc
	}
	if lower == "" {
		flags |= rangeLBInf
	}
	if upper == "" {
		flags |= rangeUBInf
	}

	buf := []byte{flags}
	if lower != "" {
		sv, err := elem.TextToStorage([]byte(lower))
		if err != nil {
			return nil, err
		}
		eb, err := elem.StorageToBinary(sv)
		if err != nil {
			return nil, err
		}
		buf = append(buf, putInt32(len(eb))...)
		buf = append(buf, eb...)
	}
	if upper != "" {
		sv, err := elem.TextToStorage([]byte(upper))
		if err != nil {
			return nil, err
		}
		eb, err := elem.StorageToBinary(sv)
		if err != nil {
			return nil, err
		}
		buf = append(buf, putInt32(len(eb))...)
		buf = append(buf, eb...)
	}
	return buf, nil
}

func putInt32(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}
