package typeconv

import (
	"bytes"
	"encoding/json"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// jsonCoder: storage is validated TEXT; jsonb's binary wire form carries a
// leading version byte (0x01) per spec.md §4.2.
type jsonCoder struct{ jsonb bool }

func (c jsonCoder) TextToStorage(text []byte) (any, error) {
	if !json.Valid(text) {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid input syntax for type json")
	}
	return string(text), nil
}

func (c jsonCoder) BinaryToStorage(bin []byte) (any, error) {
	if c.jsonb {
		if len(bin) < 1 || bin[0] != 1 {
			return nil, errUnsupportedBinary
		}
		bin = bin[1:]
	}
	if !json.Valid(bin) {
		return nil, errUnsupportedBinary
	}
	return string(bin), nil
}

func (c jsonCoder) StorageToText(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}

func (c jsonCoder) StorageToBinary(v any) ([]byte, error) {
	raw := []byte(toStringVal(v))
	if !c.jsonb {
		return raw, nil
	}
	var buf bytes.Buffer
	buf.WriteByte(1)
	buf.Write(raw)
	return buf.Bytes(), nil
}

// enumCoder: storage is the TEXT label; TextToStorage rejects labels outside
// the set the coder was registered with. No BEFORE INSERT/UPDATE trigger
// backs this up: constraints.GenerateEnumTrigger builds one, but CREATE
// TABLE translation does not install it.
type enumCoder struct{ valid map[string]bool }

func (c enumCoder) TextToStorage(text []byte) (any, error) {
	label := string(text)
	if c.valid != nil && !c.valid[label] {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, "invalid input value for enum")
	}
	return label, nil
}

func (c enumCoder) BinaryToStorage(bin []byte) (any, error) {
	return c.TextToStorage(bin)
}

func (c enumCoder) StorageToText(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}

func (c enumCoder) StorageToBinary(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}
