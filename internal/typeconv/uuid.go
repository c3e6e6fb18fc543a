package typeconv

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// uuidCoder: SQLite storage is canonical dashed TEXT.
type uuidCoder struct{}

func (uuidCoder) TextToStorage(text []byte) (any, error) {
	u, err := uuid.Parse(strings.TrimSpace(string(text)))
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type uuid: %q", text))
	}
	return u.String(), nil
}

func (uuidCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 16 {
		return nil, errUnsupportedBinary
	}
	u, err := uuid.FromBytes(bin)
	if err != nil {
		return nil, errUnsupportedBinary
	}
	return u.String(), nil
}

func (uuidCoder) StorageToText(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}

func (uuidCoder) StorageToBinary(v any) ([]byte, error) {
	u, err := uuid.Parse(toStringVal(v))
	if err != nil {
		return nil, err
	}
	b := u
	raw, _ := b.MarshalBinary()
	return raw, nil
}
