package typeconv_test

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

func TestJSONCoderRejectsInvalidJSON(t *testing.T) {
	c := lookup(t, typeconv.OIDJSON)
	if _, err := c.TextToStorage([]byte("{not json")); err == nil {
		t.Fatal("expected an error for invalid JSON text")
	}
}

func TestJSONBCoderBinaryStripsVersionByte(t *testing.T) {
	c := lookup(t, typeconv.OIDJSONB)
	storage, err := c.BinaryToStorage([]byte{1, '{', '}'})
	if err != nil {
		t.Fatalf("BinaryToStorage: %v", err)
	}
	if storage != "{}" {
		t.Fatalf("expected the version byte stripped, got %v", storage)
	}
}

func TestJSONBCoderRejectsUnknownVersionByte(t *testing.T) {
	c := lookup(t, typeconv.OIDJSONB)
	if _, err := c.BinaryToStorage([]byte{2, '{', '}'}); err == nil {
		t.Fatal("expected an error for an unrecognized jsonb version byte")
	}
}

func TestRegisterEnumAcceptsValidLabel(t *testing.T) {
	reg := typeconv.NewRegistry()
	const enumOID uint32 = 90000
	reg.RegisterEnum(enumOID, map[string]bool{"red": true, "green": true, "blue": true})
	c, ok := reg.Lookup(enumOID)
	if !ok {
		t.Fatal("expected the registered enum OID to be found")
	}
	if _, err := c.TextToStorage([]byte("green")); err != nil {
		t.Fatalf("expected a valid label to be accepted, got %v", err)
	}
}

func TestRegisterEnumRejectsUnknownLabel(t *testing.T) {
	reg := typeconv.NewRegistry()
	const enumOID uint32 = 90001
	reg.RegisterEnum(enumOID, map[string]bool{"red": true})
	c, _ := reg.Lookup(enumOID)
	if _, err := c.TextToStorage([]byte("purple")); err == nil {
		t.Fatal("expected an unknown enum label to be rejected")
	}
}
