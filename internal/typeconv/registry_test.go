package typeconv_test

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

func TestRegistryLookupKnownOIDs(t *testing.T) {
	reg := typeconv.NewRegistry()
	for _, oid := range []uint32{
		typeconv.OIDBool, typeconv.OIDInt2, typeconv.OIDInt4, typeconv.OIDInt8,
		typeconv.OIDFloat4, typeconv.OIDFloat8, typeconv.OIDText, typeconv.OIDBytea,
		typeconv.OIDUUID, typeconv.OIDJSON, typeconv.OIDJSONB, typeconv.OIDMoney,
	} {
		if _, ok := reg.Lookup(oid); !ok {
			t.Fatalf("expected OID %d to be registered", oid)
		}
	}
}

func TestRegistryLookupUnknownOID(t *testing.T) {
	reg := typeconv.NewRegistry()
	if _, ok := reg.Lookup(999999); ok {
		t.Fatal("expected unregistered OID to be absent")
	}
}

func TestBoolCoderTextRoundTrip(t *testing.T) {
	reg := typeconv.NewRegistry()
	c, _ := reg.Lookup(typeconv.OIDBool)

	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"t", true}, {"true", true}, {"1", true}, {"yes", true},
		{"f", false}, {"false", false}, {"0", false}, {"no", false},
	} {
		v, err := c.TextToStorage([]byte(tc.in))
		if err != nil {
			t.Fatalf("TextToStorage(%q): %v", tc.in, err)
		}
		text, err := c.StorageToText(v)
		if err != nil {
			t.Fatalf("StorageToText: %v", err)
		}
		want := "f"
		if tc.want {
			want = "t"
		}
		if string(text) != want {
			t.Fatalf("%q round-tripped to %q, want %q", tc.in, text, want)
		}
	}
}

func TestBoolCoderRejectsGarbage(t *testing.T) {
	reg := typeconv.NewRegistry()
	c, _ := reg.Lookup(typeconv.OIDBool)
	if _, err := c.TextToStorage([]byte("maybe")); err == nil {
		t.Fatal("expected an error for an invalid boolean literal")
	}
}

func TestIntCoderBinaryRoundTrip(t *testing.T) {
	reg := typeconv.NewRegistry()
	c, _ := reg.Lookup(typeconv.OIDInt4)

	v, err := c.TextToStorage([]byte("-42"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	bin, err := c.StorageToBinary(v)
	if err != nil {
		t.Fatalf("StorageToBinary: %v", err)
	}
	back, err := c.BinaryToStorage(bin)
	if err != nil {
		t.Fatalf("BinaryToStorage: %v", err)
	}
	text, err := c.StorageToText(back)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(text) != "-42" {
		t.Fatalf("expected round-trip to preserve -42, got %q", text)
	}
}

func TestByteaCoderHexTextRoundTrip(t *testing.T) {
	reg := typeconv.NewRegistry()
	c, _ := reg.Lookup(typeconv.OIDBytea)

	v, err := c.TextToStorage([]byte(`\x68656c6c6f`))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	text, err := c.StorageToText(v)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(text) != `\x68656c6c6f` {
		t.Fatalf("expected canonical hex bytea output, got %q", text)
	}
}

func TestMoneyCoderFormatsGroupedCents(t *testing.T) {
	reg := typeconv.NewRegistry()
	c, _ := reg.Lookup(typeconv.OIDMoney)

	bin, err := c.StorageToBinary("$1234.56")
	if err != nil {
		t.Fatalf("StorageToBinary: %v", err)
	}
	v, err := c.BinaryToStorage(bin)
	if err != nil {
		t.Fatalf("BinaryToStorage: %v", err)
	}
	if v != "$1,234.56" {
		t.Fatalf("expected grouped money text, got %q", v)
	}
}

func TestArrayAndEnumRegistration(t *testing.T) {
	reg := typeconv.NewRegistry()
	const enumOID, enumArrayOID = uint32(90000), uint32(90001)

	reg.RegisterEnum(enumOID, map[string]bool{"red": true, "green": true})
	reg.RegisterArray(enumArrayOID, enumOID)

	if _, ok := reg.Lookup(enumOID); !ok {
		t.Fatal("expected enum OID to resolve after RegisterEnum")
	}
	if _, ok := reg.Lookup(enumArrayOID); !ok {
		t.Fatal("expected array OID to resolve after RegisterArray")
	}
}

func TestToDisplayStringFormatsCommonTypes(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{int64(42), "42"},
		{"hello", "hello"},
		{[]byte("bytes"), "bytes"},
	}
	for _, tc := range cases {
		if got := typeconv.ToDisplayString(tc.in); got != tc.want {
			t.Fatalf("ToDisplayString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFixedSizeCoversKnownScalarOIDs(t *testing.T) {
	if sz, ok := typeconv.FixedSize[typeconv.OIDInt4]; !ok || sz != 4 {
		t.Fatalf("expected int4 fixed size 4, got %d ok=%v", sz, ok)
	}
	if sz, ok := typeconv.FixedSize[typeconv.OIDUUID]; !ok || sz != 16 {
		t.Fatalf("expected uuid fixed size 16, got %d ok=%v", sz, ok)
	}
	if _, ok := typeconv.FixedSize[typeconv.OIDText]; ok {
		t.Fatal("expected text (variable-length) to have no fixed size entry")
	}
}
