package typeconv_test

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

func TestInt4RangeCoderNormalizesLiteral(t *testing.T) {
	c := lookup(t, typeconv.OIDInt4Range)
	storage, err := c.TextToStorage([]byte("[1,10)"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	if storage != "[1,10)" {
		t.Fatalf("expected the canonical literal preserved, got %v", storage)
	}
}

func TestInt4RangeCoderAcceptsEmpty(t *testing.T) {
	c := lookup(t, typeconv.OIDInt4Range)
	storage, err := c.TextToStorage([]byte("empty"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	if storage != "empty" {
		t.Fatalf("expected \"empty\", got %v", storage)
	}
}

func TestInt4RangeCoderRejectsNonIntegerBound(t *testing.T) {
	c := lookup(t, typeconv.OIDInt4Range)
	if _, err := c.TextToStorage([]byte("[abc,10)")); err == nil {
		t.Fatal("expected an error for a non-integer bound in an int4range")
	}
}

func TestInt4RangeCoderBinaryRoundTrip(t *testing.T) {
	c := lookup(t, typeconv.OIDInt4Range)
	text, err := c.StorageToText("[1,10)")
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	bin, err := c.StorageToBinary(string(text))
	if err != nil {
		t.Fatalf("StorageToBinary: %v", err)
	}
	storage, err := c.BinaryToStorage(bin)
	if err != nil {
		t.Fatalf("BinaryToStorage: %v", err)
	}
	if storage != "[1,10)" {
		t.Fatalf("expected round trip to preserve the literal, got %v", storage)
	}
}
