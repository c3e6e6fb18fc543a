package typeconv_test

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

func lookup(t *testing.T, oid uint32) typeconv.Coder {
	t.Helper()
	reg := typeconv.NewRegistry()
	c, ok := reg.Lookup(oid)
	if !ok {
		t.Fatalf("expected OID %d to be registered", oid)
	}
	return c
}

func TestDateCoderTextRoundTrip(t *testing.T) {
	c := lookup(t, typeconv.OIDDate)
	storage, err := c.TextToStorage([]byte("2024-03-15"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out) != "2024-03-15" {
		t.Fatalf("expected 2024-03-15, got %s", out)
	}
}

func TestDateCoderRejectsGarbage(t *testing.T) {
	c := lookup(t, typeconv.OIDDate)
	if _, err := c.TextToStorage([]byte("not-a-date")); err == nil {
		t.Fatal("expected an error for malformed date text")
	}
}

func TestTimestampCoderTextRoundTrip(t *testing.T) {
	c := lookup(t, typeconv.OIDTimestamp)
	storage, err := c.TextToStorage([]byte("2024-03-15 10:30:00"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out) != "2024-03-15 10:30:00" {
		t.Fatalf("expected 2024-03-15 10:30:00, got %s", out)
	}
}

func TestTimestampTZCoderAppendsOffset(t *testing.T) {
	c := lookup(t, typeconv.OIDTimestampTZ)
	storage, err := c.TextToStorage([]byte("2024-03-15 10:30:00"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out) != "2024-03-15 10:30:00+00" {
		t.Fatalf("expected a +00 suffix, got %s", out)
	}
}

func TestTimeCoderTextRoundTrip(t *testing.T) {
	c := lookup(t, typeconv.OIDTime)
	storage, err := c.TextToStorage([]byte("13:45:30"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out) != "13:45:30" {
		t.Fatalf("expected 13:45:30, got %s", out)
	}
}

func TestIntervalCoderParsesHMSText(t *testing.T) {
	c := lookup(t, typeconv.OIDInterval)
	storage, err := c.TextToStorage([]byte("02:30:00"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out) != "02:30:00.000000" {
		t.Fatalf("expected 02:30:00.000000, got %s", out)
	}
}

func TestIntervalCoderParsesISO8601Duration(t *testing.T) {
	c := lookup(t, typeconv.OIDInterval)
	storage, err := c.TextToStorage([]byte("P1DT2H"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out) != "26:00:00.000000" {
		t.Fatalf("expected a day folded into hours (26:00:00.000000), got %s", out)
	}
}

func TestIntervalCoderNegativeDuration(t *testing.T) {
	c := lookup(t, typeconv.OIDInterval)
	storage, err := c.TextToStorage([]byte("-01:00:00"))
	if err != nil {
		t.Fatalf("TextToStorage: %v", err)
	}
	out, err := c.StorageToText(storage)
	if err != nil {
		t.Fatalf("StorageToText: %v", err)
	}
	if string(out)[0] != '-' {
		t.Fatalf("expected a negative sign prefix, got %s", out)
	}
}
