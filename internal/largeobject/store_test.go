package largeobject_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/pgsqlite/pgsqlite/internal/largeobject"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	store, err := largeobject.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	data := []byte("a large cached result set, spilled to disk")
	ref, err := store.Put(data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round-trip mismatch: got %q want %q", got, data)
	}
}

func TestStorePutIsContentAddressed(t *testing.T) {
	store, err := largeobject.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	data := []byte("identical payload")
	ref1, err := store.Put(data)
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	ref2, err := store.Put(data)
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("expected identical payloads to share a reference, got %q and %q", ref1, ref2)
	}
}

func TestStoreRemove(t *testing.T) {
	store, err := largeobject.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ref, err := store.Put([]byte("gone soon"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Remove(ref); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(ref); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error after remove, got %v", err)
	}
	// Removing an already-gone reference is a no-op, not an error.
	if err := store.Remove(ref); err != nil {
		t.Fatalf("expected second remove to be a no-op, got %v", err)
	}
}
