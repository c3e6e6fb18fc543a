package cache_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/largeobject"
)

func TestLRUEvictsOldestOverCapacity(t *testing.T) {
	c := cache.NewLRU(2, 0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected \"a\" to be evicted")
	}
	if v, ok := c.Get("b"); !ok || v.(int) != 2 {
		t.Fatalf("expected \"b\" to survive, got %v %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}

func TestLRUTouchOnGetPreventsEviction(t *testing.T) {
	c := cache.NewLRU(2, 0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // "a" is now most-recently-used
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected \"b\" to be evicted, not \"a\"")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected \"a\" to survive since it was touched")
	}
}

func TestLRUExpiresOnTTL(t *testing.T) {
	c := cache.NewLRU(10, time.Millisecond)
	c.Put("a", 1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestManagerInvalidateSchemaClearsAllButStatements(t *testing.T) {
	m := cache.NewManager(nil, 10, 10, 10, time.Minute, time.Minute, time.Minute)
	m.Plans.Put("p", 1)
	m.Results.Put("r", &cache.Result{Columns: []string{"id"}, Rows: [][]any{{1}}})
	m.Schema.Put("s", 1)
	m.Statements.Put("stmt1", 1)

	m.InvalidateSchema()

	if m.Plans.Len() != 0 || m.Results.Len() != 0 || m.Schema.Len() != 0 {
		t.Fatal("expected plan/result/schema caches to be cleared")
	}
	if m.Statements.Len() != 1 {
		t.Fatal("expected prepared statements to survive schema invalidation")
	}
}

func TestManagerResultSpillRoundTrip(t *testing.T) {
	store, err := largeobject.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	m := cache.NewManager(nil, 10, 10, 10, time.Minute, time.Minute, time.Minute)
	m.EnableSpill(store, 1) // 1 KiB threshold; the 2 KiB name below pushes the encoded rows over it

	long := strings.Repeat("b", 2048)
	r := &cache.Result{Columns: []string{"id", "name"}, Rows: [][]any{{1, "alice"}, {2, long}}}
	m.PutResult("SELECT * FROM users", r)

	if raw, ok := m.Results.Get("SELECT * FROM users"); !ok || raw.(*cache.Result).Spilled == "" {
		t.Fatal("expected the result to be spilled to the store")
	}

	got, ok := m.GetResult("SELECT * FROM users")
	if !ok {
		t.Fatal("expected cached result to be found")
	}
	if len(got.Rows) != 2 || got.Rows[0][1] != "alice" || got.Rows[1][1] != long {
		t.Fatalf("unexpected rows after spill round-trip: %+v", got.Rows)
	}
}

func TestManagerResultBelowThresholdStaysInMemory(t *testing.T) {
	store, err := largeobject.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	m := cache.NewManager(nil, 10, 10, 10, time.Minute, time.Minute, time.Minute)
	m.EnableSpill(store, 1<<20) // 1 MiB threshold, tiny result stays resident

	r := &cache.Result{Columns: []string{"id"}, Rows: [][]any{{1}}}
	m.PutResult("SELECT 1", r)

	got, ok := m.GetResult("SELECT 1")
	if !ok || got.Spilled != "" {
		t.Fatalf("expected small result to stay resident, got %+v ok=%v", got, ok)
	}
}
