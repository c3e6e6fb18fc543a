package query_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/migration"
	"github.com/pgsqlite/pgsqlite/internal/query"
)

func newProcessor(t *testing.T) (*query.Processor, *cache.LRU) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := migration.New(db).Up(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	reg := catalog.New(db)
	handler := catalog.NewHandler(db, reg)
	planCache := cache.NewLRU(100, 0)
	return query.NewProcessor(handler, reg, planCache), planCache
}

func TestProcessPlainSelectIsUltraFast(t *testing.T) {
	p, _ := newProcessor(t)
	plan, err := p.Process(context.Background(), "SELECT id, name FROM users WHERE id = ?", "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if plan.Tier != query.TierUltraFast {
		t.Fatalf("expected TierUltraFast, got %v", plan.Tier)
	}
	if plan.SQL != "SELECT id, name FROM users WHERE id = ?" {
		t.Fatalf("expected ultra-fast tier to pass SQL through unmodified, got %q", plan.SQL)
	}
}

func TestProcessCreateTableIsFullTier(t *testing.T) {
	p, _ := newProcessor(t)
	plan, err := p.Process(context.Background(), "CREATE TABLE widgets (id serial primary key, name varchar(50))", "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if plan.Tier != query.TierFull {
		t.Fatalf("expected TierFull for CREATE TABLE, got %v", plan.Tier)
	}
}

func TestProcessCachesPlanByKey(t *testing.T) {
	p, planCache := newProcessor(t)
	const key = "stmt:s1"
	if _, err := p.Process(context.Background(), "SELECT 1", key); err != nil {
		t.Fatalf("process: %v", err)
	}
	if planCache.Len() != 1 {
		t.Fatalf("expected one cached plan, got %d", planCache.Len())
	}
	if _, ok := planCache.Get(key); !ok {
		t.Fatal("expected plan to be retrievable by its cache key")
	}
}

func TestProcessWithoutCacheKeyDoesNotCache(t *testing.T) {
	p, planCache := newProcessor(t)
	if _, err := p.Process(context.Background(), "SELECT 1", ""); err != nil {
		t.Fatalf("process: %v", err)
	}
	if planCache.Len() != 0 {
		t.Fatalf("expected no cached plan for an empty cache key, got %d", planCache.Len())
	}
}

func TestInvalidateOnDDLClearsPlanCache(t *testing.T) {
	p, planCache := newProcessor(t)
	if _, err := p.Process(context.Background(), "SELECT 1", "stmt:s1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if planCache.Len() == 0 {
		t.Fatal("expected a cached plan before invalidation")
	}
	p.InvalidateOnDDL()
	if planCache.Len() != 0 {
		t.Fatalf("expected plan cache to be cleared, got %d entries", planCache.Len())
	}
}
