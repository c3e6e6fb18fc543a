package cache

import (
	"encoding/json"
	"time"

	"github.com/pgsqlite/pgsqlite/internal/largeobject"
	"github.com/pgsqlite/pgsqlite/internal/logging"
)

// Plan is a cached query classification/translation outcome, keyed by
// statement name (extended query); simple-query statements are not
// plan-cached.
type Plan struct {
	TranslatedSQL string
	Tier          int // complexity tier, see internal/query
	ParamOIDs     []uint32
	ResultOIDs    []uint32
}

// Result is a cached full result set for a read-only statement whose
// inputs (SQL text + bound params) repeat often -- dashboards, health
// checks, ORM introspection queries. Spilled holds a largeobject.Store
// reference in place of Rows once the encoded result exceeds the
// configured large-value threshold, keeping the in-memory LRU entry
// small while the row data lives on disk.
type Result struct {
	Columns []string
	Rows    [][]any
	Spilled string // largeobject reference; set instead of Rows when spilled
}

// Manager bundles the four caches spec.md §4.9 names and satisfies
// bufpool.Trimmer so the memory monitor can shed them under pressure.
type Manager struct {
	log *logging.Logger

	Plans      *LRU
	Results    *LRU
	Schema     *LRU
	Statements *LRU // prepared statement handles, keyed by statement name

	large          *largeobject.Store // nil disables spilling
	spillThreshold int                // bytes; 0 disables spilling
}

func NewManager(log *logging.Logger, planCap, resultCap, stmtCap int, planTTL, resultTTL, schemaTTL time.Duration) *Manager {
	return &Manager{
		log:        log,
		Plans:      NewLRU(planCap, planTTL),
		Results:    NewLRU(resultCap, resultTTL),
		Schema:     NewLRU(256, schemaTTL),
		Statements: NewLRU(stmtCap, 0),
	}
}

// EnableSpill wires a disk-backed overflow store for the results cache;
// encoded result sets larger than thresholdKB spill to store instead of
// occupying the in-memory LRU entry.
func (m *Manager) EnableSpill(store *largeobject.Store, thresholdKB int) {
	m.large = store
	m.spillThreshold = thresholdKB * 1024
}

// PutResult caches a result set, transparently spilling it to disk when
// it exceeds the configured threshold and the spill store is enabled.
func (m *Manager) PutResult(key string, r *Result) {
	if m.large == nil || m.spillThreshold <= 0 || len(r.Rows) == 0 {
		m.Results.Put(key, r)
		return
	}
	encoded, err := json.Marshal(r.Rows)
	if err != nil {
		m.Results.Put(key, r)
		return
	}
	if len(encoded) < m.spillThreshold {
		m.Results.Put(key, r)
		return
	}
	ref, err := m.large.Put(encoded)
	if err != nil {
		if m.log != nil {
			m.log.Warn("cache: spill result %s: %v", key, err)
		}
		m.Results.Put(key, r)
		return
	}
	m.Results.Put(key, &Result{Columns: r.Columns, Spilled: ref})
}

// GetResult fetches a cached result, transparently reloading spilled row
// data from disk.
func (m *Manager) GetResult(key string) (*Result, bool) {
	v, ok := m.Results.Get(key)
	if !ok {
		return nil, false
	}
	r := v.(*Result)
	if r.Spilled == "" || m.large == nil {
		return r, true
	}
	encoded, err := m.large.Get(r.Spilled)
	if err != nil {
		if m.log != nil {
			m.log.Warn("cache: reload spilled result %s: %v", key, err)
		}
		return nil, false
	}
	var rows [][]any
	if err := json.Unmarshal(encoded, &rows); err != nil {
		return nil, false
	}
	return &Result{Columns: r.Columns, Rows: rows}, true
}

// TrimCaches drops the plan/result/schema caches; prepared statement handles
// survive since dropping them would break clients mid-session.
func (m *Manager) TrimCaches() {
	before := m.Plans.Len() + m.Results.Len() + m.Schema.Len()
	m.Plans.Clear()
	m.Results.Clear()
	m.Schema.Clear()
	if m.log != nil {
		m.log.Info("cache: trimmed %d entries under memory pressure", before)
	}
}

// DropStatementPool clears prepared statements too, used only at the high
// memory threshold.
func (m *Manager) DropStatementPool() {
	n := m.Statements.Len()
	m.Statements.Clear()
	if m.log != nil {
		m.log.Warn("cache: dropped %d prepared statements under high memory pressure", n)
	}
}

// InvalidateSchema is called by the executor for every CREATE TABLE,
// ALTER TABLE, DROP TABLE or CREATE TYPE statement; a schema
// change can stale a cached plan (column types changed), a cached result
// (rows changed shape), and the schema cache itself.
func (m *Manager) InvalidateSchema() {
	m.Plans.Clear()
	m.Results.Clear()
	m.Schema.Clear()
	if m.log != nil {
		m.log.Debug("cache: invalidated plan/result/schema caches after DDL")
	}
}
