package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/config"
	"github.com/pgsqlite/pgsqlite/internal/logging"
	"github.com/pgsqlite/pgsqlite/internal/migration"
)

// Manager opens one SQLite connection per accepted PG client and tracks
// the (pid, secretKey) pairs CancelRequest needs to find them again.
type Manager struct {
	cfg config.Config
	log *logging.Logger

	caches *cache.Manager

	mu       sync.Mutex
	byPID    map[int32]*Session
	nextPID  int32
}

func NewManager(cfg config.Config, log *logging.Logger, caches *cache.Manager) *Manager {
	if err := catalog.RegisterFunctions(); err != nil {
		log.Warn("session: catalog function registration: %v", err)
	}
	return &Manager{
		cfg:     cfg,
		log:     log,
		caches:  caches,
		byPID:   make(map[int32]*Session),
		nextPID: 1000,
	}
}

// Open establishes a new SQLite connection for a freshly authenticated
// client and returns its Session, pinned to a single connection for the
// session's lifetime (PRAGMAs and temp objects are connection-scoped).
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	dsn := m.dsn()
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := m.applyPragmas(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	if err := migration.New(conn).Up(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: migrate shadow catalog: %w", err)
	}

	pid := m.allocatePID()
	secret, err := randInt32()
	if err != nil {
		conn.Close()
		return nil, err
	}

	id := uuid.NewString()
	s := newSession(id, pid, secret, conn, m.log)
	s.SetCaches(m.caches)

	m.mu.Lock()
	m.byPID[pid] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) dsn() string {
	if m.cfg.InMemory {
		return "file::memory:?cache=shared"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", m.cfg.DBPath)
}

func (m *Manager) applyPragmas(ctx context.Context, conn *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=" + m.cfg.JournalMode,
		"PRAGMA synchronous=" + m.cfg.Synchronous,
		fmt.Sprintf("PRAGMA cache_size=-%d", m.cfg.CacheSizeKB),
		fmt.Sprintf("PRAGMA mmap_size=%d", m.cfg.MmapSizeMB*1024*1024),
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("session: %s: %w", p, err)
		}
	}
	return nil
}

func (m *Manager) allocatePID() int32 {
	return int32(atomic.AddInt32(&m.nextPID, 1))
}

func randInt32() (int32, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31-1))
	if err != nil {
		return 0, err
	}
	return int32(n.Int64()), nil
}

// Lookup finds a session by its PID for CancelRequest handling; the secret
// key must match or the cancel is silently ignored (spec.md §4.1).
func (m *Manager) Lookup(pid, secret int32) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byPID[pid]
	if !ok || s.SecretKey != secret {
		return nil, false
	}
	return s, true
}

// Remove drops a session from the cancel-lookup table and closes its
// connection; called when the client disconnects.
func (m *Manager) Remove(s *Session) {
	m.mu.Lock()
	delete(m.byPID, s.PID)
	m.mu.Unlock()
	s.Close()
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPID)
}
