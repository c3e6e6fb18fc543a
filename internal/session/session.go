// Package session owns the per-connection state spec.md §4.4 describes:
// one SQLite connection per PostgreSQL session, its GUC settings, prepared
// statements, and open portals. Grounded on the teacher's
// pkg/platform/storage.DB (one *sql.DB wrapper per tenant) generalized to
// one *sql.DB per PG client instead of per tenant, since pgsqlite needs
// SQLite's connection-scoped PRAGMAs and temp tables to stay pinned to a
// single client for the session's lifetime.
package session

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/logging"
	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

// TxStatus mirrors PG's ReadyForQuery status byte.
type TxStatus byte

const (
	TxIdle       TxStatus = 'I'
	TxInBlock    TxStatus = 'T'
	TxInFailed   TxStatus = 'E'
)

// PreparedStatement is the server-side result of a Parse message.
type PreparedStatement struct {
	Name       string
	SQL        string
	Translated string
	ParamOIDs  []uint32
	Fields     []pgproto3.FieldDescription
	Tier       int
}

// Portal is the server-side result of a Bind message: a prepared statement
// plus bound parameter values and the client's requested result formats.
type Portal struct {
	Name           string
	Stmt           *PreparedStatement
	Params         [][]byte
	ParamFormats   []int16
	ResultFormats  []int16
	bound          []any // decoded parameter values, positional
	suspended      bool
	rows           *sql.Rows
	rowsRead       int64
}

// SetBound stores the decoded positional parameter values for this portal.
func (p *Portal) SetBound(values []any) { p.bound = values }

// Bound returns the decoded positional parameter values.
func (p *Portal) Bound() []any { return p.bound }

// SetRows attaches the open cursor this portal is streaming from.
func (p *Portal) SetRows(rows *sql.Rows) { p.rows = rows }

// Rows returns the portal's open cursor, or nil until Execute opens it.
func (p *Portal) Rows() *sql.Rows { return p.rows }

// MarkSuspended records that Execute stopped before exhausting the cursor
// because it hit its row-count limit.
func (p *Portal) MarkSuspended(v bool) { p.suspended = v }

func (p *Portal) Suspended() bool { return p.suspended }

func (p *Portal) AddRowsRead(n int64) { p.rowsRead += n }

func (p *Portal) RowsRead() int64 { return p.rowsRead }

// Session is all state kept for one client connection, from authentication
// to termination.
type Session struct {
	ID         string
	SecretKey  int32
	PID        int32

	mu         sync.Mutex
	conn       *sql.DB
	GUC        map[string]string
	TxStatus   TxStatus
	Prepared   map[string]*PreparedStatement
	Portals    map[string]*Portal

	Catalog *catalog.Registry
	Types   *typeconv.Registry
	Caches  *cache.Manager
	Log     *logging.Logger

	cancelRequested bool
}

func newSession(id string, pid, secret int32, conn *sql.DB, log *logging.Logger) *Session {
	reg := catalog.New(conn)
	s := &Session{
		ID:        id,
		PID:       pid,
		SecretKey: secret,
		conn:      conn,
		GUC:       defaultGUC(),
		TxStatus:  TxIdle,
		Prepared:  make(map[string]*PreparedStatement),
		Portals:   make(map[string]*Portal),
		Catalog:   reg,
		Types:     typeconv.NewRegistry(),
		Log:       log.WithSession(id),
	}
	return s
}

func defaultGUC() map[string]string {
	return map[string]string{
		"server_version":              "14.9",
		"server_encoding":              "UTF8",
		"client_encoding":              "UTF8",
		"DateStyle":                   "ISO, MDY",
		"TimeZone":                    "UTC",
		"integer_datetimes":           "on",
		"standard_conforming_strings": "on",
		"application_name":            "",
	}
}

func (s *Session) DB() *sql.DB {
	return s.conn
}

// SetCaches wires the shared (process-wide) or per-session cache manager;
// called once by session.Manager right after newSession.
func (s *Session) SetCaches(c *cache.Manager) {
	s.Caches = c
}

func (s *Session) SetGUC(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GUC[name] = value
}

func (s *Session) GetGUC(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.GUC[name]
	return v, ok
}

func (s *Session) AddPrepared(stmt *PreparedStatement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prepared[stmt.Name] = stmt
}

func (s *Session) LookupPrepared(name string) (*PreparedStatement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Prepared[name]
	return p, ok
}

func (s *Session) ClosePrepared(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Prepared, name)
}

func (s *Session) AddPortal(p *Portal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Portals[p.Name] = p
}

func (s *Session) LookupPortal(name string) (*Portal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Portals[name]
	return p, ok
}

func (s *Session) ClosePortal(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Portals[name]; ok {
		if p.rows != nil {
			p.rows.Close()
		}
		delete(s.Portals, name)
	}
}

// Close releases the session's SQLite connection and any open portal
// cursors; called once on client disconnect.
func (s *Session) Close() error {
	s.mu.Lock()
	for _, p := range s.Portals {
		if p.rows != nil {
			p.rows.Close()
		}
	}
	s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// RequestCancel marks the session for cooperative cancellation; the
// server's message loop checks this before running each Execute message.
func (s *Session) RequestCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = true
}

func (s *Session) CancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}

func (s *Session) ClearCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = false
}

// Exec is a small helper so callers (the executor) don't import
// database/sql directly just to run DDL/DML against the session connection.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (sqlResult, error) {
	return s.conn.ExecContext(ctx, sql, args...)
}

type sqlResult = interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
