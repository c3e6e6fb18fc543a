package server

import (
	"context"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/config"
	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/logging"
	"github.com/pgsqlite/pgsqlite/internal/protocol"
	"github.com/pgsqlite/pgsqlite/internal/session"
)

func newCopyTestExecutor(t *testing.T) (*executor.Executor, *session.Session) {
	t.Helper()
	cfg := config.Default()
	cfg.InMemory = true
	cfg.JournalMode = "MEMORY"
	cfg.Synchronous = "OFF"
	log := logging.New(logging.LevelError)
	caches := cache.NewManager(log, 50, 50, 50, 0, 0, 0)
	mgr := session.NewManager(cfg, log, caches)
	sess, err := mgr.Open(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() { mgr.Remove(sess) })
	reg := catalog.New(sess.DB())
	handler := catalog.NewHandler(sess.DB(), reg)
	return executor.New(sess, handler, reg, caches), sess
}

func copyPipe(t *testing.T) (*protocol.Conn, *pgproto3.Frontend) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })
	return protocol.NewConn(serverConn), pgproto3.NewFrontend(clientConn, clientConn)
}

// TestHandleCopyInInsertsStreamedRows drives handleCopyIn over a real
// net.Pipe with a pgproto3.Frontend playing the client, the same pattern
// internal/protocol's Negotiate tests use, exercising the CopyData
// line-buffering that splitting the table-driven unit tests can't reach.
func TestHandleCopyInInsertsStreamedRows(t *testing.T) {
	exec, sess := newCopyTestExecutor(t)
	ctx := context.Background()
	exec.SimpleQuery(ctx, `CREATE TABLE widgets (id integer primary key, name text)`)

	conn, frontend := copyPipe(t)
	s := &Server{log: logging.New(logging.LevelError)}
	target := executor.CopyTarget{Table: "widgets", Columns: []string{"id", "name"}}

	errCh := make(chan error, 1)
	go func() { errCh <- s.handleCopyIn(ctx, conn, sess, exec, target) }()

	if _, err := frontend.Receive(); err != nil {
		t.Fatalf("receive CopyInResponse: %v", err)
	}

	// One CopyData chunk carrying two newline-terminated rows, followed by
	// a second chunk whose row has no trailing newline -- exercises both
	// the mid-chunk split and the final-partial-line path.
	if err := frontend.Send(&pgproto3.CopyData{Data: []byte("1\tgear\n2\tbo")}); err != nil {
		t.Fatalf("send CopyData: %v", err)
	}
	if err := frontend.Send(&pgproto3.CopyData{Data: []byte("lt\n3\tnut")}); err != nil {
		t.Fatalf("send CopyData: %v", err)
	}
	if err := frontend.Send(&pgproto3.CopyDone{}); err != nil {
		t.Fatalf("send CopyDone: %v", err)
	}

	msg, err := frontend.Receive()
	if err != nil {
		t.Fatalf("receive CommandComplete: %v", err)
	}
	cc, ok := msg.(*pgproto3.CommandComplete)
	if !ok || string(cc.CommandTag) != "COPY 3" {
		t.Fatalf("expected CommandComplete COPY 3, got %+v", msg)
	}
	if _, err := frontend.Receive(); err != nil {
		t.Fatalf("receive ReadyForQuery: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("handleCopyIn: %v", err)
	}

	rows := exec.SimpleQuery(ctx, `SELECT id, name FROM widgets ORDER BY id`)
	var names []string
	for _, m := range rows {
		if dr, ok := m.(*pgproto3.DataRow); ok {
			names = append(names, string(dr.Values[1]))
		}
	}
	if len(names) != 3 || names[0] != "gear" || names[1] != "bolt" || names[2] != "nut" {
		t.Fatalf("expected [gear bolt nut], got %v", names)
	}
}

// TestHandleCopyOutStreamsSelectedRows drives handleCopyOut the same way,
// verifying the CopyData/CopyDone sequence and row encoding.
func TestHandleCopyOutStreamsSelectedRows(t *testing.T) {
	exec, sess := newCopyTestExecutor(t)
	ctx := context.Background()
	exec.SimpleQuery(ctx, `CREATE TABLE widgets (id integer primary key, name text)`)
	exec.SimpleQuery(ctx, `INSERT INTO widgets (id, name) VALUES (1, 'gear')`)
	exec.SimpleQuery(ctx, `INSERT INTO widgets (id, name) VALUES (2, 'bolt')`)

	conn, frontend := copyPipe(t)
	s := &Server{log: logging.New(logging.LevelError)}
	target := executor.CopyTarget{Table: "widgets", Columns: []string{"id", "name"}, ToStdout: true}

	errCh := make(chan error, 1)
	go func() { errCh <- s.handleCopyOut(ctx, conn, sess, exec, target) }()

	if _, err := frontend.Receive(); err != nil {
		t.Fatalf("receive CopyOutResponse: %v", err)
	}

	var lines []string
	for {
		msg, err := frontend.Receive()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if cd, ok := msg.(*pgproto3.CopyData); ok {
			lines = append(lines, string(cd.Data))
			continue
		}
		if _, ok := msg.(*pgproto3.CopyDone); ok {
			break
		}
		t.Fatalf("unexpected message %T while streaming COPY OUT", msg)
	}
	if len(lines) != 2 || lines[0] != "1\tgear\n" || lines[1] != "2\tbolt\n" {
		t.Fatalf("unexpected COPY OUT lines: %v", lines)
	}

	msg, err := frontend.Receive()
	if err != nil {
		t.Fatalf("receive CommandComplete: %v", err)
	}
	cc, ok := msg.(*pgproto3.CommandComplete)
	if !ok || string(cc.CommandTag) != "COPY 2" {
		t.Fatalf("expected CommandComplete COPY 2, got %+v", msg)
	}
	if _, err := frontend.Receive(); err != nil {
		t.Fatalf("receive ReadyForQuery: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("handleCopyOut: %v", err)
	}
}
