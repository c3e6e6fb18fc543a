package protocol_test

import (
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/protocol"
)

func pipe(t *testing.T) (*protocol.Conn, *pgproto3.Frontend, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	conn := protocol.NewConn(server)
	frontend := pgproto3.NewFrontend(client, client)
	return conn, frontend, client
}

func TestNegotiateReturnsStartupParameters(t *testing.T) {
	conn, frontend, _ := pipe(t)
	done := make(chan *protocol.HandshakeResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := conn.Negotiate(nil, true)
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	startup := &pgproto3.StartupMessage{
		ProtocolVersion: pgproto3.ProtocolVersionNumber,
		Parameters:      map[string]string{"user": "postgres", "database": "app"},
	}
	if err := frontend.Send(startup); err != nil {
		t.Fatalf("send startup: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("Negotiate: %v", err)
	case res := <-done:
		if res.Params["user"] != "postgres" || res.Params["database"] != "app" {
			t.Fatalf("unexpected params: %+v", res.Params)
		}
	}
}

func TestNegotiateRejectsSSLWithoutTLSConfig(t *testing.T) {
	conn, frontend, client := pipe(t)
	done := make(chan *protocol.HandshakeResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := conn.Negotiate(nil, false)
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	if err := frontend.Send(&pgproto3.SSLRequest{}); err != nil {
		t.Fatalf("send SSLRequest: %v", err)
	}
	reply := make([]byte, 1)
	if _, err := client.Read(reply); err != nil {
		t.Fatalf("read SSL reply: %v", err)
	}
	if reply[0] != 'N' {
		t.Fatalf("expected 'N' rejection byte, got %q", reply[0])
	}

	startup := &pgproto3.StartupMessage{
		ProtocolVersion: pgproto3.ProtocolVersionNumber,
		Parameters:      map[string]string{"user": "postgres"},
	}
	if err := frontend.Send(startup); err != nil {
		t.Fatalf("send startup: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("Negotiate: %v", err)
	case res := <-done:
		if res.Params["user"] != "postgres" {
			t.Fatalf("unexpected params after SSL rejection: %+v", res.Params)
		}
	}
}

func TestNegotiateReturnsCancelRequest(t *testing.T) {
	conn, frontend, _ := pipe(t)
	done := make(chan *protocol.HandshakeResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := conn.Negotiate(nil, true)
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	cancel := &pgproto3.CancelRequest{ProcessID: 42, SecretKey: 99}
	if err := frontend.Send(cancel); err != nil {
		t.Fatalf("send cancel: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("Negotiate: %v", err)
	case res := <-done:
		if res.Cancel == nil || res.Cancel.ProcessID != 42 || res.Cancel.SecretKey != 99 {
			t.Fatalf("unexpected cancel result: %+v", res.Cancel)
		}
	}
}

func TestRequestCleartextPasswordReadsBack(t *testing.T) {
	conn, frontend, _ := pipe(t)
	done := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		pw, err := conn.RequestCleartextPassword()
		if err != nil {
			errCh <- err
			return
		}
		done <- pw
	}()

	authMsg, err := frontend.Receive()
	if err != nil {
		t.Fatalf("receive auth request: %v", err)
	}
	if _, ok := authMsg.(*pgproto3.AuthenticationCleartextPassword); !ok {
		t.Fatalf("expected AuthenticationCleartextPassword, got %T", authMsg)
	}

	if err := frontend.Send(&pgproto3.PasswordMessage{Password: "swordfish"}); err != nil {
		t.Fatalf("send password: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("RequestCleartextPassword: %v", err)
	case pw := <-done:
		if pw != "swordfish" {
			t.Fatalf("expected swordfish, got %q", pw)
		}
	}
}
