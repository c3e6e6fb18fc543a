// Package protocol implements the PostgreSQL wire protocol v3 frontend
// handshake and message framing (spec.md §4.1), built directly on
// github.com/jackc/pgx/v5/pgproto3 -- the same wire-protocol package used
// by kqlite and aulsql for PG-compatible backends over non-PG storage.
package protocol

import (
	"bufio"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// MaxMessageSize bounds a single post-startup frontend message's declared
// body length, enforced by maxMessageReader before pgproto3 ever allocates
// a buffer for the body.
const MaxMessageSize = 256 * 1024 * 1024

// Conn wraps a net.Conn with a pgproto3 backend, supporting an in-place
// TLS upgrade after SSL negotiation.
type Conn struct {
	net.Conn
	Backend *pgproto3.Backend
}

// NewConn wraps an accepted socket before the startup handshake begins.
func NewConn(raw net.Conn) *Conn {
	return &Conn{
		Conn:    raw,
		Backend: pgproto3.NewBackend(raw, raw),
	}
}

// HandshakeResult carries the decoded startup parameters once negotiation
// (including any SSL upgrade) has completed.
type HandshakeResult struct {
	Params map[string]string
	Cancel *pgproto3.CancelRequest
}

// Negotiate drives the pre-authentication loop: it answers SSLRequest
// messages (accepting if tlsConfig is non-nil and the transport is TCP,
// otherwise always 'N' per spec.md's unix-socket rule), then returns the
// StartupMessage parameters or a CancelRequest.
func (c *Conn) Negotiate(tlsConfig *tls.Config, isUnixSocket bool) (*HandshakeResult, error) {
	for {
		msg, err := c.Backend.ReceiveStartupMessage()
		if err != nil {
			return nil, pgerror.Fatal(pgerror.ProtocolViolation, fmt.Sprintf("receive startup: %v", err))
		}

		switch m := msg.(type) {
		case *pgproto3.StartupMessage:
			if m.ProtocolVersion != pgproto3.ProtocolVersionNumber {
				return nil, pgerror.Fatal(pgerror.ProtocolViolation, "unsupported protocol version")
			}
			// From here on messages are typed (1-byte tag + 4-byte length),
			// unlike the untagged startup phase just handled above; only now
			// can a size cap be applied without misreading the startup framing.
			c.Backend = pgproto3.NewBackend(newMaxMessageReader(c.Conn, MaxMessageSize), c.Conn)
			return &HandshakeResult{Params: m.Parameters}, nil

		case *pgproto3.SSLRequest:
			accept := tlsConfig != nil && !isUnixSocket
			reply := []byte{'N'}
			if accept {
				reply = []byte{'S'}
			}
			if _, err := c.Conn.Write(reply); err != nil {
				return nil, err
			}
			if !accept {
				continue
			}
			tlsConn := tls.Server(c.Conn, tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return nil, fmt.Errorf("tls handshake: %w", err)
			}
			c.Conn = tlsConn
			c.Backend = pgproto3.NewBackend(tlsConn, tlsConn)
			continue

		case *pgproto3.CancelRequest:
			return &HandshakeResult{Cancel: m}, nil

		case *pgproto3.GSSEncRequest:
			if _, err := c.Conn.Write([]byte{'N'}); err != nil {
				return nil, err
			}
			continue

		default:
			return nil, pgerror.Fatal(pgerror.ProtocolViolation, fmt.Sprintf("unexpected startup message %T", m))
		}
	}
}

// Receive reads the next frontend message in the normal (post-auth)
// protocol phase.
func (c *Conn) Receive() (pgproto3.FrontendMessage, error) {
	return c.Backend.Receive()
}

// RequestCleartextPassword sends AuthenticationCleartextPassword and reads
// back the client's PasswordMessage, per the cleartext auth exchange
// spec.md's auth section describes.
func (c *Conn) RequestCleartextPassword() (string, error) {
	if err := WriteMessages(c.Conn, &pgproto3.AuthenticationCleartextPassword{}); err != nil {
		return "", err
	}
	c.Backend.SetAuthType(pgproto3.AuthTypeCleartextPassword)
	msg, err := c.Backend.Receive()
	if err != nil {
		return "", pgerror.Fatal(pgerror.ProtocolViolation, fmt.Sprintf("receive password: %v", err))
	}
	pw, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		return "", pgerror.Fatal(pgerror.ProtocolViolation, "expected PasswordMessage")
	}
	return pw.Password, nil
}

// WriteMessages encodes and writes a batch of backend messages as a single
// write, matching the teacher-grounded pattern seen across every pgproto3
// based backend in the pack (kqlite, aulsql, myduckserver).
func WriteMessages(w net.Conn, msgs ...pgproto3.BackendMessage) error {
	var buf []byte
	for _, m := range msgs {
		buf = m.Encode(buf)
	}
	_, err := w.Write(buf)
	return err
}

// EncodeInto appends the wire encoding of msgs onto buf and returns the
// extended slice, letting callers batch many rows under one bufpool buffer
// before issuing a single Write.
func EncodeInto(buf []byte, msgs ...pgproto3.BackendMessage) []byte {
	for _, m := range msgs {
		buf = m.Encode(buf)
	}
	return buf
}

// maxMessageReader wraps the post-handshake connection, peeking each
// message's 1-byte type tag and 4-byte body length ahead of pgproto3's own
// read so an oversized declared length is rejected before pgproto3 commits
// to allocating a buffer for it. A client's CopyData stream is the likeliest
// source of a runaway body length, since unlike Parse/Query/Bind it carries
// arbitrary caller-supplied bytes rather than a bounded SQL string.
type maxMessageReader struct {
	br      *bufio.Reader
	max     int
	pending int
}

func newMaxMessageReader(r io.Reader, max int) *maxMessageReader {
	return &maxMessageReader{br: bufio.NewReaderSize(r, 4096), max: max}
}

func (m *maxMessageReader) Read(p []byte) (int, error) {
	if m.pending == 0 {
		header, err := m.br.Peek(5)
		if err != nil {
			// Too little buffered to inspect a header (commonly: connection
			// closing mid-read); let the normal read path surface the error.
			return m.br.Read(p)
		}
		bodyLen := int(binary.BigEndian.Uint32(header[1:5]))
		if bodyLen-4 > m.max {
			return 0, fmt.Errorf("protocol: message body of %d bytes exceeds the %d byte limit", bodyLen-4, m.max)
		}
		m.pending = bodyLen + 1 // type byte + the 4 length bytes already peeked + body
	}
	if len(p) > m.pending {
		p = p[:m.pending]
	}
	n, err := m.br.Read(p)
	m.pending -= n
	return n, err
}
