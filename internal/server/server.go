// Package server drives the accept loop spec.md §4.1 describes: a TCP
// listener, an optional unix-socket listener, and per-connection goroutines
// that run the startup handshake and then the message loop. Grounded on
// kqlite's pkg/core.DBServer (errgroup-supervised listener goroutines,
// context-cancel shutdown), generalized to two listeners (TCP + unix) and
// a real session/executor pipeline instead of kqlite's single in-memory
// store map.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"
	"golang.org/x/sync/errgroup"

	"github.com/pgsqlite/pgsqlite/internal/auth"
	"github.com/pgsqlite/pgsqlite/internal/bufpool"
	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/config"
	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/largeobject"
	"github.com/pgsqlite/pgsqlite/internal/logging"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/protocol"
	"github.com/pgsqlite/pgsqlite/internal/session"
)

// Server owns the listeners and the session manager for one pgsqlite
// process.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	caches  *cache.Manager
	sess    *session.Manager
	tlsConf *tls.Config
	memMon  *bufpool.Monitor
	authChk *auth.Checker

	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners []net.Listener
}

func New(cfg config.Config, log *logging.Logger) (*Server, error) {
	caches := cache.NewManager(log, cfg.QueryCacheSize, cfg.ResultCacheSize, cfg.StatementPoolCap,
		cfg.QueryCacheTTL, cfg.ResultCacheTTL, cfg.SchemaCacheTTL)

	if cfg.LargeValueThresholdKB > 0 && !cfg.InMemory {
		spillDir := filepath.Join(filepath.Dir(cfg.DBPath), ".pgsqlite-spill")
		if store, err := largeobject.NewStore(spillDir); err != nil {
			log.Warn("server: spill store disabled: %v", err)
		} else {
			caches.EnableSpill(store, cfg.LargeValueThresholdKB)
		}
	}

	tlsConf, err := loadTLS(cfg)
	if err != nil {
		return nil, err
	}

	memMon := bufpool.NewMonitor(bufpool.RSSSampler, cfg.MemoryThresholdMB, cfg.HighMemoryThresholdMB)
	memMon.Register(caches)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		log:     log,
		caches:  caches,
		sess:    session.NewManager(cfg, log, caches),
		tlsConf: tlsConf,
		memMon:  memMon,
		authChk: auth.NewChecker(cfg.AuthUsername, cfg.AuthPasswordHash),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func loadTLS(cfg config.Config) (*tls.Config, error) {
	if !cfg.SSLEnabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.SSLCert, cfg.SSLKey)
	if err != nil {
		return nil, fmt.Errorf("server: load TLS cert: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// Start opens the configured listeners and begins accepting; it returns
// once listeners are bound, with accept loops running in the background.
func (s *Server) Start() error {
	s.group.Go(func() error {
		s.memMon.Start(s.ctx, 30*time.Second)
		return nil
	})

	if !s.cfg.NoTCP {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
		if err != nil {
			return fmt.Errorf("server: listen tcp: %w", err)
		}
		s.addListener(ln)
		s.group.Go(func() error { return s.acceptLoop(ln, false) })
		s.log.Info("listening on tcp :%d", s.cfg.Port)
	}

	sockPath := s.cfg.SocketPath()
	os.Remove(sockPath)
	uln, err := net.Listen("unix", sockPath)
	if err != nil {
		s.log.Warn("server: listen unix socket %s: %v (continuing without it)", sockPath, err)
	} else {
		s.addListener(uln)
		s.group.Go(func() error { return s.acceptLoop(uln, true) })
		s.log.Info("listening on unix socket %s", sockPath)
	}

	return nil
}

func (s *Server) addListener(ln net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
}

// Wait blocks until every goroutine on the server's group returns: the
// memory monitor, the accept loops (normally only after Stop), and every
// connection being served.
func (s *Server) Wait() error {
	return s.group.Wait()
}

// Stop closes every listener and cancels the accept/serve context; open
// connections finish their current message before noticing cancellation.
func (s *Server) Stop() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) acceptLoop(ln net.Listener, isUnixSocket bool) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.group.Go(func() error {
			s.serveConn(conn, isUnixSocket)
			return nil
		})
	}
}

func (s *Server) serveConn(raw net.Conn, isUnixSocket bool) {
	defer raw.Close()
	conn := protocol.NewConn(raw)

	result, err := conn.Negotiate(s.tlsConf, isUnixSocket)
	if err != nil {
		s.log.Warn("server: handshake: %v", err)
		return
	}
	if result.Cancel != nil {
		s.handleCancel(result.Cancel)
		return
	}

	if s.authChk.Required() {
		password, err := conn.RequestCleartextPassword()
		if err != nil {
			s.log.Warn("server: auth: %v", err)
			return
		}
		if err := s.authChk.Check(result.Params["user"], password); err != nil {
			protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)))
			return
		}
	}

	sess, err := s.sess.Open(s.ctx)
	if err != nil {
		s.log.Error("server: open session: %v", err)
		protocol.WriteMessages(conn.Conn, errorResponse(pgerror.Fatal(pgerror.Internal, err.Error())))
		return
	}
	defer s.sess.Remove(sess)

	if err := protocol.WriteMessages(conn.Conn,
		&pgproto3.AuthenticationOk{},
		&pgproto3.ParameterStatus{Name: "server_version", Value: sess.GUC["server_version"]},
		&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"},
		&pgproto3.ParameterStatus{Name: "server_encoding", Value: "UTF8"},
		&pgproto3.ParameterStatus{Name: "DateStyle", Value: sess.GUC["DateStyle"]},
		&pgproto3.ParameterStatus{Name: "TimeZone", Value: sess.GUC["TimeZone"]},
		&pgproto3.ParameterStatus{Name: "integer_datetimes", Value: "on"},
		&pgproto3.BackendKeyData{ProcessID: uint32(sess.PID), SecretKey: uint32(sess.SecretKey)},
		&pgproto3.ReadyForQuery{TxStatus: 'I'},
	); err != nil {
		return
	}

	reg := catalog.New(sess.DB())
	catalogHandler := catalog.NewHandler(sess.DB(), reg)
	exec := executor.New(sess, catalogHandler, reg, s.caches)

	s.messageLoop(s.ctx, conn, sess, exec)
}

func (s *Server) handleCancel(req *pgproto3.CancelRequest) {
	target, ok := s.sess.Lookup(int32(req.ProcessID), int32(req.SecretKey))
	if !ok {
		return
	}
	target.RequestCancel()
}

func (s *Server) messageLoop(ctx context.Context, conn *protocol.Conn, sess *session.Session, exec *executor.Executor) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Debug("server: receive: %v", err)
			}
			return
		}

		switch m := msg.(type) {
		case *pgproto3.Terminate:
			return

		case *pgproto3.Query:
			if target, ok := executor.ClassifyCopy(m.String); ok {
				if err := s.handleCopy(ctx, conn, sess, exec, target); err != nil {
					if !errors.Is(err, net.ErrClosed) {
						s.log.Debug("server: copy: %v", err)
					}
					return
				}
				continue
			}
			replies := exec.SimpleQuery(ctx, m.String)
			sess.TxStatus = readyState(replies)
			if err := protocol.WriteMessages(conn.Conn, replies...); err != nil {
				return
			}

		case *pgproto3.Parse:
			if err := exec.Parse(ctx, m); err != nil {
				if writeErr := protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)}); writeErr != nil {
					return
				}
				continue
			}
			if err := protocol.WriteMessages(conn.Conn, &pgproto3.ParseComplete{}); err != nil {
				return
			}

		case *pgproto3.Bind:
			if err := exec.Bind(ctx, m); err != nil {
				if writeErr := protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)}); writeErr != nil {
					return
				}
				continue
			}
			if err := protocol.WriteMessages(conn.Conn, &pgproto3.BindComplete{}); err != nil {
				return
			}

		case *pgproto3.Describe:
			msgs, err := exec.Describe(ctx, m)
			if err != nil {
				if writeErr := protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)}); writeErr != nil {
					return
				}
				continue
			}
			if err := protocol.WriteMessages(conn.Conn, msgs...); err != nil {
				return
			}

		case *pgproto3.Execute:
			if sess.CancelRequested() {
				sess.ClearCancel()
				if err := protocol.WriteMessages(conn.Conn, errorResponse(pgerror.New(pgerror.QueryCanceled, "canceling statement due to user request"))); err != nil {
					return
				}
				continue
			}
			msgs, err := exec.Execute(ctx, m)
			if err != nil {
				if writeErr := protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)}); writeErr != nil {
					return
				}
				continue
			}
			if err := protocol.WriteMessages(conn.Conn, msgs...); err != nil {
				return
			}

		case *pgproto3.Close:
			if err := protocol.WriteMessages(conn.Conn, exec.Close(m)); err != nil {
				return
			}

		case *pgproto3.Sync:
			if err := protocol.WriteMessages(conn.Conn, exec.Sync()); err != nil {
				return
			}

		case *pgproto3.Flush:
			// No buffered-but-unsent responses in this implementation; nothing to do.

		default:
			s.log.Debug("server: unhandled message type %T", m)
		}
	}
}

// handleCopy diverts the message loop into the COPY sub-protocol for the
// duration of one COPY statement: a CopyInResponse/CopyOutResponse
// followed by a back-and-forth of CopyData messages instead of the normal
// one-shot Query/CommandComplete exchange.
func (s *Server) handleCopy(ctx context.Context, conn *protocol.Conn, sess *session.Session, exec *executor.Executor, target executor.CopyTarget) error {
	if target.ToStdout {
		return s.handleCopyOut(ctx, conn, sess, exec, target)
	}
	return s.handleCopyIn(ctx, conn, sess, exec, target)
}

func (s *Server) handleCopyIn(ctx context.Context, conn *protocol.Conn, sess *session.Session, exec *executor.Executor, target executor.CopyTarget) error {
	resp, cols, err := exec.PrepareCopyIn(ctx, target)
	if err != nil {
		return protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)})
	}
	if err := protocol.WriteMessages(conn.Conn, resp); err != nil {
		return err
	}

	var partial strings.Builder
	var rowCount int64
	var copyErr error

readLoop:
	for {
		msg, err := conn.Receive()
		if err != nil {
			return err
		}
		switch cm := msg.(type) {
		case *pgproto3.CopyData:
			partial.Write(cm.Data)
			for {
				buf := partial.String()
				idx := strings.IndexByte(buf, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimSuffix(buf[:idx], "\r")
				partial.Reset()
				partial.WriteString(buf[idx+1:])
				if line == `\.` || line == "" {
					continue
				}
				if copyErr == nil {
					if err := exec.CopyInRow(ctx, target.Table, cols, line); err != nil {
						copyErr = err
					} else {
						rowCount++
					}
				}
			}

		case *pgproto3.CopyDone:
			break readLoop

		case *pgproto3.CopyFail:
			copyErr = pgerror.New(pgerror.QueryCanceled, fmt.Sprintf("COPY failed: %s", cm.Message))
			break readLoop

		default:
			return fmt.Errorf("server: unexpected message %T during COPY IN", msg)
		}
	}

	if copyErr == nil {
		if trailing := strings.TrimSpace(partial.String()); trailing != "" && trailing != `\.` {
			if err := exec.CopyInRow(ctx, target.Table, cols, trailing); err != nil {
				copyErr = err
			} else {
				rowCount++
			}
		}
	}
	if copyErr != nil {
		sess.TxStatus = session.TxInFailed
		return protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(copyErr)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)})
	}

	return protocol.WriteMessages(conn.Conn,
		&pgproto3.CommandComplete{CommandTag: []byte(fmt.Sprintf("COPY %d", rowCount))},
		&pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)},
	)
}

func (s *Server) handleCopyOut(ctx context.Context, conn *protocol.Conn, sess *session.Session, exec *executor.Executor, target executor.CopyTarget) error {
	resp, cols, err := exec.PrepareCopyOut(ctx, target)
	if err != nil {
		return protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)})
	}
	rows, err := exec.OpenCopyOut(ctx, target.Table, cols)
	if err != nil {
		return protocol.WriteMessages(conn.Conn, errorResponse(pgerror.As(err)), &pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)})
	}
	defer rows.Close()

	if err := protocol.WriteMessages(conn.Conn, resp); err != nil {
		return err
	}

	var rowCount int64
	for rows.Next() {
		line, err := exec.ScanCopyOutRow(rows, len(cols))
		if err != nil {
			return err
		}
		if err := protocol.WriteMessages(conn.Conn, &pgproto3.CopyData{Data: append([]byte(line), '\n')}); err != nil {
			return err
		}
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return protocol.WriteMessages(conn.Conn,
		&pgproto3.CopyDone{},
		&pgproto3.CommandComplete{CommandTag: []byte(fmt.Sprintf("COPY %d", rowCount))},
		&pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)},
	)
}

// readyState inspects the final ReadyForQuery message SimpleQuery appended
// so the session's TxStatus field mirrors what was actually sent.
func readyState(msgs []pgproto3.BackendMessage) session.TxStatus {
	for i := len(msgs) - 1; i >= 0; i-- {
		if r, ok := msgs[i].(*pgproto3.ReadyForQuery); ok {
			return session.TxStatus(r.TxStatus)
		}
	}
	return session.TxIdle
}

func errorResponse(e *pgerror.Error) *pgproto3.ErrorResponse {
	severity := e.Severity
	if severity == "" {
		severity = "ERROR"
	}
	return &pgproto3.ErrorResponse{
		Severity: severity,
		Code:     e.Code,
		Message:  e.Message,
		Detail:   e.Detail,
		Hint:     e.Hint,
	}
}
