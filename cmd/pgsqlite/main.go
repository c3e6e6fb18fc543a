// Command pgsqlite runs a PostgreSQL wire-protocol server backed by an
// embedded SQLite database. Flag parsing follows the teacher's
// cmd/gateway main: config.FromEnv() first, then flags override whatever
// the environment set.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgsqlite/pgsqlite/internal/config"
	"github.com/pgsqlite/pgsqlite/internal/drift"
	"github.com/pgsqlite/pgsqlite/internal/logging"
	"github.com/pgsqlite/pgsqlite/internal/migration"
	"github.com/pgsqlite/pgsqlite/internal/server"
)

// Exit codes per the external-interfaces contract: 0 normal, 1 startup
// error, 2 schema version outdated without --migrate, 3 schema drift
// detected, 4 migration failure.
const (
	exitOK              = 0
	exitStartupError    = 1
	exitSchemaOutdated  = 2
	exitSchemaDrift     = 3
	exitMigrationFailed = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	port := flag.Int("port", cfg.Port, "TCP port to listen on")
	noTCP := flag.Bool("no-tcp", cfg.NoTCP, "disable the TCP listener, unix socket only")
	socketDir := flag.String("socket-dir", cfg.SocketDir, "directory for the unix domain socket")
	dbPath := flag.String("db-path", cfg.DBPath, "path to the SQLite database file")
	inMemory := flag.Bool("in-memory", cfg.InMemory, "use an in-memory database instead of a file")
	sslEnabled := flag.Bool("ssl", cfg.SSLEnabled, "enable TLS on the TCP listener")
	sslCert := flag.String("ssl-cert", cfg.SSLCert, "TLS certificate path")
	sslKey := flag.String("ssl-key", cfg.SSLKey, "TLS key path")
	journalMode := flag.String("journal-mode", cfg.JournalMode, "SQLite journal_mode PRAGMA")
	synchronous := flag.String("synchronous", cfg.Synchronous, "SQLite synchronous PRAGMA")
	cacheSizeKB := flag.Int("cache-size-kb", cfg.CacheSizeKB, "SQLite cache_size PRAGMA, in KB")
	mmapSizeMB := flag.Int("mmap-size-mb", cfg.MmapSizeMB, "SQLite mmap_size PRAGMA, in MB")
	queryCacheSize := flag.Int("query-cache-size", cfg.QueryCacheSize, "plan cache capacity")
	resultCacheSize := flag.Int("result-cache-size", cfg.ResultCacheSize, "result cache capacity")
	stmtPoolCap := flag.Int("statement-pool-cap", cfg.StatementPoolCap, "prepared statement pool capacity")
	memThreshold := flag.Int("memory-threshold-mb", cfg.MemoryThresholdMB, "memory threshold for cache trimming, in MB")
	highMemThreshold := flag.Int("high-memory-threshold-mb", cfg.HighMemoryThresholdMB, "memory threshold for dropping the statement pool, in MB")
	migrate := flag.Bool("migrate", cfg.Migrate, "apply pending migrations at startup instead of exiting")
	authUsername := flag.String("auth-username", cfg.AuthUsername, "username required when auth-password-hash is set")
	authPasswordHash := flag.String("auth-password-hash", cfg.AuthPasswordHash, "bcrypt hash required of clients; empty means trust")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	flag.Parse()

	cfg.Port = *port
	cfg.NoTCP = *noTCP
	cfg.SocketDir = *socketDir
	cfg.DBPath = *dbPath
	cfg.InMemory = *inMemory
	cfg.SSLEnabled = *sslEnabled
	cfg.SSLCert = *sslCert
	cfg.SSLKey = *sslKey
	cfg.JournalMode = *journalMode
	cfg.Synchronous = *synchronous
	cfg.CacheSizeKB = *cacheSizeKB
	cfg.MmapSizeMB = *mmapSizeMB
	cfg.QueryCacheSize = *queryCacheSize
	cfg.ResultCacheSize = *resultCacheSize
	cfg.StatementPoolCap = *stmtPoolCap
	cfg.MemoryThresholdMB = *memThreshold
	cfg.HighMemoryThresholdMB = *highMemThreshold
	cfg.Migrate = *migrate
	cfg.AuthUsername = *authUsername
	cfg.AuthPasswordHash = *authPasswordHash
	cfg.LogLevel = *logLevel

	log := logging.New(logging.ParseLevel(cfg.LogLevel))

	if !cfg.InMemory {
		if code := checkSchema(cfg, log); code != exitOK {
			return code
		}
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("startup: %v", err)
		return exitStartupError
	}
	if err := srv.Start(); err != nil {
		log.Error("startup: %v", err)
		return exitStartupError
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	if err := srv.Stop(); err != nil {
		log.Warn("shutdown: %v", err)
	}
	srv.Wait()
	return exitOK
}

// checkSchema opens the target database file once at startup (outside any
// client session) to gate on schema version and drift before the server
// starts accepting connections, per the exit-code contract.
func checkSchema(cfg config.Config, log *logging.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", cfg.DBPath))
	if err != nil {
		log.Error("startup: open %s: %v", cfg.DBPath, err)
		return exitStartupError
	}
	defer db.Close()

	runner := migration.New(db)
	pending, err := runner.Pending(ctx)
	if err != nil {
		log.Error("startup: check migrations: %v", err)
		return exitStartupError
	}
	if len(pending) > 0 {
		if !cfg.Migrate {
			log.Error("startup: %d pending migration(s), rerun with --migrate", len(pending))
			return exitSchemaOutdated
		}
		if err := runner.Up(ctx); err != nil {
			log.Error("startup: migration failed: %v", err)
			return exitMigrationFailed
		}
	}

	findings, err := drift.New(db).Check(ctx)
	if err != nil {
		log.Error("startup: drift check: %v", err)
		return exitStartupError
	}
	if len(findings) > 0 {
		for _, f := range findings {
			log.Error("drift: %s.%s: %s", f.Table, f.Column, f.Problem)
		}
		return exitSchemaDrift
	}

	return exitOK
}
