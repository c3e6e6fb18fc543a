// Package config loads pgsqlite's runtime configuration the way the
// teacher's internal/config.FromEnv does: every field has a PGSQLITE_*
// environment variable, and CLI flags (parsed in cmd/pgsqlite) take
// precedence over whatever FromEnv already populated.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Listen endpoints
	Port      int
	NoTCP     bool
	SocketDir string

	// Storage
	DBPath   string
	InMemory bool

	// TLS
	SSLEnabled bool
	SSLCert    string
	SSLKey     string

	// PRAGMA overrides
	JournalMode string
	Synchronous string
	CacheSizeKB int
	MmapSizeMB  int

	// Caches
	QueryCacheSize   int
	QueryCacheTTL    time.Duration
	ResultCacheSize  int
	ResultCacheTTL   time.Duration
	StatementPoolCap int
	SchemaCacheTTL   time.Duration

	// Memory
	MemoryThresholdMB     int
	HighMemoryThresholdMB int
	LargeValueThresholdKB int

	// Migrations
	Migrate bool

	// Auth; empty AuthPasswordHash means trust (no password required)
	AuthUsername     string
	AuthPasswordHash string

	LogLevel string
}

func Default() Config {
	return Config{
		Port:                  5432,
		SocketDir:             "/tmp",
		DBPath:                "pgsqlite.db",
		JournalMode:           "WAL",
		Synchronous:           "NORMAL",
		CacheSizeKB:           2000,
		MmapSizeMB:            256,
		QueryCacheSize:        1000,
		QueryCacheTTL:         600 * time.Second,
		ResultCacheSize:       100,
		ResultCacheTTL:        60 * time.Second,
		StatementPoolCap:      100,
		SchemaCacheTTL:        300 * time.Second,
		MemoryThresholdMB:     512,
		HighMemoryThresholdMB: 1024,
		LargeValueThresholdKB: 8,
		AuthUsername:          "postgres",
		LogLevel:              "info",
	}
}

// FromEnv overlays PGSQLITE_* environment variables onto the defaults.
func FromEnv() Config {
	c := Default()
	c.Port = envInt("PGSQLITE_PORT", c.Port)
	c.NoTCP = envBool("PGSQLITE_NO_TCP", c.NoTCP)
	c.SocketDir = envOr("PGSQLITE_SOCKET_DIR", c.SocketDir)
	c.DBPath = envOr("PGSQLITE_DB_PATH", c.DBPath)
	c.InMemory = envBool("PGSQLITE_IN_MEMORY", c.InMemory)
	c.SSLEnabled = envBool("PGSQLITE_SSL", c.SSLEnabled)
	c.SSLCert = envOr("PGSQLITE_SSL_CERT", c.SSLCert)
	c.SSLKey = envOr("PGSQLITE_SSL_KEY", c.SSLKey)
	c.JournalMode = envOr("PGSQLITE_JOURNAL_MODE", c.JournalMode)
	c.Synchronous = envOr("PGSQLITE_SYNCHRONOUS", c.Synchronous)
	c.CacheSizeKB = envInt("PGSQLITE_CACHE_SIZE_KB", c.CacheSizeKB)
	c.MmapSizeMB = envInt("PGSQLITE_MMAP_SIZE_MB", c.MmapSizeMB)
	c.QueryCacheSize = envInt("PGSQLITE_QUERY_CACHE_SIZE", c.QueryCacheSize)
	c.ResultCacheSize = envInt("PGSQLITE_RESULT_CACHE_SIZE", c.ResultCacheSize)
	c.StatementPoolCap = envInt("PGSQLITE_STATEMENT_POOL_CAP", c.StatementPoolCap)
	c.MemoryThresholdMB = envInt("PGSQLITE_MEMORY_THRESHOLD_MB", c.MemoryThresholdMB)
	c.HighMemoryThresholdMB = envInt("PGSQLITE_HIGH_MEMORY_THRESHOLD_MB", c.HighMemoryThresholdMB)
	c.LargeValueThresholdKB = envInt("PGSQLITE_LARGE_VALUE_THRESHOLD_KB", c.LargeValueThresholdKB)
	c.Migrate = envBool("PGSQLITE_MIGRATE", c.Migrate)
	c.AuthUsername = envOr("PGSQLITE_AUTH_USERNAME", c.AuthUsername)
	c.AuthPasswordHash = envOr("PGSQLITE_AUTH_PASSWORD_HASH", c.AuthPasswordHash)
	c.LogLevel = envOr("PGSQLITE_LOG_LEVEL", c.LogLevel)
	return c
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// SocketPath returns the PG-convention unix socket path for this config.
func (c Config) SocketPath() string {
	return c.SocketDir + "/.s.PGSQL." + strconv.Itoa(c.Port)
}
