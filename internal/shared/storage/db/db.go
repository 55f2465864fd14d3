package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/telemetry"
)

// Profile names a process kind with its own pool sizing.
type Profile string

const (
	// ProfileServer is the API process. Status polling and event streams
	// read the jobs table concurrently with in-process runs writing it.
	ProfileServer Profile = "server"
	// ProfileWorker is a queue consumer. Each in-flight job holds at most one
	// connection at a time while it saves stage transitions.
	ProfileWorker Profile = "worker"
	// ProfileMigrate is the one-shot migration command.
	ProfileMigrate Profile = "migrate"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var profiles = map[Profile]Options{
	ProfileServer:  {MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxIdleTime: 2 * time.Minute, ConnMaxLifetime: time.Hour, PingTimeout: 5 * time.Second},
	ProfileWorker:  {MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxIdleTime: time.Minute, ConnMaxLifetime: 30 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileMigrate: {MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxIdleTime: 2 * time.Minute, ConnMaxLifetime: time.Hour, PingTimeout: 10 * time.Second},
}

// Options returns the profile's pool settings with DB_* environment
// overrides applied. Unknown profiles get the server settings.
func (p Profile) Options() Options {
	opts, ok := profiles[p]
	if !ok {
		opts = profiles[ProfileServer]
	}
	return opts.withEnv()
}

func (o Options) withEnv() Options {
	ints := []struct {
		key string
		dst *int
	}{
		{"DB_MAX_OPEN_CONNS", &o.MaxOpenConns},
		{"DB_MAX_IDLE_CONNS", &o.MaxIdleConns},
	}
	for _, e := range ints {
		if v, ok := readEnvInt(e.key); ok {
			*e.dst = v
		}
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", &o.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", &o.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", &o.PingTimeout},
	}
	for _, e := range durations {
		if v, ok := readEnvDuration(e.key); ok {
			*e.dst = v
		}
	}
	return o
}

var openDB = sql.Open

// Connect opens the jobs database and verifies connectivity. The returned
// pool is registered with the metrics registry.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	opts.apply(db)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	metrics.WatchDB(db, "jobs")
	stats := db.Stats()
	telemetry.Info("db.connect", map[string]any{
		"max_open":      stats.MaxOpenConnections,
		"open":          stats.OpenConnections,
		"ping_timeout":  timeout.String(),
		"conn_lifetime": opts.ConnMaxLifetime.String(),
	})
	return db, nil
}

func (o Options) apply(db *sql.DB) {
	maxOpen, maxIdle, lifetime := o.MaxOpenConns, o.MaxIdleConns, o.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	if o.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(o.ConnMaxIdleTime)
	}
}

var shared struct {
	mu sync.Mutex
	db *sql.DB
}

// Shared returns the process-wide pool, connecting on first use. Callers
// block while a connect is in progress; a failed connect is retried by the
// next call.
func Shared(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.db != nil {
		return shared.db, nil
	}
	db, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	shared.db = db
	return db, nil
}

func readEnvInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "err": err})
		return 0, false
	}
	return val, true
}

func readEnvDuration(key string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "err": err})
		return 0, false
	}
	return val, true
}
