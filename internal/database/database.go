// Package database owns PostgreSQL connection pooling and transaction
// scoping for the session and memory stores.
//
// A [Manager] holds at most one pool per process, keyed by its
// (connection URL, schema) configuration. Requesting a pool with the
// same configuration reuses it; requesting a different configuration
// replaces the cached pool with a warning, since that usually indicates
// configuration drift (test isolation being the common legitimate case).
// The manager is an explicit, caller-owned object: construct one at
// startup and pass it to the store constructors.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the common interface satisfied by both *pgxpool.Pool and
// pgx.Tx, so store code can run the same SQL inside or outside a
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config identifies a pool: the connection URL plus an optional schema
// that qualifies every table name. An empty schema means the default
// (public) schema.
type Config struct {
	URL    string
	Schema string
}

// Validate checks that the URL carries the expected scheme and that the
// schema, if set, is a safe SQL identifier.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("database URL cannot be empty")
	}
	if !strings.HasPrefix(c.URL, "postgres://") && !strings.HasPrefix(c.URL, "postgresql://") {
		return fmt.Errorf("database URL must start with postgres:// or postgresql://")
	}
	if c.Schema != "" && !validIdentifier(c.Schema) {
		return fmt.Errorf("invalid schema name: %q", c.Schema)
	}
	return nil
}

// Table returns the schema-qualified name for a table. Schema names are
// validated at pool construction, so interpolation here is safe.
func (c Config) Table(name string) string {
	if c.Schema == "" {
		return name
	}
	return c.Schema + "." + name
}

// validIdentifier reports whether s is a plain SQL identifier: a letter
// or underscore followed by letters, digits, or underscores.
func validIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

// Manager caches one connection pool per (URL, schema) configuration.
//
// Manager is safe for concurrent use, but replacing the configuration
// while traffic is in flight on the old pool is not coordinated: the old
// pool is closed immediately. Do not reconfigure concurrently with
// active operations.
type Manager struct {
	mu     sync.Mutex
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Get returns the pool for cfg, creating it on first use. If a pool
// already exists for a different configuration it is closed and replaced
// with a warning.
func (m *Manager) Get(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		if m.cfg == cfg {
			return m.pool, nil
		}
		m.logger.Warn("database pool already exists with different configuration, replacing",
			"url", MaskURL(cfg.URL),
			"schema", schemaLabel(cfg.Schema))
		m.pool.Close()
		m.pool = nil
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	m.pool = pool
	m.cfg = cfg
	m.logger.Info("database pool created",
		"url", MaskURL(cfg.URL),
		"schema", schemaLabel(cfg.Schema))
	return pool, nil
}

// Close releases the cached pool, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}

func schemaLabel(schema string) string {
	if schema == "" {
		return "default"
	}
	return schema
}

// WithTx runs fn inside a transaction: commit on normal return, rollback
// on error or panic. The connection is returned to the pool either way.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MaskURL hides the password component of a connection URL for logging.
func MaskURL(connURL string) string {
	at := strings.LastIndex(connURL, "@")
	if at < 0 {
		return connURL
	}
	scheme := strings.Index(connURL, "://")
	if scheme < 0 {
		return connURL
	}
	userinfo := connURL[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return connURL
	}
	return connURL[:scheme+3] + userinfo[:colon] + ":***" + connURL[at:]
}
