// Package memory provides retrieval of past conversation text from the
// relational event log written by the session store.
//
// Search is a case-insensitive substring match over stored text parts,
// scoped to an (app name, user id) pair. There is no ranking: result
// order is whatever the scan yields. Semantic or full-text search is out
// of scope for this service.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seshat-labs/seshat/internal/database"
	"github.com/seshat-labs/seshat/internal/session"
)

// Entry is a single piece of retrievable text extracted from a past
// event: the matching content, who authored it, and when.
type Entry struct {
	Content   *session.Content
	Author    string
	Timestamp string
}

// Service answers memory-search queries against the session store's
// tables. It never writes: the session store is the source of truth for
// event durability.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	sqlSearch string
}

// New creates a memory Service over the same pool and schema
// configuration as the session store. A nil logger falls back to
// slog.Default.
func New(pool *pgxpool.Pool, cfg database.Config, logger *slog.Logger) (*Service, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		pool:   pool,
		logger: logger,
		sqlSearch: fmt.Sprintf(
			`SELECT e.author, e.timestamp, p.text_content
			 FROM %s p
			 JOIN %s e ON e.id = p.event_id
			 JOIN %s s ON s.id = e.session_id
			 WHERE s.app_name = $1
			   AND s.user_id = $2
			   AND p.part_type = 'text'
			   AND p.text_content IS NOT NULL
			   AND lower(p.text_content) LIKE '%%' || lower($3) || '%%'`,
			cfg.Table("event_content_parts"), cfg.Table("events"), cfg.Table("sessions")),
	}, nil
}

// Search returns every stored text part owned by (appName, userID) that
// contains query as a case-insensitive substring. Non-text parts are
// never returned.
func (s *Service) Search(ctx context.Context, appName, userID, query string) ([]*Entry, error) {
	if appName == "" {
		return nil, session.ErrAppNameRequired
	}
	if userID == "" {
		return nil, session.ErrUserIDRequired
	}

	rows, err := s.pool.Query(ctx, s.sqlSearch, appName, userID, query)
	if err != nil {
		return nil, fmt.Errorf("searching memory for app %s user %s: %w", appName, userID, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			author    string
			timestamp int64
			text      string
		)
		if err := rows.Scan(&author, &timestamp, &text); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		entries = append(entries, &Entry{
			Content:   &session.Content{Parts: []*session.Part{session.TextPart(text)}},
			Author:    author,
			Timestamp: formatTimestamp(timestamp),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading memory rows: %w", err)
	}

	s.logger.Debug("memory search finished",
		"app_name", appName, "user_id", userID, "matches", len(entries))
	return entries, nil
}

// AddSession is a no-op: the session store already persists every event,
// so there is nothing to copy into memory. The method exists to satisfy
// the memory-service contract shared with other backends.
func (s *Service) AddSession(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return session.ErrNilSession
	}
	s.logger.Debug("session events are already durable, nothing to add to memory",
		"session_id", sess.ID)
	return nil
}

// formatTimestamp renders an event's epoch-seconds timestamp for memory
// entries.
func formatTimestamp(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
