package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seshat-labs/seshat/internal/database"
)

// Store manages session persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines. Every
// operation validates its arguments before touching the database and
// returns deep copies, never references into rows being written.
type Store struct {
	pool   *pgxpool.Pool
	cfg    database.Config
	logger *slog.Logger

	sqlSelectSession string
	sqlUpsertSession string
	sqlDeleteSession string
	sqlDeleteParts   string
	sqlDeleteEvent   string
	sqlInsertEvent   string
	sqlInsertPart    string
}

// New creates a session Store. The database config supplies the schema
// qualification applied to every table name; a nil logger falls back to
// slog.Default.
func New(pool *pgxpool.Pool, cfg database.Config, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessions := cfg.Table("sessions")
	events := cfg.Table("events")
	parts := cfg.Table("event_content_parts")

	return &Store{
		pool:   pool,
		cfg:    cfg,
		logger: logger,

		sqlSelectSession: fmt.Sprintf(
			`SELECT id, app_name, user_id, state, last_update_time, event_data
			 FROM %s WHERE id = $1`, sessions),
		sqlUpsertSession: fmt.Sprintf(
			`INSERT INTO %s (id, app_name, user_id, state, last_update_time, event_data)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			   app_name = EXCLUDED.app_name,
			   user_id = EXCLUDED.user_id,
			   state = EXCLUDED.state,
			   last_update_time = EXCLUDED.last_update_time,
			   event_data = EXCLUDED.event_data`, sessions),
		sqlDeleteSession: fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, sessions),
		sqlDeleteParts:   fmt.Sprintf(`DELETE FROM %s WHERE event_id = $1`, parts),
		sqlDeleteEvent:   fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, events),
		sqlInsertEvent: fmt.Sprintf(
			`INSERT INTO %s (id, session_id, author,
			   actions_state_delta, actions_artifact_delta, actions_requested_auth_configs,
			   actions_transfer_to_agent, content_role, timestamp, invocation_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, events),
		sqlInsertPart: fmt.Sprintf(
			`INSERT INTO %s (event_id, part_index, session_id, part_type, text_content,
			   function_call_id, function_call_name, function_call_args,
			   function_response_id, function_response_name, function_response_data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, parts),
	}, nil
}

// CreateSession creates a new session owned by (appName, userID). A
// blank sessionID gets a generated UUID; a nil state becomes an empty
// mapping. Returns a deep copy of the stored session.
func (s *Store) CreateSession(ctx context.Context, appName, userID string, state map[string]any, sessionID string) (*Session, error) {
	if appName == "" {
		return nil, ErrAppNameRequired
	}
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = uuid.NewString()
	}

	sess := &Session{
		ID:             id,
		AppName:        appName,
		UserID:         userID,
		State:          copyMap(state),
		Events:         []*Event{},
		LastUpdateTime: time.Now().UTC(),
	}
	if sess.State == nil {
		sess.State = map[string]any{}
	}

	if err := s.saveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session %s: %w", id, err)
	}

	s.logger.Info("session created", "session_id", id, "app_name", appName, "user_id", userID)
	return sess.Copy(), nil
}

// GetSession retrieves a session by id. Returns (nil, nil) when the
// session does not exist or is owned by a different (appName, userID)
// pair; ownership mismatches never leak another tenant's session.
func (s *Store) GetSession(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	if appName == "" {
		return nil, ErrAppNameRequired
	}
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	stored, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", sessionID, err)
	}
	if stored == nil {
		s.logger.Debug("session not found", "session_id", sessionID)
		return nil, nil
	}

	if stored.AppName != appName || stored.UserID != userID {
		s.logger.Warn("session found but belongs to different app/user",
			"session_id", sessionID,
			"expected_app", appName, "expected_user", userID,
			"found_app", stored.AppName, "found_user", stored.UserID)
		return nil, nil
	}

	return stored.Copy(), nil
}

// ListSessions is not implemented for the PostgreSQL store; it always
// returns an empty slice and logs a warning so the gap is visible.
func (s *Store) ListSessions(ctx context.Context, appName, userID string) ([]*Session, error) {
	if appName == "" {
		return nil, ErrAppNameRequired
	}
	s.logger.Warn("ListSessions is not implemented for the PostgreSQL session store, returning empty result",
		"app_name", appName, "user_id", userID)
	return []*Session{}, nil
}

// DeleteSession deletes a session and, via cascading foreign keys, all
// of its events and content parts. Deleting a session that does not
// exist is not an error.
func (s *Store) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	if appName == "" {
		return ErrAppNameRequired
	}
	if userID == "" {
		return ErrUserIDRequired
	}
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	if _, err := s.pool.Exec(ctx, s.sqlDeleteSession, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	s.logger.Info("session deleted (or did not exist)", "session_id", sessionID)
	return nil
}

// AppendEvent appends one event to the stored session's log and echoes
// the event back. Partial (streaming-in-progress) events are a no-op.
//
// The caller's session object is never mutated: the current stored
// session is re-read, the event is appended to a copy of its event list,
// and the whole session is saved. A session that has vanished since the
// caller loaded it is a contract violation and raises ErrSessionNotFound
// rather than silently recreating it.
func (s *Store) AppendEvent(ctx context.Context, sess *Session, event *Event) (*Event, error) {
	if sess == nil {
		return nil, ErrNilSession
	}
	if event == nil {
		return nil, ErrNilEvent
	}
	if event.Partial {
		s.logger.Debug("skipping partial event", "event_id", event.ID)
		return event, nil
	}
	if sess.AppName == "" {
		return nil, ErrAppNameRequired
	}
	if sess.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if sess.ID == "" {
		return nil, ErrSessionIDRequired
	}

	stored, err := s.loadSession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("appending event to session %s: %w", sess.ID, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("appending event to session %s: %w", sess.ID, ErrSessionNotFound)
	}

	updated := stored.Copy()
	updated.Events = append(updated.Events, event.Copy())
	updated.LastUpdateTime = time.Now().UTC()

	if err := s.saveSession(ctx, updated); err != nil {
		return nil, fmt.Errorf("appending event to session %s: %w", sess.ID, err)
	}

	s.logger.Debug("event appended", "session_id", sess.ID, "event_id", event.ID)
	return event, nil
}

// saveSession persists a session with a full-replace upsert.
//
// Two transactions in sequence, matching the two commits of the original
// protocol: first the session row (including the complete event list
// re-serialized into event_data), then the relational event and
// content-part rows. A failure in the second phase rolls back only its
// own inserts; the event_data blob on the session row remains the source
// of truth for session reconstruction, so reads stay consistent.
func (s *Store) saveSession(ctx context.Context, sess *Session) error {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	eventJSON, err := encodeEventData(sess.Events)
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, s.sqlUpsertSession,
			sess.ID, sess.AppName, sess.UserID, stateJSON, sess.LastUpdateTime, eventJSON)
		if execErr != nil {
			return fmt.Errorf("upserting session row: %w", execErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.insertEvents(ctx, tx, sess)
	})
}

// insertEvents re-derives the relational rows for every event in the
// session. Events are immutable once appended, but each save reprocesses
// the full in-memory list, so stale rows for an event id are deleted
// before its row set is reinserted. This keeps re-saving idempotent: no
// duplicate or orphaned part rows.
func (s *Store) insertEvents(ctx context.Context, q database.Querier, sess *Session) error {
	for _, event := range sess.Events {
		if _, err := q.Exec(ctx, s.sqlDeleteParts, event.ID); err != nil {
			return fmt.Errorf("deleting content parts for event %s: %w", event.ID, err)
		}
		if _, err := q.Exec(ctx, s.sqlDeleteEvent, event.ID); err != nil {
			return fmt.Errorf("deleting event %s: %w", event.ID, err)
		}

		actions := event.Actions
		if actions == nil {
			actions = &EventActions{}
		}
		stateDelta, err := marshalOrEmpty(actions.StateDelta)
		if err != nil {
			return fmt.Errorf("encoding state delta for event %s: %w", event.ID, err)
		}
		artifactDelta, err := marshalOrEmpty(actions.ArtifactDelta)
		if err != nil {
			return fmt.Errorf("encoding artifact delta for event %s: %w", event.ID, err)
		}
		authConfigs, err := marshalOrEmpty(actions.RequestedAuthConfigs)
		if err != nil {
			return fmt.Errorf("encoding auth configs for event %s: %w", event.ID, err)
		}

		var contentRole *string
		if event.Content != nil && event.Content.Role != "" {
			contentRole = &event.Content.Role
		}

		if _, err := q.Exec(ctx, s.sqlInsertEvent,
			event.ID, sess.ID, event.Author,
			stateDelta, artifactDelta, authConfigs,
			nullableString(actions.TransferToAgent), contentRole,
			int64(event.Timestamp), nullableString(event.InvocationID),
		); err != nil {
			return fmt.Errorf("inserting event %s: %w", event.ID, err)
		}

		if event.Content == nil {
			continue
		}
		partIndex := 0
		for _, part := range event.Content.Parts {
			if err := s.insertPart(ctx, q, sess.ID, event.ID, partIndex, part); err != nil {
				return err
			}
			if part.Type() != "" {
				partIndex++
			}
		}
	}
	return nil
}

// insertPart writes one content-part row. Parts matching none of the
// known kinds are skipped.
func (s *Store) insertPart(ctx context.Context, q database.Querier, sessionID, eventID string, index int, part *Part) error {
	var (
		textContent *string
		callID      *string
		callName    *string
		callArgs    []byte
		respID      *string
		respName    *string
		respData    []byte
		err         error
	)

	partType := part.Type()
	switch partType {
	case PartTypeText:
		textContent = part.Text
	case PartTypeFunctionCall:
		callID = nullableString(part.FunctionCall.ID)
		callName = nullableString(part.FunctionCall.Name)
		if callArgs, err = marshalOrEmpty(part.FunctionCall.Args); err != nil {
			return fmt.Errorf("encoding function call args for event %s: %w", eventID, err)
		}
	case PartTypeFunctionResponse:
		respID = nullableString(part.FunctionResponse.ID)
		respName = nullableString(part.FunctionResponse.Name)
		if respData, err = marshalOrEmpty(part.FunctionResponse.Response); err != nil {
			return fmt.Errorf("encoding function response for event %s: %w", eventID, err)
		}
	default:
		return nil
	}

	if _, err := q.Exec(ctx, s.sqlInsertPart,
		eventID, index, sessionID, partType, textContent,
		callID, callName, callArgs,
		respID, respName, respData,
	); err != nil {
		return fmt.Errorf("inserting content part for event %s: %w", eventID, err)
	}
	return nil
}

// loadSession reads one session row by id and reconstructs the
// application-level Session from it. Returns (nil, nil) when no row
// exists. Corrupt state or event payloads degrade with a warning instead
// of failing the read.
func (s *Store) loadSession(ctx context.Context, sessionID string) (*Session, error) {
	var (
		sess           Session
		stateJSON      []byte
		eventJSON      []byte
		lastUpdateTime time.Time
	)

	err := s.pool.QueryRow(ctx, s.sqlSelectSession, sessionID).Scan(
		&sess.ID, &sess.AppName, &sess.UserID, &stateJSON, &lastUpdateTime, &eventJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("querying session row: %w", err)
	}

	sess.State = map[string]any{}
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
			s.logger.Warn("session state is not a JSON object, using empty state",
				"session_id", sessionID, "error", err)
			sess.State = map[string]any{}
		}
	}

	sess.LastUpdateTime = lastUpdateTime.UTC()
	sess.Events = decodeEventData(eventJSON, sessionID, s.logger)
	if sess.Events == nil {
		sess.Events = []*Event{}
	}
	return &sess, nil
}

// marshalOrEmpty encodes a map as JSON, with nil becoming the empty
// object so JSONB columns never hold SQL NULL for actions data.
func marshalOrEmpty(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
