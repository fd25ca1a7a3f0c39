// Package session persists conversational-agent sessions in PostgreSQL.
//
// A session is a conversation context: identity (app name, user id,
// session id), arbitrary key/value state, and an append-only log of
// events. The [Store] handles persistence while the agent runtime
// handles conversation logic.
//
// Key operations:
//
//   - Session lifecycle: [Store.CreateSession], [Store.GetSession], [Store.ListSessions], [Store.DeleteSession]
//   - Event log: [Store.AppendEvent]
//
// # Storage Layout
//
// Each session is one row in the sessions table. The full event list is
// serialized redundantly into the row's event_data JSONB column for fast
// reconstruction, and additionally normalized into events and
// event_content_parts rows so that memory search can query text parts
// relationally. Saving is a full-replace upsert: the session row is
// overwritten and every event's relational rows are re-derived from the
// in-memory list.
//
// # Concurrency
//
// Store is safe for concurrent use; all state lives in PostgreSQL and
// transaction boundaries are the only consistency mechanism. Concurrent
// AppendEvent calls on the same session are last-write-wins on the event
// list: there is no version check, so one of two racing appends can be
// lost. Callers that need stronger guarantees must serialize appends per
// session themselves.
//
// # Local State
//
// [SaveCurrentSessionID] and [LoadCurrentSessionID] persist the CLI's
// active session to ~/.seshat/current_session using atomic writes (temp
// file + rename) with file locking via [github.com/gofrs/flock].
package session
