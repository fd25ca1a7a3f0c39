//go:build integration

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seshat-labs/seshat/internal/database"
	"github.com/seshat-labs/seshat/internal/log"
	"github.com/seshat-labs/seshat/internal/session"
	"github.com/seshat-labs/seshat/internal/testutil"
)

func setupStore(t *testing.T) *session.Store {
	t.Helper()

	container, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := session.New(container.Pool, database.Config{URL: container.ConnStr}, log.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore_CreateAndGet_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	state := map[string]any{"theme": "dark", "count": float64(3)}
	created, err := store.CreateSession(ctx, "app", "u1", state, "")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID, "blank session id should be replaced with a generated one")
	assert.Equal(t, "app", created.AppName)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, state, created.State)
	assert.Empty(t, created.Events)
	assert.False(t, created.LastUpdateTime.IsZero())

	got, err := store.GetSession(ctx, "app", "u1", created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, state, got.State)
	assert.Empty(t, got.Events)
}

func TestStore_CreateSession_TrimsAndGeneratesID_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "app", "u1", nil, "  my-session  ")
	require.NoError(t, err)
	assert.Equal(t, "my-session", created.ID)

	generated, err := store.CreateSession(ctx, "app", "u1", nil, "   ")
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.NotEqual(t, "my-session", generated.ID)
}

func TestStore_CreateSession_IsIdempotentReplace_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	_, err := store.CreateSession(ctx, "app", "u1", map[string]any{"v": float64(1)}, "s1")
	require.NoError(t, err)

	// Creating the same id again replaces the row rather than failing.
	replaced, err := store.CreateSession(ctx, "app", "u1", map[string]any{"v": float64(2)}, "s1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), replaced.State["v"])

	got, err := store.GetSession(ctx, "app", "u1", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(2), got.State["v"])
}

func TestStore_GetSession_OwnershipMismatch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "app", "u1", nil, "")
	require.NoError(t, err)

	// Wrong user or wrong app reads as not found, without error.
	got, err := store.GetSession(ctx, "app", "intruder", created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetSession(ctx, "other-app", "u1", created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetSession(ctx, "app", "u1", "no-such-session")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_AppendEvent_PreservesOrder_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "app", "u1", nil, "")
	require.NoError(t, err)

	for i, id := range []string{"e1", "e2", "e3"} {
		_, err := store.AppendEvent(ctx, sess, &session.Event{
			ID:        id,
			Author:    "user",
			Timestamp: float64(1700000000 + i),
			Content: &session.Content{
				Role:  "user",
				Parts: []*session.Part{session.TextPart("message " + id)},
			},
		})
		require.NoError(t, err)
	}

	got, err := store.GetSession(ctx, "app", "u1", sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Events, 3)
	for i, wantID := range []string{"e1", "e2", "e3"} {
		assert.Equal(t, wantID, got.Events[i].ID)
	}
	assert.True(t, got.LastUpdateTime.After(sess.LastUpdateTime) || got.LastUpdateTime.Equal(sess.LastUpdateTime))
}

func TestStore_AppendEvent_MissingSession_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	ghost := &session.Session{ID: "ghost", AppName: "app", UserID: "u1"}
	_, err := store.AppendEvent(ctx, ghost, &session.Event{ID: "e1", Author: "user"})
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStore_AppendEvent_FunctionCallRoundTrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "app", "u1", nil, "")
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, sess, &session.Event{
		ID:           "e1",
		InvocationID: "inv1",
		Author:       "agent",
		Timestamp:    1700000000,
		Content: &session.Content{
			Role: "model",
			Parts: []*session.Part{
				{FunctionCall: &session.FunctionCall{
					ID:   "fc1",
					Name: "lookup",
					Args: map[string]any{"id": float64(7)},
				}},
				{FunctionResponse: &session.FunctionResponse{
					ID:       "fc1",
					Name:     "lookup",
					Response: map[string]any{"result": "ok"},
				}},
			},
		},
		Actions: &session.EventActions{
			StateDelta:      map[string]any{"step": "done"},
			TransferToAgent: "planner",
		},
	})
	require.NoError(t, err)

	got, err := store.GetSession(ctx, "app", "u1", sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Events, 1)

	ev := got.Events[0]
	assert.Equal(t, "inv1", ev.InvocationID)
	require.Len(t, ev.Content.Parts, 2)

	fc := ev.Content.Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "lookup", fc.Name)
	assert.Equal(t, float64(7), fc.Args["id"])

	fr := ev.Content.Parts[1].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "ok", fr.Response["result"])

	require.NotNil(t, ev.Actions)
	assert.Equal(t, "planner", ev.Actions.TransferToAgent)
	assert.Equal(t, "done", ev.Actions.StateDelta["step"])
}

func TestStore_DeleteSession_Idempotent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "app", "u1", nil, "")
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, sess, &session.Event{ID: "e1", Author: "user"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(ctx, "app", "u1", sess.ID))

	got, err := store.GetSession(ctx, "app", "u1", sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is not an error.
	require.NoError(t, store.DeleteSession(ctx, "app", "u1", sess.ID))
}

func TestStore_AppendEvent_ReturnedSessionIsACopy_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "app", "u1", map[string]any{"k": "v"}, "")
	require.NoError(t, err)

	updated, err := store.AppendEvent(ctx, sess, &session.Event{ID: "e1", Author: "user"})
	require.NoError(t, err)

	// Mutating the returned event must not leak into storage.
	updated.Author = "impostor"

	got, err := store.GetSession(ctx, "app", "u1", sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "user", got.Events[0].Author)
}
