package session

import "errors"

// Sentinel errors for session operations. These are part of the Store's
// public API and should be checked with errors.Is().
//
// Example:
//
//	sess, err := store.GetSession(ctx, app, user, id)
//	if errors.Is(err, session.ErrSessionNotFound) {
//	    // Handle missing session
//	}
var (
	// ErrSessionNotFound indicates an operation that requires an existing
	// session (AppendEvent) found none. GetSession does NOT return this:
	// a missing or foreign-owned session reads as (nil, nil).
	ErrSessionNotFound = errors.New("session not found")

	// ErrAppNameRequired indicates a missing app name argument.
	ErrAppNameRequired = errors.New("app name is required")

	// ErrUserIDRequired indicates a missing user id argument.
	ErrUserIDRequired = errors.New("user id is required")

	// ErrSessionIDRequired indicates a missing session id argument.
	ErrSessionIDRequired = errors.New("session id is required")

	// ErrNilSession indicates a nil session argument to AppendEvent.
	ErrNilSession = errors.New("session cannot be nil")

	// ErrNilEvent indicates a nil event argument to AppendEvent.
	ErrNilEvent = errors.New("event cannot be nil")
)
