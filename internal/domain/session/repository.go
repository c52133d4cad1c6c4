package session

import (
	"context"
)

// Repository stores per-session history and state.
//
// All operations on one session are linearizable; operations on different
// sessions are independent. Unknown sessions read as empty and are created
// lazily on first write.
type Repository interface {
	// Append adds msg to the end of the session history
	Append(ctx context.Context, sessionID string, msg Message) error

	// History returns the most recent max messages in order; max <= 0 means all
	History(ctx context.Context, sessionID string, max int) ([]Message, error)

	// SetState stores value under key, replacing any previous value
	SetState(ctx context.Context, sessionID string, key StateKey, value any) error

	// GetState returns the value under key and whether it was present
	GetState(ctx context.Context, sessionID string, key StateKey) (any, bool, error)

	// Clear removes history and state atomically. Unknown sessions are a no-op.
	Clear(ctx context.Context, sessionID string) error

	// List returns the IDs of all live sessions
	List(ctx context.Context) ([]string, error)
}
