package turn

import (
	"context"
	"time"
)

// Event describes a finished turn
type Event struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Handler    string    `json:"handler"`
	Source     string    `json:"source"`
	FullPlan   bool      `json:"full_plan"`
	Forced     bool      `json:"forced"`
	Failed     bool      `json:"failed"`
	DurationMs int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Publisher delivers turn events to downstream consumers. Delivery is best
// effort; callers log and drop errors.
type Publisher interface {
	PublishTurn(ctx context.Context, ev Event) error
}

// NoopPublisher discards events
type NoopPublisher struct{}

func (NoopPublisher) PublishTurn(context.Context, Event) error { return nil }
