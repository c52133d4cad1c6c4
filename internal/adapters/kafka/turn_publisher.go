package kafka

import (
	"context"

	"tripmind/internal/domain/turn"
)

// EventWriter is the subset of Producer used by TurnPublisher
type EventWriter interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// TurnPublisher publishes turn lifecycle events keyed by session
type TurnPublisher struct {
	writer EventWriter
	topic  string
}

var _ turn.Publisher = (*TurnPublisher)(nil)

// NewTurnPublisher creates a publisher; an empty topic means TopicTurns
func NewTurnPublisher(writer EventWriter, topic string) *TurnPublisher {
	if topic == "" {
		topic = TopicTurns
	}
	return &TurnPublisher{writer: writer, topic: topic}
}

func (p *TurnPublisher) PublishTurn(ctx context.Context, ev turn.Event) error {
	return p.writer.Publish(ctx, p.topic, ev.SessionID, ev)
}
