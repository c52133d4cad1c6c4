package telegram

import (
	"context"
)

// Bot abstracts the telegram bot operations used by transports
type Bot interface {
	// Start polls for updates until ctx is cancelled
	Start(ctx context.Context) error

	// Stop stops polling
	Stop()

	// SetHandler sets the update handler; it is called on its own goroutine per update
	SetHandler(handler func(Update))

	// SendMessage sends a plain text message
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// MaxMessageRunes is the Telegram limit for a single text message
const MaxMessageRunes = 4096
