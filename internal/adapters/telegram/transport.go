package telegram

import (
	"context"
	"fmt"
	"strings"

	"tripmind/internal/stream"
	"tripmind/pkg/logger"
	tg "tripmind/pkg/telegram"
	"tripmind/pkg/templates"
)

// ResetText confirms /reset
const ResetText = "เริ่มบทสนทนาใหม่แล้วค่ะ บอกฉันได้เลยว่าอยากไปเที่ยวที่ไหนคะ"

// TurnHandler runs one conversation turn
type TurnHandler interface {
	HandleMessage(ctx context.Context, sessionID, text string) <-chan stream.TurnMessage
}

// SessionClearer drops a conversation
type SessionClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// Transport relays Telegram chats to the turn orchestrator. Each chat is one
// session. Only the first status partial of a turn is sent, since Telegram
// has no way to replace a message in place without edits.
type Transport struct {
	bot      tg.Bot
	turns    TurnHandler
	sessions SessionClearer
	log      *logger.Logger
}

func NewTransport(bot tg.Bot, turns TurnHandler, sessions SessionClearer, log *logger.Logger) *Transport {
	return &Transport{
		bot:      bot,
		turns:    turns,
		sessions: sessions,
		log:      log.With("component", "telegram_transport"),
	}
}

// SessionID maps a chat to its session
func SessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// Run polls for updates until ctx is cancelled
func (t *Transport) Run(ctx context.Context) error {
	t.bot.SetHandler(func(u tg.Update) { t.HandleUpdate(ctx, u) })
	t.log.Info("Telegram transport started")
	return t.bot.Start(ctx)
}

// HandleUpdate processes one update
func (t *Transport) HandleUpdate(ctx context.Context, u tg.Update) {
	if !u.HasMessage() || u.Message.Chat == nil {
		return
	}
	msg := u.Message
	if msg.From != nil && msg.From.IsBot {
		return
	}

	chatID := msg.Chat.ID
	sessionID := SessionID(chatID)
	log := t.log.With("session_id", sessionID)

	if msg.IsCommand {
		t.handleCommand(ctx, log, chatID, sessionID, msg.Command)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	t.relay(ctx, log, chatID, sessionID, text)
}

func (t *Transport) handleCommand(ctx context.Context, log *logger.Logger, chatID int64, sessionID, command string) {
	switch command {
	case "start":
		t.send(ctx, log, chatID, stream.WelcomeText)
	case "reset":
		if err := t.sessions.Clear(ctx, sessionID); err != nil {
			log.Warnw("Failed to clear session", "error", err)
			return
		}
		t.send(ctx, log, chatID, ResetText)
	default:
		log.Debugw("Ignoring unknown command", "command", command)
	}
}

// relay drains the whole turn even when sends fail so the turn goroutine
// never blocks on an abandoned channel
func (t *Transport) relay(ctx context.Context, log *logger.Logger, chatID int64, sessionID, text string) {
	statusSent := false
	for m := range t.turns.HandleMessage(ctx, sessionID, text) {
		switch m.Kind {
		case stream.KindPartial:
			if statusSent {
				continue
			}
			statusSent = true
			t.send(ctx, log, chatID, m.Text)
		case stream.KindFinal, stream.KindError:
			for _, chunk := range templates.SplitRunes(templates.SafeText(m.Text), tg.MaxMessageRunes) {
				t.send(ctx, log, chatID, chunk)
			}
		}
	}
}

func (t *Transport) send(ctx context.Context, log *logger.Logger, chatID int64, text string) {
	if err := t.bot.SendMessage(ctx, chatID, text); err != nil {
		log.Warnw("Failed to send telegram message", "error", err)
	}
}
