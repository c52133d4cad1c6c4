package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tripmind/internal/stream"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
	tg "tripmind/pkg/telegram"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (b *fakeBot) Start(ctx context.Context) error { <-ctx.Done(); return nil }
func (b *fakeBot) Stop()                           {}
func (b *fakeBot) SetHandler(func(tg.Update)) {}

func (b *fakeBot) SendMessage(_ context.Context, _ int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, text)
	return b.err
}

func (b *fakeBot) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

type fakeTurns struct {
	sessionID string
	text      string
	msgs      []stream.TurnMessage
}

func (f *fakeTurns) HandleMessage(_ context.Context, sessionID, text string) <-chan stream.TurnMessage {
	f.sessionID, f.text = sessionID, text
	ch := make(chan stream.TurnMessage, len(f.msgs))
	for _, m := range f.msgs {
		ch <- m
	}
	close(ch)
	return ch
}

type fakeSessions struct {
	cleared []string
	err     error
}

func (f *fakeSessions) Clear(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return f.err
}

func textUpdate(chatID int64, text string) tg.Update {
	msg := &tg.Message{Text: text, Chat: &tg.Chat{ID: chatID}, From: &tg.User{ID: 1}}
	msg.ParseCommand()
	return tg.Update{Message: msg}
}

func newTransport(bot *fakeBot, turns *fakeTurns, sessions *fakeSessions) *Transport {
	return NewTransport(bot, turns, sessions, logger.New(zap.NewNop()))
}

func TestTransport_RelaysFirstStatusAndFinal(t *testing.T) {
	bot := &fakeBot{}
	turns := &fakeTurns{msgs: []stream.TurnMessage{
		stream.PartialMessage("status one"),
		stream.PartialMessage("status two"),
		stream.FinalMessage("the answer"),
		stream.TurnComplete(),
	}}
	tr := newTransport(bot, turns, &fakeSessions{})

	tr.HandleUpdate(context.Background(), textUpdate(42, "  ร้านอาหารเชียงใหม่  "))

	assert.Equal(t, "tg:42", turns.sessionID)
	assert.Equal(t, "ร้านอาหารเชียงใหม่", turns.text)
	assert.Equal(t, []string{"status one", "the answer"}, bot.messages())
}

func TestTransport_SplitsLongFinal(t *testing.T) {
	bot := &fakeBot{}
	long := strings.Repeat("ก", tg.MaxMessageRunes+10)
	turns := &fakeTurns{msgs: []stream.TurnMessage{stream.FinalMessage(long), stream.TurnComplete()}}
	tr := newTransport(bot, turns, &fakeSessions{})

	tr.HandleUpdate(context.Background(), textUpdate(1, "plan"))

	sent := bot.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, tg.MaxMessageRunes, utf8.RuneCountInString(sent[0]))
	assert.Equal(t, 10, utf8.RuneCountInString(sent[1]))
}

func TestTransport_DrainsTurnWhenSendFails(t *testing.T) {
	bot := &fakeBot{err: errors.ErrUnavailable}
	turns := &fakeTurns{msgs: []stream.TurnMessage{
		stream.PartialMessage("status"),
		stream.ErrorMessage("sorry"),
		stream.TurnComplete(),
	}}
	tr := newTransport(bot, turns, &fakeSessions{})

	tr.HandleUpdate(context.Background(), textUpdate(1, "hi"))

	assert.Equal(t, []string{"status", "sorry"}, bot.messages())
}

func TestTransport_Commands(t *testing.T) {
	bot := &fakeBot{}
	turns := &fakeTurns{}
	sessions := &fakeSessions{}
	tr := newTransport(bot, turns, sessions)

	tr.HandleUpdate(context.Background(), textUpdate(5, "/start"))
	tr.HandleUpdate(context.Background(), textUpdate(5, "/reset"))
	tr.HandleUpdate(context.Background(), textUpdate(5, "/unknown"))

	assert.Equal(t, []string{stream.WelcomeText, ResetText}, bot.messages())
	assert.Equal(t, []string{"tg:5"}, sessions.cleared)
	assert.Empty(t, turns.sessionID)
}

func TestTransport_IgnoresBotsAndEmptyText(t *testing.T) {
	bot := &fakeBot{}
	turns := &fakeTurns{}
	tr := newTransport(bot, turns, &fakeSessions{})

	u := textUpdate(1, "hello")
	u.Message.From.IsBot = true
	tr.HandleUpdate(context.Background(), u)
	tr.HandleUpdate(context.Background(), textUpdate(1, "   "))
	tr.HandleUpdate(context.Background(), tg.Update{})

	assert.Empty(t, bot.messages())
	assert.Empty(t, turns.sessionID)
}
