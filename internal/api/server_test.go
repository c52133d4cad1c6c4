package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tripmind/internal/api/health"
	"tripmind/internal/api/ws"
	"tripmind/internal/stream"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

type fakeSessions struct {
	ids     []string
	cleared []string
}

func (f *fakeSessions) Clear(_ context.Context, id string) error {
	if id == "" {
		return errors.Wrap(errors.ErrInvalidInput, "empty session id")
	}
	f.cleared = append(f.cleared, id)
	return nil
}

func (f *fakeSessions) ListSessions(context.Context) ([]string, error) { return f.ids, nil }

type noTurns struct{}

func (noTurns) Deliver(context.Context, string, string, func(stream.TurnMessage) bool) {}

func (noTurns) HandleMessage(context.Context, string, string) <-chan stream.TurnMessage {
	ch := make(chan stream.TurnMessage)
	close(ch)
	return ch
}

type cannedTurns struct {
	msgs    []stream.TurnMessage
	session string
	text    string
}

func (c *cannedTurns) HandleMessage(_ context.Context, sessionID, text string) <-chan stream.TurnMessage {
	c.session, c.text = sessionID, text
	ch := make(chan stream.TurnMessage, len(c.msgs))
	for _, m := range c.msgs {
		ch <- m
	}
	close(ch)
	return ch
}

func newTestServer(sessions *fakeSessions) *Server {
	return newChatServer(noTurns{}, sessions)
}

func newChatServer(turns TurnHandler, sessions *fakeSessions) *Server {
	log := logger.New(zap.NewNop())
	wsHandler := ws.NewHandler(noTurns{}, ws.Config{}, log)
	return NewServer(ServerConfig{ServiceName: "tripmind", Version: "test"}, health.New(log, "tripmind", "test"), wsHandler, turns, sessions, log)
}

func postChat(t *testing.T, s *Server, body string) (int, chatResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	var resp chatResponse
	if rec.Code != http.StatusBadRequest {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec.Code, resp
}

func TestServer_ChatReturnsFinal(t *testing.T) {
	turns := &cannedTurns{msgs: []stream.TurnMessage{
		stream.PartialMessage("กำลังค้นหา"),
		stream.FinalMessage("แนะนำที่พักย่านนิมมานค่ะ"),
		stream.TurnComplete(),
	}}
	s := newChatServer(turns, &fakeSessions{})

	code, resp := postChat(t, s, `{"message":"  ที่พักเชียงใหม่ ","sessionId":"web-1"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "แนะนำที่พักย่านนิมมานค่ะ", resp.Response)
	assert.Equal(t, "web-1", resp.SessionID)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, "web-1", turns.session)
	assert.Equal(t, "ที่พักเชียงใหม่", turns.text)
}

func TestServer_ChatGeneratesSessionID(t *testing.T) {
	turns := &cannedTurns{msgs: []stream.TurnMessage{stream.FinalMessage("สวัสดีค่ะ"), stream.TurnComplete()}}
	s := newChatServer(turns, &fakeSessions{})

	code, resp := postChat(t, s, `{"message":"สวัสดี"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, turns.session)
}

func TestServer_ChatBusySession(t *testing.T) {
	busy := "ขออภัยค่ะ ฉันกำลังประมวลผลคำถามของคุณอยู่ กรุณารอสักครู่ค่ะ"
	s := newChatServer(&cannedTurns{msgs: []stream.TurnMessage{stream.PartialMessage(busy)}}, &fakeSessions{})

	code, resp := postChat(t, s, `{"message":"เที่ยวน่าน","sessionId":"s1"}`)

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, busy, resp.Response)
	assert.Equal(t, "s1", resp.SessionID)
}

func TestServer_ChatTurnError(t *testing.T) {
	turns := &cannedTurns{msgs: []stream.TurnMessage{stream.ErrorMessage("เกิดข้อผิดพลาด"), stream.TurnComplete()}}
	s := newChatServer(turns, &fakeSessions{})

	code, resp := postChat(t, s, `{"message":"เที่ยวน่าน","sessionId":"s1"}`)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "เกิดข้อผิดพลาด", resp.Response)
}

func TestServer_ChatRejectsBadInput(t *testing.T) {
	turns := &cannedTurns{}
	s := newChatServer(turns, &fakeSessions{})

	for _, body := range []string{`{"message":"   "}`, `not json`, `{}`} {
		code, _ := postChat(t, s, body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}
	assert.Empty(t, turns.session)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Root(t *testing.T) {
	s := newTestServer(&fakeSessions{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"tripmind","version":"test","status":"running"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Sessions(t *testing.T) {
	sessions := &fakeSessions{ids: []string{"a", "tg:1"}}
	s := newTestServer(sessions)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sessions []string `json:"sessions"`
		Count    int      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"a", "tg:1"}, body.Sessions)
	assert.Equal(t, 2, body.Count)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/a", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"a"}, sessions.cleared)
}

func TestServer_Probes(t *testing.T) {
	s := newTestServer(&fakeSessions{})

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
