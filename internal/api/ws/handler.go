package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"tripmind/internal/metrics"
	"tripmind/internal/stream"
	"tripmind/pkg/logger"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 64 << 10
	outboundBuffer = 32
)

// TurnHandler runs one conversation turn, passing its messages to sink.
// The session must stay busy until sink has accepted turn_complete.
type TurnHandler interface {
	Deliver(ctx context.Context, sessionID, text string, sink func(stream.TurnMessage) bool)
}

// Config controls the websocket endpoint
type Config struct {
	AllowedOrigins []string // empty allows any origin
	PingInterval   time.Duration
}

// Handler upgrades /ws/{session_id} and relays turns over the connection
type Handler struct {
	turns    TurnHandler
	upgrader websocket.Upgrader
	ping     time.Duration
	log      *logger.Logger

	// ctx outlives requests; Close cancels it to end every connection
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHandler(turns TurnHandler, cfg Config, log *logger.Logger) *Handler {
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	h := &Handler{
		turns: turns,
		ping:  ping,
		log:   log.With("component", "websocket"),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}

// ServeHTTP handles GET /ws/{session_id}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("Websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	c := &connection{
		conn:      conn,
		sessionID: sessionID,
		turns:     h.turns,
		out:       make(chan any, outboundBuffer),
		ping:      h.ping,
		log:       h.log.ForSession(sessionID),
	}
	c.serve(h.ctx)
}

// Close disconnects every open connection
func (h *Handler) Close() {
	h.cancel()
}

// connection owns one websocket. Only the writer goroutine writes to conn.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	turns     TurnHandler
	out       chan any
	ping      time.Duration
	log       *logger.Logger
	relays    sync.WaitGroup
}

func (c *connection) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	c.log.Infow("Websocket connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx, cancel)
	}()

	c.enqueue(ctx, stream.Welcome{Message: stream.WelcomeText})
	c.enqueue(ctx, stream.TurnComplete())

	c.readLoop(ctx)

	// closing the context cancels in-flight turns and stops the writer
	cancel()
	c.relays.Wait()
	<-writerDone
	_ = c.conn.Close()

	c.log.Infow("Websocket disconnected")
}

func (c *connection) readLoop(ctx context.Context) {
	pongWait := c.ping * 2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnw("Websocket read failed", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if kind != websocket.TextMessage {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		c.relays.Add(1)
		go c.relay(ctx, text)
	}
}

// relay runs one turn, queueing each message for the writer before the turn
// moves on. The next turn of the session cannot start until turn_complete is
// queued, so frames of consecutive turns never interleave.
func (c *connection) relay(ctx context.Context, text string) {
	defer c.relays.Done()
	c.turns.Deliver(ctx, c.sessionID, text, func(m stream.TurnMessage) bool {
		return c.enqueue(ctx, m)
	})
}

func (c *connection) enqueue(ctx context.Context, v any) bool {
	select {
	case c.out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *connection) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = c.conn.Close()
			return

		case v := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(v); err != nil {
				c.log.Warnw("Websocket write failed", "error", err)
				cancel()
				// unblock the reader
				_ = c.conn.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.log.Debugw("Websocket ping failed", "error", err)
				cancel()
				_ = c.conn.Close()
				return
			}
		}
	}
}
