package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripmind/internal/stream"
	"tripmind/pkg/logger"
)

const maxChatBody = 64 << 10

// TurnHandler runs one conversation turn
type TurnHandler interface {
	HandleMessage(ctx context.Context, sessionID, text string) <-chan stream.TurnMessage
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
}

// chatHandler answers one message with the turn's final text. Partials are
// dropped. A turn that ends without a final or error was rejected because
// the session is busy, and its only partial is returned with 409.
func chatHandler(turns TurnHandler, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
			return
		}
		if req.SessionID = strings.TrimSpace(req.SessionID); req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		var terminal, last stream.TurnMessage
		for m := range turns.HandleMessage(r.Context(), req.SessionID, req.Message) {
			switch {
			case m.IsTerminal():
				terminal = m
			case m.Kind == stream.KindPartial:
				last = m
			}
		}

		resp := chatResponse{SessionID: req.SessionID, Timestamp: time.Now().Format(time.RFC3339)}
		switch terminal.Kind {
		case stream.KindFinal:
			resp.Response = terminal.Text
			writeJSON(w, http.StatusOK, resp)
		case stream.KindError:
			log.Warnw("Chat turn failed", "session_id", req.SessionID)
			resp.Response = terminal.Text
			writeJSON(w, http.StatusInternalServerError, resp)
		default:
			if r.Context().Err() != nil {
				return
			}
			resp.Response = last.Text
			writeJSON(w, http.StatusConflict, resp)
		}
	}
}
