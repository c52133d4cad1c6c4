package adk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"tripmind/internal/agents"
	"tripmind/internal/agents/state"
	"tripmind/internal/stream"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

const cleanupTimeout = 5 * time.Second

// Gateway implements stream.Gateway over ADK runners, one per handler.
// Every Stream call runs in a fresh ADK session that is deleted afterwards;
// conversation history lives in the domain session store.
type Gateway struct {
	appName  string
	runners  map[agents.HandlerID]*runner.Runner
	sessions adksession.Service
	log      *logger.Logger
}

// NewGateway creates a runner for every handler agent over a shared
// in-memory ADK session service.
func NewGateway(appName string, handlerAgents map[agents.HandlerID]agent.Agent) (*Gateway, error) {
	sessions := adksession.InMemoryService()

	runners := make(map[agents.HandlerID]*runner.Runner, len(handlerAgents))
	for id, ag := range handlerAgents {
		r, err := runner.New(runner.Config{
			AppName:        appName,
			Agent:          ag,
			SessionService: sessions,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create ADK runner for %s", id)
		}
		runners[id] = r
	}

	return &Gateway{
		appName:  appName,
		runners:  runners,
		sessions: sessions,
		log:      logger.Get().With("component", "adk_gateway"),
	}, nil
}

// Stream runs the handler agent on prompt and maps runner events to
// stream events.
func (g *Gateway) Stream(ctx context.Context, req stream.Request) (<-chan stream.Event, error) {
	id := agents.HandlerID(req.Handler)
	r, ok := g.runners[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no runner for handler %s", req.Handler)
	}

	userID := req.SessionID
	if userID == "" {
		userID = "anonymous"
	}
	sessionID := uuid.NewString()

	if _, err := g.sessions.Create(ctx, &adksession.CreateRequest{
		AppName:   g.appName,
		UserID:    userID,
		SessionID: sessionID,
		State:     state.Seed(req.Handler, req.SessionID),
	}); err != nil {
		return nil, errors.Wrap(err, "failed to create ADK session")
	}

	content := genai.NewContentFromText(req.Prompt, genai.RoleUser)
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeSSE}

	out := make(chan stream.Event)
	go func() {
		defer close(out)
		defer g.cleanup(ctx, userID, sessionID)

		for event, err := range r.Run(ctx, userID, sessionID, content, runConfig) {
			if err != nil {
				if ctx.Err() == nil {
					g.log.Warnw("ADK run failed", "handler", req.Handler, "error", err)
				}
				stream.Send(ctx, out, stream.Failure(errors.Wrapf(errors.ErrUpstream, "%v", err)))
				return
			}
			for _, ev := range mapEvent(event) {
				if !stream.Send(ctx, out, ev) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (g *Gateway) cleanup(ctx context.Context, userID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	err := g.sessions.Delete(ctx, &adksession.DeleteRequest{
		AppName:   g.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		g.log.Debugw("failed to delete ADK session", "session", sessionID, "error", err)
	}
}

// mapEvent converts one runner event into zero or more stream events.
// Partial text becomes Partial; function calls and responses become tool
// events; the non-partial final response becomes Final.
func mapEvent(event *adksession.Event) []stream.Event {
	if event == nil {
		return nil
	}
	if event.ErrorMessage != "" {
		return []stream.Event{stream.Failure(errors.Wrapf(errors.ErrUpstream, "%s: %s", event.ErrorCode, event.ErrorMessage))}
	}
	if event.Content == nil {
		return nil
	}

	if event.Partial {
		if text := textOf(event.Content); text != "" {
			return []stream.Event{stream.Partial(text)}
		}
		return nil
	}

	var out []stream.Event
	for _, part := range event.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			out = append(out, stream.ToolInvocation(part.FunctionCall.Name, part.FunctionCall.Args))
		}
		if part.FunctionResponse != nil {
			out = append(out, stream.ToolResult(part.FunctionResponse.Name, part.FunctionResponse.Response))
		}
	}

	if event.IsFinalResponse() {
		out = append(out, stream.Final(textOf(event.Content)))
	}
	return out
}

func textOf(content *genai.Content) string {
	var text string
	for _, part := range content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			text += part.Text
		}
	}
	return text
}
