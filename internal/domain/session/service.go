package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tripmind/internal/extract"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
	"tripmind/pkg/templates"
)

// summaryAssistantRunes bounds each assistant message in ContextSummary
const summaryAssistantRunes = 100

// Service is the session store used by the orchestrator and transports
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new session service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "session_service"),
	}
}

// AppendUser appends a user message to the history
func (s *Service) AppendUser(ctx context.Context, sessionID, text string) error {
	return s.append(ctx, sessionID, Message{Role: RoleUser, Content: text})
}

// AppendAssistant appends an assistant message tagged with the handler that produced it
func (s *Service) AppendAssistant(ctx context.Context, sessionID, text, handler string) error {
	return s.append(ctx, sessionID, Message{Role: RoleAssistant, Content: text, Handler: handler})
}

func (s *Service) append(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "session_id is required")
	}
	if err := s.repo.Append(ctx, sessionID, msg); err != nil {
		return errors.Wrapf(err, "failed to append %s message: session=%s", msg.Role, sessionID)
	}
	return nil
}

// Get returns the most recent max messages; max <= 0 returns the whole history
func (s *Service) Get(ctx context.Context, sessionID string, max int) ([]Message, error) {
	msgs, err := s.repo.History(ctx, sessionID, max)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load history: session=%s", sessionID)
	}
	return msgs, nil
}

// SetState stores a value under a declared key. Unknown keys are rejected
// and leave the state unchanged.
func (s *Service) SetState(ctx context.Context, sessionID string, key StateKey, value any) error {
	if !key.Valid() {
		return errors.Wrapf(errors.ErrUnknownStateKey, "%q", string(key))
	}
	if err := s.repo.SetState(ctx, sessionID, key, value); err != nil {
		return errors.Wrapf(err, "failed to set state %s: session=%s", key, sessionID)
	}
	return nil
}

// GetState returns the value under key, or def when absent
func (s *Service) GetState(ctx context.Context, sessionID string, key StateKey, def any) (any, error) {
	if !key.Valid() {
		return def, errors.Wrapf(errors.ErrUnknownStateKey, "%q", string(key))
	}
	v, ok, err := s.repo.GetState(ctx, sessionID, key)
	if err != nil {
		return def, errors.Wrapf(err, "failed to get state %s: session=%s", key, sessionID)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Clear drops the session's history and state
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.repo.Clear(ctx, sessionID); err != nil {
		return errors.Wrapf(err, "failed to clear session=%s", sessionID)
	}
	s.log.Debugf("Cleared session %s", sessionID)
	return nil
}

// ListSessions returns the IDs of all live sessions
func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	return ids, nil
}

// SetTravelFields stores every extracted travel field
func (s *Service) SetTravelFields(ctx context.Context, sessionID string, f extract.Fields) error {
	values := []struct {
		key   StateKey
		value any
	}{
		{KeyOrigin, f.Origin},
		{KeyDestination, f.Destination},
		{KeyStartDate, f.StartDate},
		{KeyEndDate, f.EndDate},
		{KeyBudget, f.Budget},
		{KeyNumTravelers, f.NumTravelers},
		{KeyPreferences, f.Preferences},
	}
	for _, kv := range values {
		if err := s.SetState(ctx, sessionID, kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

// GetTravelFields reads the stored travel fields, falling back to defaults
func (s *Service) GetTravelFields(ctx context.Context, sessionID string) (extract.Fields, error) {
	f := extract.Defaults()

	read := func(key StateKey) (any, bool, error) {
		return s.repo.GetState(ctx, sessionID, key)
	}

	for _, key := range []StateKey{KeyOrigin, KeyDestination, KeyStartDate, KeyEndDate, KeyBudget, KeyNumTravelers, KeyPreferences} {
		v, ok, err := read(key)
		if err != nil {
			return f, errors.Wrapf(err, "failed to read travel fields: session=%s", sessionID)
		}
		if !ok {
			continue
		}
		switch key {
		case KeyOrigin:
			f.Origin = asString(v, f.Origin)
		case KeyDestination:
			f.Destination = asString(v, f.Destination)
		case KeyStartDate:
			f.StartDate = asString(v, f.StartDate)
		case KeyEndDate:
			f.EndDate = asString(v, f.EndDate)
		case KeyBudget:
			f.Budget = asString(v, f.Budget)
		case KeyNumTravelers:
			f.NumTravelers = asInt(v, f.NumTravelers)
		case KeyPreferences:
			f.Preferences = asStrings(v)
		}
	}

	if amount, err := decimal.NewFromString(strings.ReplaceAll(f.Budget, ",", "")); err == nil {
		f.BudgetAmount = amount
	}

	return f, nil
}

// SetHandlerResponse records a handler's answer under its response key and
// updates last_response and last_handler.
func (s *Service) SetHandlerResponse(ctx context.Context, sessionID, handler, text string) error {
	key, err := ResponseKey(handler)
	if err != nil {
		return err
	}
	if err := s.SetState(ctx, sessionID, key, text); err != nil {
		return err
	}
	if err := s.SetState(ctx, sessionID, KeyLastResponse, text); err != nil {
		return err
	}
	return s.SetState(ctx, sessionID, KeyLastHandler, handler)
}

// GetHandlerResponse returns the last answer produced by handler, or ""
func (s *Service) GetHandlerResponse(ctx context.Context, sessionID, handler string) (string, error) {
	key, err := ResponseKey(handler)
	if err != nil {
		return "", err
	}
	v, err := s.GetState(ctx, sessionID, key, "")
	if err != nil {
		return "", err
	}
	return asString(v, ""), nil
}

// ContextSummary renders the last n messages as compact prompt context.
// Assistant messages are cut to a short excerpt.
func (s *Service) ContextSummary(ctx context.Context, sessionID string, n int) (string, error) {
	msgs, err := s.Get(ctx, sessionID, n)
	if err != nil {
		return "", err
	}

	lines := lo.Map(msgs, func(m Message, _ int) string {
		if m.Role == RoleUser {
			return "ผู้ใช้: " + m.Content
		}
		excerpt := templates.TruncateRunes(m.Content, summaryAssistantRunes)
		if excerpt != m.Content {
			excerpt += "..."
		}
		if m.Handler != "" {
			return fmt.Sprintf("ผู้ช่วย (%s): %s", m.Handler, excerpt)
		}
		return "ผู้ช่วย: " + excerpt
	})

	return strings.Join(lines, "\n"), nil
}

// LastAssistant returns the most recent assistant message in msgs
func LastAssistant(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return Message{}, false
}

func asString(v any, def string) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return def
	default:
		return fmt.Sprint(t)
	}
}

// asInt accepts the numeric shapes produced by memory and JSON-backed stores
func asInt(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		return lo.FilterMap(t, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	default:
		return []string{}
	}
}
