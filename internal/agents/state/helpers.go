package state

import (
	"time"

	"google.golang.org/adk/session"
)

// State key prefixes (from ADK)
const (
	KeyPrefixApp  = "app:"  // Application-level (shared across all users)
	KeyPrefixUser = "user:" // User-level (shared across user's sessions)
	KeyPrefixTemp = "temp:" // Temporary (not persisted)
)

// Keys seeded into every model session
const (
	KeyHandler          = "handler"
	KeyConversationID   = "conversation_id"
	keyToolStart        = KeyPrefixTemp + "tool_start_time"
	keyToolCalls        = KeyPrefixTemp + "tool_calls"
	keyPromptTokens     = KeyPrefixTemp + "prompt_tokens"
	keyCompletionTokens = KeyPrefixTemp + "completion_tokens"
)

// Seed returns the initial state for a model session created for one handler call
func Seed(handler, conversationID string) map[string]any {
	return map[string]any{
		KeyHandler:        handler,
		KeyConversationID: conversationID,
	}
}

// GetHandler returns the handler the model session was created for
func GetHandler(state session.ReadonlyState) string {
	return getString(state, KeyHandler)
}

// GetConversationID returns the conversation session that owns the model session
func GetConversationID(state session.ReadonlyState) string {
	return getString(state, KeyConversationID)
}

// SetToolStartTime records when the current tool call started
func SetToolStartTime(state session.State, t time.Time) error {
	return state.Set(keyToolStart, t)
}

// GetToolStartTime returns the start time of the current tool call
func GetToolStartTime(state session.ReadonlyState) (time.Time, bool) {
	val, err := state.Get(keyToolStart)
	if err != nil {
		return time.Time{}, false
	}
	t, ok := val.(time.Time)
	return t, ok
}

// IncrementToolCallCount bumps the per-call tool counter and returns the new value
func IncrementToolCallCount(state session.State) int {
	n := GetToolCallCount(state) + 1
	_ = state.Set(keyToolCalls, n)
	return n
}

// GetToolCallCount returns how many tools ran in this model session
func GetToolCallCount(state session.ReadonlyState) int {
	val, err := state.Get(keyToolCalls)
	if err != nil {
		return 0
	}
	n, _ := val.(int)
	return n
}

// AddTokens accumulates token usage for the model session
func AddTokens(state session.State, prompt, completion int) {
	p, c := GetTokens(state)
	_ = state.Set(keyPromptTokens, p+prompt)
	_ = state.Set(keyCompletionTokens, c+completion)
}

// GetTokens returns accumulated prompt and completion tokens
func GetTokens(state session.ReadonlyState) (prompt, completion int) {
	if val, err := state.Get(keyPromptTokens); err == nil {
		prompt, _ = val.(int)
	}
	if val, err := state.Get(keyCompletionTokens); err == nil {
		completion, _ = val.(int)
	}
	return prompt, completion
}

func getString(state session.ReadonlyState, key string) string {
	val, err := state.Get(key)
	if err != nil {
		return ""
	}
	s, _ := val.(string)
	return s
}
