package testsupport

import (
	"context"
	"iter"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ScriptedLLM is an ADK model that replays canned responses, one script per
// GenerateContent call. The last script repeats once the list is exhausted.
type ScriptedLLM struct {
	mu       sync.Mutex
	scripts  [][]*model.LLMResponse
	calls    int
	requests []*model.LLMRequest
}

// NewScriptedLLM creates a model that answers each call with the next script
func NewScriptedLLM(scripts ...[]*model.LLMResponse) *ScriptedLLM {
	return &ScriptedLLM{scripts: scripts}
}

func (m *ScriptedLLM) Name() string { return "scripted" }

func (m *ScriptedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var script []*model.LLMResponse
	if len(m.scripts) > 0 {
		idx := m.calls
		if idx >= len(m.scripts) {
			idx = len(m.scripts) - 1
		}
		script = m.scripts[idx]
	}
	m.calls++
	m.mu.Unlock()

	return func(yield func(*model.LLMResponse, error) bool) {
		for _, resp := range script {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

// Calls returns how many times GenerateContent ran
func (m *ScriptedLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// TextResponse builds a model response carrying text
func TextResponse(text string, partial bool) *model.LLMResponse {
	return &model.LLMResponse{
		Content:      genai.NewContentFromText(text, genai.RoleModel),
		Partial:      partial,
		TurnComplete: !partial,
	}
}
