package adk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	adkmodel "google.golang.org/adk/model"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"tripmind/internal/agents"
	"tripmind/internal/stream"
	"tripmind/internal/testsupport"
	"tripmind/pkg/errors"
)

func collectEvents(t *testing.T, ch <-chan stream.Event) []stream.Event {
	t.Helper()
	var out []stream.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
			return out
		}
	}
}

func eventWith(partial bool, parts ...*genai.Part) *adksession.Event {
	return &adksession.Event{
		LLMResponse: adkmodel.LLMResponse{
			Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
			Partial: partial,
		},
	}
}

func TestMapEvent(t *testing.T) {
	t.Run("partial text", func(t *testing.T) {
		got := mapEvent(eventWith(true, genai.NewPartFromText("สวัสดี")))
		assert.Equal(t, []stream.Event{stream.Partial("สวัสดี")}, got)
	})

	t.Run("empty partial dropped", func(t *testing.T) {
		assert.Empty(t, mapEvent(eventWith(true)))
	})

	t.Run("function call", func(t *testing.T) {
		args := map[string]any{"query": "น่าน"}
		got := mapEvent(eventWith(false, genai.NewPartFromFunctionCall("search_web", args)))
		assert.Equal(t, []stream.Event{stream.ToolInvocation("search_web", args)}, got)
	})

	t.Run("function response", func(t *testing.T) {
		res := map[string]any{"status": "success"}
		got := mapEvent(eventWith(false, genai.NewPartFromFunctionResponse("search_web", res)))
		assert.Equal(t, []stream.Event{stream.ToolResult("search_web", res)}, got)
	})

	t.Run("final response", func(t *testing.T) {
		got := mapEvent(eventWith(false, genai.NewPartFromText("แผน"), genai.NewPartFromText("เที่ยว")))
		assert.Equal(t, []stream.Event{stream.Final("แผนเที่ยว")}, got)
	})

	t.Run("error message", func(t *testing.T) {
		ev := &adksession.Event{LLMResponse: adkmodel.LLMResponse{ErrorCode: "SAFETY", ErrorMessage: "blocked"}}
		got := mapEvent(ev)
		require.Len(t, got, 1)
		assert.Equal(t, stream.EventError, got[0].Kind)
		assert.True(t, errors.Is(got[0].Err, errors.ErrUpstream))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, mapEvent(nil))
	})
}

func newTestGateway(t *testing.T, llm adkmodel.LLM) *Gateway {
	t.Helper()
	factory, err := agents.NewFactory(agents.FactoryDeps{Model: llm})
	require.NoError(t, err)
	all, err := factory.CreateAll()
	require.NoError(t, err)

	gw, err := NewGateway("tripmind_test", all)
	require.NoError(t, err)
	return gw
}

func TestGateway_Stream(t *testing.T) {
	llm := testsupport.NewScriptedLLM([]*adkmodel.LLMResponse{
		testsupport.TextResponse("ร้านอาหาร", true),
		testsupport.TextResponse("อร่อย", true),
		testsupport.TextResponse("ร้านอาหารอร่อย", false),
	})
	gw := newTestGateway(t, llm)

	ch, err := gw.Stream(context.Background(), stream.Request{SessionID: "s1", Handler: "restaurant", Prompt: "ร้านอาหารในน่าน"})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventFinal, last.Kind)
	assert.Equal(t, "ร้านอาหารอร่อย", last.Text)
	assert.Equal(t, stream.EventPartial, events[0].Kind)
	assert.Equal(t, 1, llm.Calls())
}

func TestGateway_UnknownHandler(t *testing.T) {
	gw := newTestGateway(t, testsupport.NewScriptedLLM())

	_, err := gw.Stream(context.Background(), stream.Request{SessionID: "s1", Handler: "weather", Prompt: "p"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestGateway_CancelClosesStream(t *testing.T) {
	llm := testsupport.NewScriptedLLM([]*adkmodel.LLMResponse{
		testsupport.TextResponse("ก", true),
		testsupport.TextResponse("ข", true),
		testsupport.TextResponse("กข", false),
	})
	gw := newTestGateway(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := gw.Stream(ctx, stream.Request{SessionID: "s1", Handler: "general", Prompt: "p"})
	require.NoError(t, err)
	cancel()

	collectEvents(t, ch)
}
