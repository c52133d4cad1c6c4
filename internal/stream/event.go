package stream

import (
	"context"
	"fmt"
)

// EventKind tags the variant carried by an Event
type EventKind int

const (
	EventPartial EventKind = iota
	EventToolInvocation
	EventToolResult
	EventFinal
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventToolInvocation:
		return "tool_invocation"
	case EventToolResult:
		return "tool_result"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one unit produced by a model stream.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind       EventKind
	Text       string
	ToolName   string
	ToolArgs   map[string]any
	ToolResult map[string]any
	Err        error
}

func Partial(text string) Event { return Event{Kind: EventPartial, Text: text} }

func Final(text string) Event { return Event{Kind: EventFinal, Text: text} }

func Failure(err error) Event { return Event{Kind: EventError, Err: err} }

func ToolInvocation(name string, args map[string]any) Event {
	return Event{Kind: EventToolInvocation, ToolName: name, ToolArgs: args}
}

func ToolResult(name string, result map[string]any) Event {
	return Event{Kind: EventToolResult, ToolName: name, ToolResult: result}
}

// Request is a single model invocation
type Request struct {
	SessionID string
	Handler   string
	Prompt    string
}

// Gateway abstracts the language-model runtime.
//
// Stream returns a channel of events for one prompt. The channel is closed when
// the upstream finishes, fails or ctx is cancelled; the producer never blocks
// after cancellation. Implementations do not retry.
type Gateway interface {
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}

// Send delivers ev on out unless ctx is done first. It reports whether the
// event was delivered.
func Send[T any](ctx context.Context, out chan<- T, ev T) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
