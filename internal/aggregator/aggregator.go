package aggregator

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"tripmind/internal/stream"
	"tripmind/pkg/errors"
)

const (
	SearchingNotice  = "กำลังค้นหาข้อมูลที่เกี่ยวข้อง..."
	ProcessingNotice = "กำลังประมวลผลข้อมูลที่ได้รับ..."
)

// State of one model invocation
type State int

const (
	StateStreaming State = iota
	StateAwaitingToolResult
	StateCompleting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateAwaitingToolResult:
		return "awaiting_tool_result"
	case StateCompleting:
		return "completing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of consuming one event stream
type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictStalled
	VerdictNoFinal
	VerdictTimedOut
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictStalled:
		return "stalled"
	case VerdictNoFinal:
		return "no_final"
	case VerdictTimedOut:
		return "timed_out"
	case VerdictFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result summarizes one invocation
type Result struct {
	Verdict       Verdict
	Final         string
	Accumulated   string
	SawToolCall   bool
	SawToolResult bool
	Err           error
}

// Notices remembers which tool notices were already sent in a turn.
// One value is shared by every aggregator of the same turn.
type Notices struct {
	mu         sync.Mutex
	searching  bool
	processing bool
}

func (n *Notices) take(processing bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	flag := &n.searching
	if processing {
		flag = &n.processing
	}
	if *flag {
		return false
	}
	*flag = true
	return true
}

// Sink receives outbound partials; it returns false when the turn is gone
type Sink func(stream.TurnMessage) bool

// Options configure a single Aggregator
type Options struct {
	UserText string
	// Forward enables content partials; full-plan sub-calls turn it off
	Forward bool
	Out     Sink
	Notices *Notices
}

// Aggregator folds one model event stream into a Result and forwards
// batched partials. It is single-use.
type Aggregator struct {
	policy  Policy
	opts    Options
	state   State
	partial int

	accumulated strings.Builder
	pending     strings.Builder

	sawToolCall   bool
	sawToolResult bool

	remembered    string
	hasRemembered bool
}

func New(policy Policy, opts Options) *Aggregator {
	if opts.Notices == nil {
		opts.Notices = &Notices{}
	}
	if opts.Out == nil {
		opts.Out = func(stream.TurnMessage) bool { return true }
	}
	if policy.PartialBatch < 1 {
		policy.PartialBatch = 1
	}
	return &Aggregator{policy: policy, opts: opts}
}

// State returns the current state
func (a *Aggregator) State() State { return a.state }

// Consume reads events until a verdict is reached, the channel closes or ctx
// is done. A done ctx whose error is DeadlineExceeded yields TimedOut.
func (a *Aggregator) Consume(ctx context.Context, events <-chan stream.Event) Result {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return a.finish(VerdictTimedOut, "", errors.Wrap(errors.ErrTimeout, "model stream deadline"))
			}
			return a.finish(VerdictFailed, "", ctx.Err())

		case ev, ok := <-events:
			if !ok {
				return a.end()
			}
			if res, done := a.handle(ev); done {
				return res
			}
		}
	}
}

func (a *Aggregator) handle(ev stream.Event) (Result, bool) {
	switch ev.Kind {
	case stream.EventPartial:
		a.onPartial(ev.Text)

	case stream.EventToolInvocation:
		a.sawToolCall = true
		a.state = StateAwaitingToolResult
		if utf8.RuneCountInString(a.opts.UserText) < a.policy.ShortQueryRunes && a.opts.Notices.take(false) {
			a.emit(SearchingNotice)
		}

	case stream.EventToolResult:
		a.sawToolResult = true
		a.state = StateStreaming
		if a.opts.Notices.take(true) {
			a.emit(ProcessingNotice)
		}

	case stream.EventFinal:
		if a.sawToolCall && !a.sawToolResult {
			a.remembered = ev.Text
			a.hasRemembered = true
			return Result{}, false
		}
		return a.complete(ev.Text), true

	case stream.EventError:
		err := ev.Err
		if err == nil {
			err = errors.ErrUpstream
		}
		return a.finish(VerdictFailed, "", err), true
	}
	return Result{}, false
}

func (a *Aggregator) onPartial(text string) {
	if text == "" {
		return
	}
	a.accumulated.WriteString(text)
	a.pending.WriteString(text)
	a.partial++

	if a.partial%a.policy.PartialBatch != 0 {
		return
	}
	if utf8.RuneCountInString(a.pending.String()) <= a.policy.MinPartialRunes {
		return
	}
	if a.opts.Forward {
		a.opts.Out(stream.PartialMessage(a.pending.String()))
	}
	a.pending.Reset()
}

func (a *Aggregator) emit(text string) {
	if a.opts.Forward {
		a.opts.Out(stream.PartialMessage(text))
	}
}

func (a *Aggregator) complete(final string) Result {
	a.state = StateCompleting
	if a.policy.Acceptable(final, a.accumulated.String()) {
		return a.finish(VerdictAccepted, final, nil)
	}
	return a.finish(VerdictStalled, final, nil)
}

func (a *Aggregator) end() Result {
	if a.hasRemembered {
		return a.complete(a.remembered)
	}
	return a.finish(VerdictNoFinal, "", nil)
}

func (a *Aggregator) finish(v Verdict, final string, err error) Result {
	a.state = StateDone
	if v == VerdictFailed {
		a.state = StateFailed
	}
	return Result{
		Verdict:       v,
		Final:         final,
		Accumulated:   a.accumulated.String(),
		SawToolCall:   a.sawToolCall,
		SawToolResult: a.sawToolResult,
		Err:           err,
	}
}
