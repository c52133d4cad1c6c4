package aggregator

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"tripmind/internal/metrics"
	"tripmind/internal/stream"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

// ApologyText is the answer used when nothing usable was produced
const ApologyText = "ขออภัยค่ะ ฉันไม่สามารถประมวลผลคำขอของคุณได้ในขณะนี้ กรุณาลองใหม่อีกครั้งค่ะ"

// Source tells where an answer came from
type Source string

const (
	SourceModel       Source = "model"
	SourceForced      Source = "forced"
	SourceAccumulated Source = "accumulated"
	SourceApology     Source = "apology"
)

// Answer is the resolved text of one handler invocation
type Answer struct {
	Text    string
	Source  Source
	OK      bool
	Verdict Verdict
	Forced  bool
}

// DirectiveFunc wraps an earlier prompt in the forced re-invocation directive
type DirectiveFunc func(handler, prompt string) (string, error)

// Call describes one handler invocation
type Call struct {
	SessionID string
	Handler   string
	Prompt    string
	// Marker is the heading a complete answer must carry; may be empty
	Marker   string
	UserText string
	Forward  bool
	Out      Sink
	Notices  *Notices
}

// Completer drives the gateway through the aggregation state machine and
// resolves a single answer, re-invoking the model once when a final stalls.
type Completer struct {
	gateway   stream.Gateway
	directive DirectiveFunc
	policy    Policy
	timeout   time.Duration
	log       *logger.Logger
}

func NewCompleter(gateway stream.Gateway, directive DirectiveFunc, policy Policy, timeout time.Duration) *Completer {
	return &Completer{
		gateway:   gateway,
		directive: directive,
		policy:    policy,
		timeout:   timeout,
		log:       logger.Get().With("component", "aggregator"),
	}
}

// Complete always returns an Answer; failures resolve to the apology text.
// Both the first call and the forced re-invocation run under ctx's deadline;
// without one, the configured timeout bounds the whole Complete.
func (c *Completer) Complete(ctx context.Context, call Call) Answer {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if call.Notices == nil {
		call.Notices = &Notices{}
	}
	log := c.log.With("session_id", call.SessionID, "handler", call.Handler)

	first := c.invoke(ctx, call, call.Prompt)
	log.Debugw("invocation finished",
		"verdict", first.Verdict,
		"final_runes", utf8.RuneCountInString(first.Final),
		"accumulated_runes", utf8.RuneCountInString(first.Accumulated),
	)

	switch first.Verdict {
	case VerdictAccepted:
		return Answer{Text: c.withMarker(first.Final, call.Marker), Source: SourceModel, OK: true, Verdict: first.Verdict}

	case VerdictFailed:
		log.Warnw("model stream failed", "error", first.Err)
		metrics.RecordFallback(call.Handler, first.Verdict.String())
		return apology(first.Verdict)

	case VerdictNoFinal, VerdictTimedOut:
		metrics.RecordFallback(call.Handler, first.Verdict.String())
		return c.fallback(first.Verdict, call.Marker, first.Accumulated)
	}

	// Stalled: one forced re-invocation, never more
	if ctx.Err() != nil {
		return c.fallback(first.Verdict, call.Marker, first.Accumulated)
	}

	directive, err := c.directive(call.Handler, call.Prompt)
	if err != nil {
		log.Warnw("failed to build directive", "error", err)
		metrics.RecordFallback(call.Handler, first.Verdict.String())
		return c.fallback(first.Verdict, call.Marker, first.Accumulated)
	}

	second := c.invoke(ctx, call, directive)
	accepted := second.Verdict == VerdictAccepted &&
		(call.Marker == "" || strings.Contains(second.Final, call.Marker))
	metrics.RecordForced(call.Handler, accepted)
	log.Infow("forced re-invocation", "verdict", second.Verdict, "accepted", accepted)

	if accepted {
		return Answer{Text: second.Final, Source: SourceForced, OK: true, Verdict: second.Verdict, Forced: true}
	}

	metrics.RecordFallback(call.Handler, first.Verdict.String())
	longer := first.Accumulated
	if utf8.RuneCountInString(second.Accumulated) > utf8.RuneCountInString(longer) {
		longer = second.Accumulated
	}
	ans := c.fallback(first.Verdict, call.Marker, longer)
	ans.Forced = true
	return ans
}

func (c *Completer) invoke(ctx context.Context, call Call, prompt string) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := c.gateway.Stream(ctx, stream.Request{
		SessionID: call.SessionID,
		Handler:   call.Handler,
		Prompt:    prompt,
	})
	metrics.RecordModelCall(call.Handler, err)
	if err != nil {
		return Result{Verdict: VerdictFailed, Err: errors.Wrap(err, "open model stream")}
	}

	agg := New(c.policy, Options{
		UserText: call.UserText,
		Forward:  call.Forward,
		Out:      call.Out,
		Notices:  call.Notices,
	})
	return agg.Consume(ctx, events)
}

func (c *Completer) fallback(v Verdict, marker, accumulated string) Answer {
	if strings.TrimSpace(accumulated) == "" {
		return apology(v)
	}
	text := accumulated
	if utf8.RuneCountInString(accumulated) >= c.policy.MinFinalRunes {
		text = c.withMarker(accumulated, marker)
	}
	return Answer{Text: text, Source: SourceAccumulated, OK: true, Verdict: v}
}

func (c *Completer) withMarker(text, marker string) string {
	if marker == "" || strings.Contains(text, marker) {
		return text
	}
	return marker + "\n\n" + text
}

func apology(v Verdict) Answer {
	return Answer{Text: ApologyText, Source: SourceApology, OK: false, Verdict: v}
}
