package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripmind/internal/agents"
	"tripmind/internal/aggregator"
	"tripmind/internal/domain/session"
	"tripmind/internal/domain/turn"
	"tripmind/internal/extract"
	"tripmind/internal/metrics"
	"tripmind/internal/stream"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

const (
	// BusyText is sent when a message arrives while a turn is in flight
	BusyText = "ขออภัยค่ะ ฉันกำลังประมวลผลคำถามของคุณอยู่ กรุณารอสักครู่ค่ะ"

	publishTimeout = 3 * time.Second
)

// Classifier routes a message to a handler
type Classifier interface {
	Classify(text string, history []session.Message) agents.HandlerID
	IsFullPlanRequest(text string) bool
}

// Enricher returns an opaque text block to splice into a handler prompt.
// ok=false means no enrichment; it never aborts a turn.
type Enricher interface {
	Enrich(ctx context.Context, handler agents.HandlerID, fields extract.Fields) (string, bool)
}

type noopEnricher struct{}

func (noopEnricher) Enrich(context.Context, agents.HandlerID, extract.Fields) (string, bool) {
	return "", false
}

// Deps are the collaborators of the Orchestrator
type Deps struct {
	Sessions   *session.Service
	Classifier Classifier
	Registry   *agents.Registry
	Completer  *aggregator.Completer

	// Optional
	Enricher  Enricher
	Publisher turn.Publisher
	Tracker   errors.Tracker

	HistoryWindow int
	ExcerptRunes  int
	// TurnTimeout bounds enrichment and every model call of one turn,
	// forced re-invocations and full-plan sections included
	TurnTimeout time.Duration
}

// Orchestrator runs conversation turns. A session admits one turn at a time;
// different sessions run in parallel.
type Orchestrator struct {
	sessions   *session.Service
	classifier Classifier
	registry   *agents.Registry
	completer  *aggregator.Completer
	enricher   Enricher
	publisher  turn.Publisher
	tracker    errors.Tracker

	historyWindow int
	excerptRunes  int
	turnTimeout   time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup

	log *logger.Logger
}

func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		sessions:      deps.Sessions,
		classifier:    deps.Classifier,
		registry:      deps.Registry,
		completer:     deps.Completer,
		enricher:      deps.Enricher,
		publisher:     deps.Publisher,
		tracker:       deps.Tracker,
		historyWindow: deps.HistoryWindow,
		excerptRunes:  deps.ExcerptRunes,
		turnTimeout:   deps.TurnTimeout,
		inflight:      make(map[string]struct{}),
		log:           logger.Get().With("component", "orchestrator"),
	}
	if o.enricher == nil {
		o.enricher = noopEnricher{}
	}
	if o.publisher == nil {
		o.publisher = turn.NoopPublisher{}
	}
	if o.historyWindow <= 0 {
		o.historyWindow = 10
	}
	if o.excerptRunes <= 0 {
		o.excerptRunes = 1000
	}
	return o
}

// HandleMessage starts a turn and returns its messages. The channel yields
// partial* (final|error) turn_complete and is then closed. When a turn is
// already running for the session it yields a single busy partial instead.
// Cancelling ctx aborts the model stream and releases the session.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text string) <-chan stream.TurnMessage {
	if !o.admit(sessionID) {
		out := make(chan stream.TurnMessage, 1)
		out <- stream.PartialMessage(BusyText)
		close(out)
		return out
	}

	out := make(chan stream.TurnMessage)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(out)
		o.serve(ctx, sessionID, text, func(m stream.TurnMessage) bool {
			return stream.Send(ctx, out, m)
		})
	}()
	return out
}

// Deliver runs a turn in the calling goroutine and passes every message to
// sink, which reports whether the message was accepted. The session is freed
// only after sink has returned for turn_complete, so a transport that queues
// messages inside sink keeps consecutive turns in order.
func (o *Orchestrator) Deliver(ctx context.Context, sessionID, text string, sink func(stream.TurnMessage) bool) {
	if !o.admit(sessionID) {
		sink(stream.PartialMessage(BusyText))
		return
	}

	o.wg.Add(1)
	defer o.wg.Done()
	o.serve(ctx, sessionID, text, sink)
}

func (o *Orchestrator) admit(sessionID string) bool {
	if o.acquire(sessionID) {
		return true
	}
	metrics.BusyRejections.Inc()
	o.log.Infow("turn rejected, session busy", "session_id", sessionID)
	return false
}

// serve runs an admitted turn. The turn event is published after the session
// is released.
func (o *Orchestrator) serve(ctx context.Context, sessionID, text string, sink func(stream.TurnMessage) bool) {
	t := &turnRun{
		id:        uuid.NewString(),
		sessionID: sessionID,
		text:      text,
		started:   time.Now(),
		sink:      sink,
		log:       o.log.ForSession(sessionID),
	}
	ctx = errors.WithSessionID(ctx, sessionID)

	func() {
		defer o.release(sessionID)
		o.run(ctx, t)
	}()
	o.publish(ctx, t)
}

// InFlight returns the number of running turns
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// Wait blocks until every running turn has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[sessionID]; busy {
		return false
	}
	o.inflight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.inflight, sessionID)
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, t *turnRun) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if err, ok := r.(error); ok && errors.Is(err, errors.ErrStoreCorrupted) {
			panic(r)
		}
		err := errors.Wrapf(errors.ErrInternal, "panic in turn: %v", r)
		t.log.Errorw("turn panicked", "error", err)
		o.capture(ctx, t, err)
		t.fail(ctx)
	}()

	if err := o.sessions.AppendUser(ctx, t.sessionID, t.text); err != nil {
		o.abort(ctx, t, err)
		return
	}

	fields, err := o.storeFields(ctx, t)
	if err != nil {
		o.abort(ctx, t, err)
		return
	}

	// budget carries the turn deadline; ctx stays the client's so the
	// fallback answer and turn_complete are still delivered after it expires
	budget := ctx
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		budget, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	if o.classifier.IsFullPlanRequest(t.text) {
		t.fullPlan = true
		o.fullPlan(ctx, budget, t, fields)
	} else {
		o.single(ctx, budget, t, fields)
	}
}

// storeFields saves extracted travel fields when the message carries any and
// returns the merged view used for prompts.
func (o *Orchestrator) storeFields(ctx context.Context, t *turnRun) (extract.Fields, error) {
	stored, err := o.sessions.GetTravelFields(ctx, t.sessionID)
	if err != nil {
		return stored, err
	}

	extracted := extract.ExtractFields(t.text)
	if !extracted.HasAny() {
		return stored, nil
	}

	merged := stored.Merge(extracted)
	if err := o.sessions.SetTravelFields(ctx, t.sessionID, merged); err != nil {
		return stored, err
	}
	return merged, nil
}

func (o *Orchestrator) single(ctx, budget context.Context, t *turnRun, fields extract.Fields) {
	history, err := o.sessions.Get(ctx, t.sessionID, o.historyWindow)
	if err != nil {
		o.abort(ctx, t, err)
		return
	}

	handler := o.classifier.Classify(t.text, history)
	t.handler = handler
	t.log = t.log.With("handler", handler)
	t.log.Infow("turn started", "turn_id", t.id)

	cfg, ok := o.registry.Get(handler)
	if !ok {
		o.abort(ctx, t, errors.Wrapf(errors.ErrNotFound, "handler %s", handler))
		return
	}

	summary, err := o.sessions.ContextSummary(ctx, t.sessionID, o.historyWindow)
	if err != nil {
		o.abort(ctx, t, err)
		return
	}

	enrichment, _ := o.enricher.Enrich(budget, handler, fields)

	prompt, err := o.registry.BuildPrompt(handler, agents.PromptInput{
		Query:      t.text,
		Fields:     fields,
		Context:    summary,
		Enrichment: enrichment,
	})
	if err != nil {
		o.abort(ctx, t, err)
		return
	}

	ans := o.completer.Complete(budget, aggregator.Call{
		SessionID: t.sessionID,
		Handler:   string(handler),
		Prompt:    prompt,
		Marker:    cfg.Marker,
		UserText:  t.text,
		Forward:   true,
		Out:       func(m stream.TurnMessage) bool { return t.send(ctx, m) },
		Notices:   &t.notices,
	})
	if ctx.Err() != nil {
		t.log.Infow("turn cancelled", "error", ctx.Err())
		return
	}
	t.answer = ans

	if err := o.sessions.AppendAssistant(ctx, t.sessionID, ans.Text, string(handler)); err != nil {
		o.abort(ctx, t, err)
		return
	}
	if ans.OK {
		if err := o.sessions.SetHandlerResponse(ctx, t.sessionID, string(handler), ans.Text); err != nil {
			o.abort(ctx, t, err)
			return
		}
	}

	t.finish(ctx, ans.Text)
}

func (o *Orchestrator) abort(ctx context.Context, t *turnRun, err error) {
	if ctx.Err() != nil {
		return
	}
	t.log.Errorw("turn failed", "error", err)
	o.capture(ctx, t, err)
	t.fail(ctx)
}

func (o *Orchestrator) capture(ctx context.Context, t *turnRun, err error) {
	if o.tracker == nil {
		return
	}
	_ = o.tracker.CaptureError(ctx, err, map[string]string{
		"component":  "orchestrator",
		"session_id": t.sessionID,
		"handler":    string(t.handler),
	})
}

func (o *Orchestrator) publish(ctx context.Context, t *turnRun) {
	source := string(t.answer.Source)
	if t.failed {
		source = "error"
	}
	if source == "" {
		return
	}

	elapsed := time.Since(t.started)
	metrics.RecordTurn(string(t.handler), source, elapsed)

	ev := turn.Event{
		ID:         t.id,
		SessionID:  t.sessionID,
		Handler:    string(t.handler),
		Source:     source,
		FullPlan:   t.fullPlan,
		Forced:     t.answer.Forced,
		Failed:     t.failed,
		DurationMs: elapsed.Milliseconds(),
		At:         time.Now().UTC(),
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.PublishTurn(pctx, ev); err != nil {
		t.log.Warnw("failed to publish turn event", "error", err)
	}
}

// turnRun is the mutable state of one turn
type turnRun struct {
	id        string
	sessionID string
	text      string
	handler   agents.HandlerID
	fullPlan  bool
	started   time.Time
	sink      func(stream.TurnMessage) bool
	log       *logger.Logger

	notices  aggregator.Notices
	answer   aggregator.Answer
	terminal bool
	complete bool
	failed   bool
}

func (t *turnRun) send(ctx context.Context, m stream.TurnMessage) bool {
	if t.complete || ctx.Err() != nil {
		return false
	}
	return t.sink(m)
}

// finish emits the final answer and turn_complete
func (t *turnRun) finish(ctx context.Context, text string) {
	if t.terminal {
		return
	}
	t.terminal = true
	t.send(ctx, stream.FinalMessage(text))
	t.send(ctx, stream.TurnComplete())
	t.complete = true
}

// fail emits an error message and turn_complete unless the turn already ended
func (t *turnRun) fail(ctx context.Context) {
	if t.complete {
		return
	}
	if !t.terminal {
		t.terminal = true
		t.failed = true
		t.send(ctx, stream.ErrorMessage(aggregator.ApologyText))
	}
	t.send(ctx, stream.TurnComplete())
	t.complete = true
}
