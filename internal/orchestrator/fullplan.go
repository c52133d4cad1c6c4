package orchestrator

import (
	"context"
	"strings"

	"tripmind/internal/agents"
	"tripmind/internal/aggregator"
	"tripmind/internal/domain/session"
	"tripmind/internal/extract"
	"tripmind/internal/stream"
	"tripmind/pkg/templates"
)

const (
	// FullPlanStatus opens every full-plan turn
	FullPlanStatus = "กำลังวิเคราะห์คำขอของคุณและรวบรวมข้อมูลจากผู้เชี่ยวชาญด้านต่างๆ..."

	emptySection = "ไม่มีข้อมูล"
)

// section is the outcome of one sub-call of a full plan
type section struct {
	handler agents.HandlerID
	title   string
	text    string
	answer  aggregator.Answer
}

// fullPlan runs the handlers of FullPlanSequence one after another and
// answers with the trip planner's plan. Earlier answers reach the planner as
// excerpts; a failed section is replaced by its static fallback.
func (o *Orchestrator) fullPlan(ctx, budget context.Context, t *turnRun, fields extract.Fields) {
	t.handler = agents.HandlerTripPlanner
	t.log = t.log.With("handler", t.handler, "full_plan", true)
	t.log.Infow("full plan started", "turn_id", t.id, "destination", fields.Destination)

	if !t.send(ctx, stream.PartialMessage(FullPlanStatus)) {
		return
	}

	summary, err := o.sessions.ContextSummary(ctx, t.sessionID, o.historyWindow)
	if err != nil {
		o.abort(ctx, t, err)
		return
	}

	var sections []section
	var plan section
	for _, id := range agents.FullPlanSequence {
		cfg, ok := o.registry.Get(id)
		if !ok {
			t.log.Warnw("handler missing from registry, skipping section", "section", id)
			continue
		}
		if cfg.StatusText != "" && !t.send(ctx, stream.PartialMessage(cfg.StatusText)) {
			return
		}

		in := agents.PromptInput{Query: t.text, Fields: fields, Context: summary}
		if id == agents.HandlerTripPlanner {
			in.Excerpts = o.excerpts(sections)
		}

		sec := o.runSection(budget, t, cfg, in)
		if ctx.Err() != nil {
			t.log.Infow("full plan cancelled", "section", id)
			return
		}

		if sec.answer.OK {
			if err := o.sessions.SetHandlerResponse(ctx, t.sessionID, string(id), sec.text); err != nil {
				o.abort(ctx, t, err)
				return
			}
		}

		if id == agents.HandlerTripPlanner {
			plan = sec
			continue
		}
		sections = append(sections, sec)
	}

	text := plan.text
	if !plan.answer.OK {
		text = assemblePlan(sections)
		t.log.Warnw("trip planner failed, assembled plan from sections", "verdict", plan.answer.Verdict)
	} else if !strings.Contains(text, agents.TripPlanMarker) {
		text = agents.TripPlanMarker + "\n\n" + text
	}

	t.answer = plan.answer
	if !t.answer.OK {
		t.answer.Source = aggregator.SourceAccumulated
	}

	if err := o.sessions.SetState(ctx, t.sessionID, session.KeyTravelPlan, text); err != nil {
		o.abort(ctx, t, err)
		return
	}
	if err := o.sessions.AppendAssistant(ctx, t.sessionID, text, string(agents.HandlerTripPlanner)); err != nil {
		o.abort(ctx, t, err)
		return
	}
	if err := o.sessions.SetHandlerResponse(ctx, t.sessionID, string(agents.HandlerTripPlanner), text); err != nil {
		o.abort(ctx, t, err)
		return
	}

	t.finish(ctx, text)
}

func (o *Orchestrator) runSection(ctx context.Context, t *turnRun, cfg agents.HandlerConfig, in agents.PromptInput) section {
	sec := section{handler: cfg.ID, title: cfg.SectionTitle}

	enrichment, _ := o.enricher.Enrich(ctx, cfg.ID, in.Fields)
	in.Enrichment = enrichment

	prompt, err := o.registry.BuildPrompt(cfg.ID, in)
	if err != nil {
		t.log.Warnw("failed to build section prompt", "section", cfg.ID, "error", err)
		sec.text = fallbackText(cfg)
		return sec
	}

	sec.answer = o.completer.Complete(ctx, aggregator.Call{
		SessionID: t.sessionID,
		Handler:   string(cfg.ID),
		Prompt:    prompt,
		Marker:    cfg.Marker,
		UserText:  t.text,
		Forward:   false,
		Notices:   &t.notices,
	})

	sec.text = sec.answer.Text
	if !sec.answer.OK {
		t.log.Warnw("section failed, using fallback", "section", cfg.ID, "verdict", sec.answer.Verdict)
		sec.text = fallbackText(cfg)
	}
	return sec
}

func (o *Orchestrator) excerpts(sections []section) []agents.Excerpt {
	out := make([]agents.Excerpt, 0, len(sections))
	for _, s := range sections {
		text := templates.TruncateRunes(s.text, o.excerptRunes)
		if strings.TrimSpace(text) == "" {
			text = emptySection
		}
		out = append(out, agents.Excerpt{Title: s.title, Text: text})
	}
	return out
}

// assemblePlan builds a plan from the sections when the planner produced
// nothing usable
func assemblePlan(sections []section) string {
	var b strings.Builder
	b.WriteString(agents.TripPlanMarker)
	for _, s := range sections {
		b.WriteString("\n\n")
		b.WriteString(s.title)
		b.WriteString("\n")
		b.WriteString(s.text)
	}
	return b.String()
}

func fallbackText(cfg agents.HandlerConfig) string {
	if cfg.FallbackText != "" {
		return cfg.FallbackText
	}
	return emptySection
}
