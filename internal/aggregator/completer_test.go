package aggregator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmind/internal/stream"
	"tripmind/internal/testsupport"
)

const marker = "===== แผนการเดินทางของคุณ ====="

func directive(handler, prompt string) (string, error) {
	return "ตอบให้ครบถ้วน\n" + prompt, nil
}

func newCompleter(gw stream.Gateway) *Completer {
	return NewCompleter(gw, directive, DefaultPolicy(), time.Second)
}

func TestComplete_Accepted(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("restaurant", stream.Partial(runes(150)), stream.Final(runes(150)))

	ans := newCompleter(gw).Complete(context.Background(), Call{SessionID: "s1", Handler: "restaurant", Prompt: "p"})

	assert.Equal(t, SourceModel, ans.Source)
	assert.True(t, ans.OK)
	assert.Equal(t, runes(150), ans.Text)
	assert.Equal(t, 1, gw.Calls("restaurant"))
	gw.Wait()
}

func TestComplete_StallTriggersOneForcedReinvocation(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("activity",
			stream.ToolInvocation("search_web", map[string]any{"query": "น่าน"}),
			stream.ToolResult("search_web", map[string]any{"status": "success"}),
			stream.Final("I will now look this up"),
		).
		Events("activity", stream.Final(runes(200)))

	ans := newCompleter(gw).Complete(context.Background(), Call{SessionID: "s1", Handler: "activity", Prompt: "เที่ยวน่าน"})

	assert.Equal(t, 2, gw.Calls("activity"))
	assert.Equal(t, SourceForced, ans.Source)
	assert.True(t, ans.Forced)
	assert.Equal(t, runes(200), ans.Text)

	reqs := gw.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "เที่ยวน่าน", reqs[0].Prompt)
	assert.True(t, strings.HasSuffix(reqs[1].Prompt, "เที่ยวน่าน"))
	gw.Wait()
}

func TestComplete_ForcedReinvocationHappensOnlyOnce(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("activity",
			stream.ToolInvocation("search_web", nil),
			stream.ToolResult("search_web", nil),
			stream.Final("I will now look this up"),
		)

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "activity", Prompt: "p"})

	assert.Equal(t, 2, gw.Calls("activity"))
	assert.Equal(t, SourceApology, ans.Source)
	assert.False(t, ans.OK)
	gw.Wait()
}

func TestComplete_FallsBackToAccumulated(t *testing.T) {
	partials := make([]stream.Event, 0, 7)
	var want strings.Builder
	for i := 0; i < 6; i++ {
		chunk := strings.Repeat("x", 100)
		want.WriteString(chunk)
		partials = append(partials, stream.Partial(chunk))
	}
	partials = append(partials, stream.Final("ok"))

	gw := testsupport.NewScriptedGateway().Events("general", partials...)

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "general", Prompt: "p"})

	assert.Equal(t, SourceAccumulated, ans.Source)
	assert.Equal(t, want.String(), ans.Text)
	assert.Len(t, ans.Text, 600)
	assert.NotEqual(t, "ok", ans.Text)
	gw.Wait()
}

func TestComplete_MarkerPrefixed(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("trip_planner", stream.Final(runes(150)))

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "trip_planner", Prompt: "p", Marker: marker})

	assert.Equal(t, SourceModel, ans.Source)
	assert.True(t, strings.HasPrefix(ans.Text, marker))
	assert.True(t, strings.HasSuffix(ans.Text, runes(150)))
	gw.Wait()
}

func TestComplete_ForcedAnswerWithoutMarkerRejected(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("trip_planner", stream.Partial(runes(300)), stream.Final("สรุป")).
		Events("trip_planner", stream.Final(runes(150)))

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "trip_planner", Prompt: "p", Marker: marker})

	assert.Equal(t, 2, gw.Calls("trip_planner"))
	assert.Equal(t, SourceAccumulated, ans.Source)
	assert.Equal(t, marker+"\n\n"+runes(300), ans.Text)
	gw.Wait()
}

func TestComplete_ForcedAnswerWithMarkerAccepted(t *testing.T) {
	forced := marker + "\n" + runes(150)
	gw := testsupport.NewScriptedGateway().
		Events("trip_planner", stream.Final("สรุป")).
		Events("trip_planner", stream.Final(forced))

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "trip_planner", Prompt: "p", Marker: marker})

	assert.Equal(t, SourceForced, ans.Source)
	assert.Equal(t, forced, ans.Text)
	gw.Wait()
}

func TestComplete_ShortAccumulationNotPrefixed(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("trip_planner", stream.Partial("สั้น"))

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "trip_planner", Prompt: "p", Marker: marker})

	assert.Equal(t, VerdictNoFinal, ans.Verdict)
	assert.Equal(t, "สั้น", ans.Text)
	assert.Equal(t, 1, gw.Calls("trip_planner"))
	gw.Wait()
}

func TestComplete_ErrorEventIsApology(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("accommodation", stream.Partial(runes(50)), stream.Failure(assert.AnError))

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "accommodation", Prompt: "p"})

	assert.Equal(t, SourceApology, ans.Source)
	assert.Equal(t, ApologyText, ans.Text)
	assert.False(t, ans.OK)
	gw.Wait()
}

func TestComplete_StreamOpenErrorIsApology(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		On("accommodation", testsupport.Script{Err: assert.AnError})

	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "accommodation", Prompt: "p"})

	assert.Equal(t, SourceApology, ans.Source)
	assert.Equal(t, VerdictFailed, ans.Verdict)
}

func TestComplete_TimeoutUsesAccumulated(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		On("general", testsupport.Script{Events: []stream.Event{stream.Partial("กำลังคิด")}, Hang: true})

	c := NewCompleter(gw, directive, DefaultPolicy(), 30*time.Millisecond)
	ans := c.Complete(context.Background(), Call{Handler: "general", Prompt: "p"})

	assert.Equal(t, VerdictTimedOut, ans.Verdict)
	assert.Equal(t, SourceAccumulated, ans.Source)
	assert.Equal(t, "กำลังคิด", ans.Text)
	gw.Wait()
}

func TestComplete_ForcedReinvocationSharesDeadline(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		On("activity", testsupport.Script{
			Events: []stream.Event{stream.Partial("ดอยอินทนนท์ "), stream.Final("สรุป")},
			Delay:  100 * time.Millisecond,
		}).
		On("activity", testsupport.Script{Hang: true})

	c := NewCompleter(gw, directive, DefaultPolicy(), 300*time.Millisecond)
	start := time.Now()
	ans := c.Complete(context.Background(), Call{Handler: "activity", Prompt: "p"})
	elapsed := time.Since(start)

	assert.Equal(t, 2, gw.Calls("activity"))
	assert.Less(t, elapsed, 450*time.Millisecond)
	assert.True(t, ans.Forced)
	assert.Equal(t, SourceAccumulated, ans.Source)
	assert.Equal(t, "ดอยอินทนนท์ ", ans.Text)
	gw.Wait()
}

func TestComplete_UsesCallerDeadline(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		On("general", testsupport.Script{Events: []stream.Event{stream.Partial("กำลังคิด")}, Hang: true})

	c := NewCompleter(gw, directive, DefaultPolicy(), time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	ans := c.Complete(ctx, Call{Handler: "general", Prompt: "p"})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, VerdictTimedOut, ans.Verdict)
	gw.Wait()
}

func TestComplete_ForwardsBatchedPartials(t *testing.T) {
	gw := testsupport.NewScriptedGateway().
		Events("general",
			stream.Partial(runes(40)),
			stream.Partial(runes(40)),
			stream.Partial(runes(40)),
			stream.Final(runes(120)),
		)

	rec := &recorder{}
	ans := newCompleter(gw).Complete(context.Background(), Call{Handler: "general", Prompt: "p", Forward: true, Out: rec.sink})

	assert.True(t, ans.OK)
	assert.Equal(t, []string{runes(120)}, rec.texts())
	gw.Wait()
}
