package session_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmind/internal/domain/session"
	"tripmind/internal/extract"
	"tripmind/internal/repository/memory"
	"tripmind/pkg/errors"
)

func newService() *session.Service {
	return session.NewService(memory.NewSessionRepository())
}

func TestService_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.AppendUser(ctx, "s1", "ร้านอาหารอร่อยในหัวหิน"))
	require.NoError(t, svc.AppendAssistant(ctx, "s1", "แนะนำร้าน...", "restaurant"))

	msgs, err := svc.Get(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "restaurant", msgs[1].Handler)

	last, ok := session.LastAssistant(msgs)
	require.True(t, ok)
	assert.Equal(t, "restaurant", last.Handler)
}

func TestService_EmptySessionIDRejected(t *testing.T) {
	err := newService().AppendUser(context.Background(), "", "hi")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestService_UnknownStateKeyRejected(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	err := svc.SetState(ctx, "s1", session.StateKey("tavily_search_results"), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownStateKey))

	ids, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "rejected write must not create the session")

	_, err = session.ParseStateKey("arbitrary")
	assert.True(t, errors.Is(err, errors.ErrUnknownStateKey))

	_, err = session.ResponseKey("weather")
	assert.True(t, errors.Is(err, errors.ErrUnknownStateKey))
}

func TestService_GetStateDefault(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	v, err := svc.GetState(ctx, "s1", session.KeyBudget, "ไม่ระบุ")
	require.NoError(t, err)
	assert.Equal(t, "ไม่ระบุ", v)

	require.NoError(t, svc.SetState(ctx, "s1", session.KeyBudget, "20,000"))
	require.NoError(t, svc.SetState(ctx, "s1", session.KeyBudget, "15,000"))
	v, err = svc.GetState(ctx, "s1", session.KeyBudget, "ไม่ระบุ")
	require.NoError(t, err)
	assert.Equal(t, "15,000", v)
}

func TestService_TravelFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	in := extract.ExtractFields("- ปลายทาง: เชียงใหม่\n- งบประมาณรวม: ไม่เกิน 20,000 บาท\n- จำนวนผู้เดินทาง: 3")
	require.NoError(t, svc.SetTravelFields(ctx, "s1", in))

	out, err := svc.GetTravelFields(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "เชียงใหม่", out.Destination)
	assert.Equal(t, "20,000", out.Budget)
	assert.Equal(t, "20000", out.BudgetAmount.String())
	assert.Equal(t, 3, out.NumTravelers)
	assert.Equal(t, extract.DefaultOrigin, out.Origin)
}

func TestService_HandlerResponse(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.SetHandlerResponse(ctx, "s1", "accommodation", "โรงแรม A"))

	got, err := svc.GetHandlerResponse(ctx, "s1", "accommodation")
	require.NoError(t, err)
	assert.Equal(t, "โรงแรม A", got)

	last, err := svc.GetState(ctx, "s1", session.KeyLastHandler, "")
	require.NoError(t, err)
	assert.Equal(t, "accommodation", last)
}

func TestService_ClearThenGetIsEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.AppendUser(ctx, "s1", "hi"))
	require.NoError(t, svc.Clear(ctx, "s1"))
	require.NoError(t, svc.Clear(ctx, "unknown"))

	for _, id := range []string{"s1", "unknown"} {
		msgs, err := svc.Get(ctx, id, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	}
}

func TestService_ContextSummary(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.AppendUser(ctx, "s1", "ที่พักในภูเก็ต"))
	require.NoError(t, svc.AppendAssistant(ctx, "s1", strings.Repeat("ก", 150), "accommodation"))

	summary, err := svc.ContextSummary(ctx, "s1", 10)
	require.NoError(t, err)

	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ผู้ใช้: ที่พักในภูเก็ต", lines[0])
	assert.Equal(t, "ผู้ช่วย (accommodation): "+strings.Repeat("ก", 100)+"...", lines[1])
}
