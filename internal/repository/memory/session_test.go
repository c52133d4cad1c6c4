package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tripmind/internal/domain/session"
	"tripmind/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func userMsg(text string) session.Message {
	return session.Message{Role: session.RoleUser, Content: text}
}

func TestHistory_MaxKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, "s1", userMsg(fmt.Sprintf("m%d", i))))
	}

	all, err := repo.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	last, err := repo.History(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "m3", last[0].Content)
	assert.Equal(t, "m4", last[1].Content)

	more, err := repo.History(ctx, "s1", 50)
	require.NoError(t, err)
	assert.Len(t, more, 5)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()
	require.NoError(t, repo.Append(ctx, "s1", userMsg("original")))

	got, err := repo.History(ctx, "s1", 0)
	require.NoError(t, err)
	got[0].Content = "mutated"

	again, err := repo.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestClear_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	require.NoError(t, repo.Clear(ctx, "never-created"))
	got, err := repo.History(ctx, "never-created", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.Append(ctx, "s1", userMsg("hi")))
	require.NoError(t, repo.SetState(ctx, "s1", session.KeyDestination, "เชียงใหม่"))
	require.NoError(t, repo.Clear(ctx, "s1"))
	require.NoError(t, repo.Clear(ctx, "s1"))

	got, err = repo.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, found, err := repo.GetState(ctx, "s1", session.KeyDestination)
	require.NoError(t, err)
	assert.False(t, found)

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReadsDoNotCreateSessions(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	_, _ = repo.History(ctx, "ghost", 0)
	_, _, _ = repo.GetState(ctx, "ghost", session.KeyOrigin)

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	const sessions, perSession = 8, 200
	var wg sync.WaitGroup
	for s := 0; s < sessions; s++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				_ = repo.Append(ctx, id, userMsg(fmt.Sprintf("%d", i)))
			}
		}(fmt.Sprintf("s%d", s))
	}
	wg.Wait()

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, sessions)

	for _, id := range ids {
		msgs, err := repo.History(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, msgs, perSession)
		for i, m := range msgs {
			assert.Equal(t, fmt.Sprintf("%d", i), m.Content)
		}
	}
}

func TestClearRacingWithAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = repo.Append(ctx, "s1", userMsg("x"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = repo.Clear(ctx, "s1")
		}
	}()
	wg.Wait()

	// whatever survived the last Clear is a consistent prefix of appends
	msgs, err := repo.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(msgs), 500)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := NewSessionRepository(WithClock(clock), WithEviction(IdleLongerThan(time.Hour)))
	require.NoError(t, repo.Append(ctx, "old", userMsg("a")))

	now = now.Add(30 * time.Minute)
	require.NoError(t, repo.Append(ctx, "fresh", userMsg("b")))

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, repo.Sweep())

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestSweep_NoPolicyKeepsEverything(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()
	require.NoError(t, repo.Append(ctx, "s1", userMsg("a")))

	assert.Equal(t, 0, repo.Sweep())
}

func TestCorruptionPanics(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()
	require.NoError(t, repo.Append(ctx, "s1", userMsg("a")))

	repo.entries["s1"].appended = 7

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, errors.ErrStoreCorrupted))
	}()
	_, _ = repo.History(ctx, "s1", 0)
}
