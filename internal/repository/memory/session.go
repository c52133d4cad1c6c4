package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tripmind/internal/domain/session"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

// EvictionPolicy decides whether a session idle for the given duration is dropped
type EvictionPolicy func(sessionID string, idle time.Duration) bool

// IdleLongerThan evicts sessions that have been idle for at least ttl
func IdleLongerThan(ttl time.Duration) EvictionPolicy {
	return func(_ string, idle time.Duration) bool {
		return idle >= ttl
	}
}

type entry struct {
	mu       sync.Mutex
	id       string
	history  []session.Message
	appended int
	state    map[session.StateKey]any
	lastSeen time.Time
	removed  bool
}

// SessionRepository keeps sessions in process memory.
//
// The map lock only guards lookup, insert and delete; every session operation
// runs under that session's own mutex.
type SessionRepository struct {
	mu      sync.RWMutex
	entries map[string]*entry
	policy  EvictionPolicy
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a SessionRepository
type Option func(*SessionRepository)

// WithEviction installs an eviction policy consulted by Sweep
func WithEviction(p EvictionPolicy) Option {
	return func(r *SessionRepository) { r.policy = p }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *SessionRepository) { r.now = now }
}

// NewSessionRepository creates an empty in-memory repository
func NewSessionRepository(opts ...Option) *SessionRepository {
	r := &SessionRepository{
		entries: make(map[string]*entry),
		now:     time.Now,
		log:     logger.Get().With("component", "memory_session_repo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ session.Repository = (*SessionRepository)(nil)

// with runs fn under the session's lock. When create is false and the
// session does not exist, fn is not called and false is returned.
// An entry removed by Clear while we waited for its lock is skipped and the
// lookup is retried, so the operation lands on a fresh session.
func (r *SessionRepository) with(id string, create bool, fn func(e *entry)) bool {
	for {
		r.mu.RLock()
		e := r.entries[id]
		r.mu.RUnlock()

		if e == nil {
			if !create {
				return false
			}
			r.mu.Lock()
			e = r.entries[id]
			if e == nil {
				e = &entry{id: id, state: make(map[session.StateKey]any)}
				r.entries[id] = e
			}
			r.mu.Unlock()
		}

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.verify(id)
		fn(e)
		e.lastSeen = r.now()
		e.mu.Unlock()
		return true
	}
}

// verify panics when the entry violates store invariants. Either case means
// a concurrency bug, not a request-level failure.
func (e *entry) verify(id string) {
	if e.id != id {
		panic(fmt.Errorf("%w: entry %q stored under %q", errors.ErrStoreCorrupted, e.id, id))
	}
	if len(e.history) != e.appended {
		panic(fmt.Errorf("%w: session %q history has %d messages, %d appended",
			errors.ErrStoreCorrupted, id, len(e.history), e.appended))
	}
}

func (r *SessionRepository) Append(_ context.Context, sessionID string, msg session.Message) error {
	r.with(sessionID, true, func(e *entry) {
		e.history = append(e.history, msg)
		e.appended++
	})
	return nil
}

func (r *SessionRepository) History(_ context.Context, sessionID string, max int) ([]session.Message, error) {
	var out []session.Message
	r.with(sessionID, false, func(e *entry) {
		start := 0
		if max > 0 && len(e.history) > max {
			start = len(e.history) - max
		}
		out = make([]session.Message, len(e.history)-start)
		copy(out, e.history[start:])
	})
	if out == nil {
		out = []session.Message{}
	}
	return out, nil
}

func (r *SessionRepository) SetState(_ context.Context, sessionID string, key session.StateKey, value any) error {
	r.with(sessionID, true, func(e *entry) {
		e.state[key] = value
	})
	return nil
}

func (r *SessionRepository) GetState(_ context.Context, sessionID string, key session.StateKey) (any, bool, error) {
	var (
		value any
		found bool
	)
	r.with(sessionID, false, func(e *entry) {
		value, found = e.state[key]
	})
	return value, found, nil
}

func (r *SessionRepository) Clear(_ context.Context, sessionID string) error {
	r.mu.RLock()
	e := r.entries[sessionID]
	r.mu.RUnlock()
	if e == nil {
		return nil
	}

	e.mu.Lock()
	r.remove(sessionID, e)
	e.mu.Unlock()
	return nil
}

// remove must be called with e.mu held
func (r *SessionRepository) remove(id string, e *entry) {
	e.removed = true
	e.history = nil
	e.appended = 0
	e.state = nil

	r.mu.Lock()
	if r.entries[id] == e {
		delete(r.entries, id)
	}
	r.mu.Unlock()
}

func (r *SessionRepository) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// Sweep applies the eviction policy to every session and returns how many
// were dropped. Without a policy it does nothing.
func (r *SessionRepository) Sweep() int {
	if r.policy == nil {
		return 0
	}

	r.mu.RLock()
	snapshot := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		snapshot[id] = e
	}
	r.mu.RUnlock()

	now := r.now()
	evicted := 0
	for id, e := range snapshot {
		e.mu.Lock()
		if !e.removed && r.policy(id, now.Sub(e.lastSeen)) {
			r.remove(id, e)
			evicted++
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		r.log.Infof("Evicted %d idle sessions", evicted)
	}
	return evicted
}
