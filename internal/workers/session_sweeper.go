package workers

import (
	"context"
	"time"
)

// Sweeper evicts idle sessions and reports how many were dropped
type Sweeper interface {
	Sweep() int
}

// SessionSweeper applies the session store's eviction policy periodically
type SessionSweeper struct {
	*BaseWorker
	store Sweeper
}

func NewSessionSweeper(store Sweeper, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		BaseWorker: NewBaseWorker("session_sweeper", interval, store != nil),
		store:      store,
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n := w.store.Sweep(); n > 0 {
		w.Log().Debugw("Swept idle sessions", "evicted", n)
	}
	w.Record(nil)
	return nil
}
