package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/praxislabs/readiness/internal/shared"
)

// DefaultAutosaveDelay is how long a scheduled write waits for further
// mutations before it fires.
const DefaultAutosaveDelay = 2 * time.Second

const persistTimeout = 10 * time.Second

// autosaver coalesces persistence writes. Each mutation schedules a
// delayed write; a later mutation supersedes the earlier schedule, and
// completion forces an immediate flush. Writes never block the state
// machine and failures are logged, not surfaced.
type autosaver struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	save  func(ctx context.Context) error
}

func newAutosaver(delay time.Duration, save func(ctx context.Context) error) *autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &autosaver{delay: delay, save: save}
}

// Schedule arms (or re-arms) the coalesced write.
func (a *autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.flush)
}

// FlushAsync writes immediately in the background, superseding any
// pending schedule. Safe to call while holding controller locks.
func (a *autosaver) FlushAsync() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	go a.flush()
}

// Stop cancels any pending write without flushing.
func (a *autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *autosaver) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := a.save(ctx)
	if err != nil && shared.IsSQLiteConflictError(err) {
		// One retry on a lock conflict; beyond that the next schedule
		// will carry the state anyway.
		time.Sleep(100 * time.Millisecond)
		err = a.save(ctx)
	}
	if err != nil {
		slog.Warn("session autosave failed", "error", err)
	}
}
