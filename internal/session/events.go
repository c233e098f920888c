package session

import (
	"log/slog"
	"sync"

	"github.com/praxislabs/readiness/internal/domain"
)

// Event is a session state change pushed to websocket subscribers so
// the page can re-render without polling.
type Event struct {
	UserID        string               `json:"user_id"`
	Kind          string               `json:"kind"`
	Status        domain.SessionStatus `json:"status"`
	QuestionIndex int                  `json:"question_index"`
	TotalSections int                  `json:"total_sections,omitempty"`
	Loading       bool                 `json:"loading"`
	Completed     bool                 `json:"completed"`
}

// Broadcaster fans session events out to per-user subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a subscriber for a user's events. The returned
// cancel function must be called when the subscriber goes away.
func (b *Broadcaster) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if _, ok := b.subs[userID]; !ok {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, userID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the user. Slow
// subscribers are skipped rather than blocking the state machine.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping session event for slow subscriber", "user_id", ev.UserID)
		}
	}
}
