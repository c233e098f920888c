package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/praxislabs/readiness/internal/domain"
)

// Manager hands out the per-user session controller, loading persisted
// state on first access so reloads resume where the user left off.
type Manager struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	kind        string
	deps        Deps
}

// NewManager creates a manager for one assessment kind.
func NewManager(kind string, deps Deps) *Manager {
	if deps.Events == nil {
		deps.Events = NewBroadcaster()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		controllers: make(map[string]*Controller),
		kind:        kind,
		deps:        deps,
	}
}

// Events exposes the broadcaster shared by all controllers.
func (m *Manager) Events() *Broadcaster {
	return m.deps.Events
}

// Get returns the controller for a user, resuming from the store when
// no live controller exists yet.
func (m *Manager) Get(ctx context.Context, userID string, entitled bool) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.controllers[userID]; ok {
		m.mu.Unlock()
		c.setEntitled(entitled)
		return c, nil
	}
	m.mu.Unlock()

	sess, err := m.deps.Repo.GetSession(ctx, userID, m.kind)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = domain.NewSession(userID, m.kind)
	}

	// The project reference defaults to the user's personal project;
	// the project service resolves it on its side.
	c := NewController(sess, entitled, userID, m.deps)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.controllers[userID]; ok {
		// Another request resumed the same user concurrently. The
		// losing controller may have scheduled a write in normalize;
		// stop it so it cannot overwrite the winner's state later.
		c.saver.Stop()
		existing.setEntitled(entitled)
		return existing, nil
	}
	m.controllers[userID] = c
	return c, nil
}

// Evict flushes and drops a user's controller, used when a session has
// been idle past its TTL.
func (m *Manager) Evict(ctx context.Context, userID string) {
	m.mu.Lock()
	c, ok := m.controllers[userID]
	if ok {
		delete(m.controllers, userID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := c.Flush(ctx); err != nil {
		m.deps.Logger.Warn("failed to flush evicted session", "user_id", userID, "error", err)
	}
}

// FlushAll synchronously persists every live controller, used on
// shutdown.
func (m *Manager) FlushAll(ctx context.Context) {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	users := make([]string, 0, len(m.controllers))
	for id, c := range m.controllers {
		controllers = append(controllers, c)
		users = append(users, id)
	}
	m.mu.Unlock()

	for i, c := range controllers {
		if err := c.Flush(ctx); err != nil {
			m.deps.Logger.Warn("failed to flush session on shutdown", "user_id", users[i], "error", err)
		}
	}
}

// setEntitled refreshes the entitlement tier on an existing controller.
// On a completed session a tier change re-derives the learning plan,
// so an upgrade shows the detailed tier without requiring a retake.
// The plan is derived, never authoritative, so this is always safe.
func (c *Controller) setEntitled(entitled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entitled == entitled {
		return
	}
	c.entitled = entitled
	if c.sess.Status == domain.StatusCompleted && c.sess.Results != nil {
		c.sess.LearningPlan = BuildLearningPlan(c.sess.Results, entitled)
		c.saver.Schedule()
	}
}
