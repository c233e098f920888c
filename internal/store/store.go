// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/praxislabs/readiness/internal/domain"
)

// Repository defines the interface for persisting users and
// resumable assessment session state.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record. The entitled flag is
	// owned by the billing system and is deliberately not overwritten here.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetSession retrieves the persisted assessment session for a user
	// and assessment kind. Returns nil when none exists.
	GetSession(ctx context.Context, userID, kind string) (*domain.AssessmentSession, error)

	// SaveSession creates or replaces the persisted assessment session.
	SaveSession(ctx context.Context, session *domain.AssessmentSession) error

	// CleanupStaleSessions removes in-progress sessions untouched for
	// longer than ttl. Completed sessions are kept.
	CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
