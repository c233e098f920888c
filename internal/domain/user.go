package domain

import (
	"time"
)

// User is an identified visitor. The Entitled flag is written by the
// external billing system; this service only reads it.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Entitled   bool      `json:"entitled"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
