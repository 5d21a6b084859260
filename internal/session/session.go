package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Operator is the logged-in user as seen by the rest of the app.
type Operator struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Branch   string `json:"branch"`
	Role     string `json:"role"`
}

// Session is the explicit per-operator context every request carries.
// DraftResi points at the draft currently being registered, if any.
type Session struct {
	ID        string    `json:"id"`
	Operator  Operator  `json:"operator"`
	DraftResi string    `json:"draft_resi,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// New builds a session for op with a fresh UUIDv7 id.
func New(op Operator, now time.Time, ttl time.Duration) Session {
	return Session{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Operator:  op,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(ttl),
	}
}

// Store keeps sessions until they expire.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}
