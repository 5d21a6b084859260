package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"laju/internal/apperr"
)

// ErrNotFound covers both an unknown username and a wrong password.
var ErrNotFound = errors.New("user not found")

// UserRecord is one row of the User table.
type UserRecord struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Branch       string `json:"branch"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}

// UserStore looks users up by username. It returns ErrNotFound for unknown
// users and wraps its own failures with apperr.Unavailable.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
}

// Provider verifies operator credentials against a UserStore.
type Provider struct {
	users  UserStore
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewProvider(users UserStore, hasher PasswordHasher) *Provider {
	return &Provider{users: users, hasher: hasher}
}

// FindUser returns the user when the password matches its stored hash.
func (p *Provider) FindUser(ctx context.Context, username, password string) (UserRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return UserRecord{}, ErrNotFound
	}
	u, err := p.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// burn the same verify cost as a real user
			_, _ = p.hasher.VerifyPassword(ctx, password, p.dummy(ctx))
			return UserRecord{}, ErrNotFound
		}
		return UserRecord{}, apperr.Unavailable("find user", err)
	}
	ok, err := p.hasher.VerifyPassword(ctx, password, u.PasswordHash)
	if err != nil || !ok {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (p *Provider) dummy(ctx context.Context) string {
	p.dummyOnce.Do(func() {
		p.dummyHash, _ = p.hasher.HashPassword(ctx, "laju-dummy-password")
	})
	return p.dummyHash
}
