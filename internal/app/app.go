// Package app wires configured backends for the laju binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"laju/internal/apperr"
	"laju/internal/config"
	"laju/internal/db"
	"laju/internal/events"
	"laju/internal/identity"
	"laju/internal/session"
	"laju/internal/shipment"
	"laju/internal/store"
)

// Store is what both store backends provide.
type Store interface {
	identity.UserStore
	shipment.Store
	PutUser(ctx context.Context, u identity.UserRecord) error
}

// OpenStore opens the configured shipment and user store. The returned
// closer must be called on shutdown.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendWorkbook:
		w, err := store.OpenWorkbook(cfg.WorkbookPath)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, apperr.Unavailable("connect postgres", err)
		}
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, func() error { pool.Close(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// OpenSessions returns the configured session store.
func OpenSessions(ctx context.Context, cfg config.Config, now func() time.Time) (session.Store, func() error, error) {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return session.NewMemoryStore(now), func() error { return nil }, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, apperr.Unavailable("connect redis", err)
		}
		return session.NewRedisStore(client, now), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}

// OpenPublisher returns a Kafka producer when brokers are configured and a
// logging publisher otherwise.
func OpenPublisher(cfg config.Config, log *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(log)
	}
	return events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// ImportReport summarises a legacy user import.
type ImportReport struct {
	Imported int
	Skipped  []string
}

// ImportUsers hashes the plain-text passwords of a legacy User sheet and
// stores the users. Rows with passwords too weak to hash are skipped and
// reported so the operator can reset them.
func ImportUsers(ctx context.Context, users Store, hasher identity.PasswordHasher, legacy []store.LegacyUser) (ImportReport, error) {
	var rep ImportReport
	for _, u := range legacy {
		hash, err := hasher.HashPassword(ctx, u.Password)
		if errors.Is(err, identity.ErrWeakPassword) {
			rep.Skipped = append(rep.Skipped, u.Username)
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("hash %s: %w", u.Username, err)
		}
		rec := identity.UserRecord{Username: u.Username, Name: u.Name, Branch: u.Branch, Role: u.Role, PasswordHash: hash}
		if err := users.PutUser(ctx, rec); err != nil {
			return rep, err
		}
		rep.Imported++
	}
	return rep, nil
}
