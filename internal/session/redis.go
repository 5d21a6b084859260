package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"laju/internal/apperr"
)

const keyPrefix = "laju:session:"

type redisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore keeps sessions in Redis with the session expiry as key TTL.
func NewRedisStore(client *redis.Client, now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &redisStore{client: client, now: now}
}

func (r *redisStore) Create(ctx context.Context, s Session) error {
	return r.put(ctx, s, false)
}

func (r *redisStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, apperr.Unavailable("redis get session", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, apperr.Unavailable("decode session", err)
	}
	if s.Expired(r.now()) {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *redisStore) Update(ctx context.Context, s Session) error {
	return r.put(ctx, s, true)
}

func (r *redisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return apperr.Unavailable("redis delete session", err)
	}
	return nil
}

func (r *redisStore) put(ctx context.Context, s Session, mustExist bool) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return ErrNotFound
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	key := keyPrefix + s.ID
	if mustExist {
		ok, err := r.client.SetXX(ctx, key, raw, ttl).Result()
		if err != nil {
			return apperr.Unavailable("redis update session", err)
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return apperr.Unavailable("redis set session", err)
	}
	return nil
}
