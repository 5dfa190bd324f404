// Package sessionstore keeps working sessions in Redis so they survive
// restarts and are shared by several front-desk instances.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/hotel-frontdesk/internal/application"
)

const keyPrefix = "frontdesk:session:"

// RedisStore implements application.SessionStore. Entries expire natively
// at the session's ExpiresAt.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a client and pings the server.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func (s *RedisStore) Create(ctx context.Context, session application.WorkingSession) error {
	payload, ttl, err := s.encode(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+session.ID, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session %s: %w", session.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: session %s", application.ErrAlreadyExists, session.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (application.WorkingSession, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return application.WorkingSession{}, application.ErrSessionNotFound
	}
	if err != nil {
		return application.WorkingSession{}, fmt.Errorf("get session %s: %w", id, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return application.WorkingSession{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec.toSession(), nil
}

func (s *RedisStore) Save(ctx context.Context, session application.WorkingSession) error {
	payload, ttl, err := s.encode(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, keyPrefix+session.ID, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	if !ok {
		return application.ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n == 0 {
		return application.ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) encode(session application.WorkingSession) ([]byte, time.Duration, error) {
	ttl := session.ExpiresAt.Sub(s.now())
	if session.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return nil, 0, application.ErrSessionNotFound
	}
	payload, err := json.Marshal(fromSession(session))
	if err != nil {
		return nil, 0, fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	return payload, ttl, nil
}
