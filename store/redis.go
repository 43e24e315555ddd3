package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mwanga/logger"
	"mwanga/types"
)

const sessionKeyPrefix = "mwanga:session:"

// RedisStore keeps sessions as JSON values that expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig, l *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(client, cfg.TTL, l), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, l *zap.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: logger.OrNop(l)}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func (r *RedisStore) CreateSession(ctx context.Context, s *types.Session) error {
	return r.put(ctx, s)
}

func (r *RedisStore) GetSession(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(data)
}

func (r *RedisStore) UpdateDocument(ctx context.Context, id uuid.UUID, name, path string) (*types.Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.DocumentName = name
	s.DocumentPath = path
	s.UpdatedAt = time.Now().UTC()
	if err := r.put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	n, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) Close() error {
	err := r.client.Close()
	r.logger.Info("redis client is closed")
	return err
}

func (r *RedisStore) put(ctx context.Context, s *types.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func decodeSession(data []byte) (*types.Session, error) {
	s := &types.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}
