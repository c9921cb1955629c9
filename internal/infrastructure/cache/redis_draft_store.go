package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/redis/go-redis/v9"
)

const defaultDraftKeyPrefix = "draft:"

// RedisDraftStore implements draft.Persistence using Redis.
// Every write refreshes the TTL, so an abandoned draft expires on its own.
type RedisDraftStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisDraftStore connects to Redis and creates a draft store
func NewRedisDraftStore(cfg RedisConfig, keyPrefix string, ttl time.Duration) (*RedisDraftStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDraftStoreWithClient(client, keyPrefix, ttl), nil
}

// NewRedisDraftStoreWithClient creates a store with an existing Redis client
func NewRedisDraftStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisDraftStore {
	if keyPrefix == "" {
		keyPrefix = defaultDraftKeyPrefix
	}
	return &RedisDraftStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisDraftStore) redisKey(key draft.Key) string {
	return s.keyPrefix + key.String()
}

// Save writes the snapshot, replacing any previous draft under key
func (s *RedisDraftStore) Save(ctx context.Context, key draft.Key, snapshot *draft.Snapshot) error {
	if err := key.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Load reads the draft under key
func (s *RedisDraftStore) Load(ctx context.Context, key draft.Key) (*draft.Snapshot, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	payload, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load draft: %w", err)
	}

	var snapshot draft.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &snapshot, true, nil
}

// Delete removes the draft under key; deleting a missing draft is not an error
func (s *RedisDraftStore) Delete(ctx context.Context, key draft.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisDraftStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisDraftStore) Close() error {
	return s.client.Close()
}

// Ensure RedisDraftStore implements draft.Persistence
var _ draft.Persistence = (*RedisDraftStore)(nil)
