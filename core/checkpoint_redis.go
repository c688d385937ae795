package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCheckpointStore persists checkpoint records in Redis with the
// TTL enforced by key expiry. Expired records disappear on the server
// side, so Load reports them as not found. Keys are namespaced to
// avoid collisions with other users of the instance.
type RedisCheckpointStore struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
	logger    Logger
}

// RedisCheckpointStoreOptions configures the Redis store
type RedisCheckpointStoreOptions struct {
	RedisURL  string        // e.g. "redis://localhost:6379"
	Namespace string        // Key prefix; defaults to "bojstat:checkpoint"
	TTL       time.Duration // Record lifetime; <= 0 selects DefaultCheckpointTTL
	Logger    Logger        // Optional logger
}

// NewRedisCheckpointStore connects to Redis and verifies the
// connection with a ping.
func NewRedisCheckpointStore(opts RedisCheckpointStoreOptions) (*RedisCheckpointStore, error) {
	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "bojstat:checkpoint"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCheckpointTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	client := redis.NewClient(redisOpt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Debug("Redis checkpoint store connected", map[string]interface{}{
		"namespace": namespace,
		"ttl":       ttl.String(),
	})

	return &RedisCheckpointStore{
		client:    client,
		ttl:       ttl,
		namespace: namespace,
		logger:    logger,
	}, nil
}

func (s *RedisCheckpointStore) key(checkpointID string) string {
	return s.namespace + ":" + checkpointID
}

// Save stores the record under a fresh id with the configured TTL.
func (s *RedisCheckpointStore) Save(ctx context.Context, record []byte) (string, error) {
	checkpointID := NewCheckpointID()
	if err := s.client.Set(ctx, s.key(checkpointID), record, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("saving checkpoint: %w", err)
	}
	return checkpointID, nil
}

// Load returns the stored record. Missing and expired records are both
// reported as not found; Redis reclaims expired keys itself.
func (s *RedisCheckpointStore) Load(ctx context.Context, checkpointID string) ([]byte, error) {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return nil, err
	}
	record, err := s.client.Get(ctx, s.key(checkpointID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, NewValidationError("checkpoint_id not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	return record, nil
}

// Delete removes the record. Deleting a missing id is a validation
// error.
func (s *RedisCheckpointStore) Delete(ctx context.Context, checkpointID string) error {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return err
	}
	removed, err := s.client.Del(ctx, s.key(checkpointID)).Result()
	if err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	if removed == 0 {
		return NewValidationError("checkpoint_id not found")
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisCheckpointStore) Close() error {
	return s.client.Close()
}
