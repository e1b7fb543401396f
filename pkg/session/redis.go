package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/certificate-processor/internal/models"
)

const (
	keyPrefix         = "certificate:session:"
	maxUpdateAttempts = 5
)

// RedisStore keeps sessions in Redis so that the API server and the worker
// see the same state. Update uses WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.WorkingUpload, error) {
	return s.read(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, c getter, id string) (models.WorkingUpload, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.WorkingUpload{}, ErrNotFound
	}
	if err != nil {
		return models.WorkingUpload{}, fmt.Errorf("failed to get session from redis: %w", err)
	}
	var state models.WorkingUpload
	if err := json.Unmarshal(data, &state); err != nil {
		return models.WorkingUpload{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, state models.WorkingUpload) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(state.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Update retries when another writer touched the key between read and write.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (models.WorkingUpload, bool, error) {
	var (
		result  models.WorkingUpload
		written bool
	)

	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if errors.Is(err, ErrSkip) {
			result, written = current, false
			return nil
		}
		if err != nil {
			result = current
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), data, s.ttl)
			return nil
		})
		if err == nil {
			result, written = next, true
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return result, written, err
	}
	return models.WorkingUpload{}, false, fmt.Errorf("session %s: too many concurrent updates", id)
}
