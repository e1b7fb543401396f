package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr, client
}

func TestRedisStorePutGetDelete(t *testing.T) {
	s, mr, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.WorkingUpload{SessionID: "a", UserID: 7, Fingerprint: "one"}))
	assert.Equal(t, time.Hour, mr.TTL(key("a")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "one", got.Fingerprint)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpires(t *testing.T) {
	s, mr, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, models.WorkingUpload{SessionID: "a"}))

	mr.FastForward(2 * time.Hour)

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreUpdateWrites(t *testing.T) {
	s, mr, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, models.WorkingUpload{SessionID: "a", Fingerprint: "one"}))

	got, written, err := s.Update(ctx, "a", func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		cur.RecordID = 42
		return cur, nil
	})
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, int64(42), got.RecordID)
	assert.Equal(t, time.Hour, mr.TTL(key("a")))

	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.RecordID)
}

func TestRedisStoreUpdateSkipAndError(t *testing.T) {
	s, _, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, models.WorkingUpload{SessionID: "a", Fingerprint: "one"}))

	got, written, err := s.Update(ctx, "a", func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		cur.Fingerprint = "two"
		return cur, ErrSkip
	})
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, "one", got.Fingerprint)

	boom := errors.New("boom")
	_, written, err = s.Update(ctx, "a", func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		cur.Fingerprint = "two"
		return cur, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, written)

	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", stored.Fingerprint)

	_, _, err = s.Update(ctx, "missing", func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		return cur, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreUpdateRetriesAfterConcurrentWrite(t *testing.T) {
	s, _, client := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, models.WorkingUpload{SessionID: "a", Fingerprint: "one"}))

	interfering, err := json.Marshal(models.WorkingUpload{SessionID: "a", Fingerprint: "two"})
	require.NoError(t, err)

	var seen []string
	got, written, err := s.Update(ctx, "a", func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		seen = append(seen, cur.Fingerprint)
		if len(seen) == 1 {
			// 另一个连接在 WATCH 之后改写了 key
			require.NoError(t, client.Set(ctx, key("a"), interfering, time.Hour).Err())
		}
		if cur.Fingerprint != "one" {
			return cur, ErrSkip
		}
		cur.RecordID = 9
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, seen)
	assert.False(t, written, "the result computed for the old image is dropped")
	assert.Equal(t, "two", got.Fingerprint)

	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", stored.Fingerprint)
	assert.Zero(t, stored.RecordID)
}

func TestRedisStoreUpdateGivesUpUnderContention(t *testing.T) {
	s, _, client := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, models.WorkingUpload{SessionID: "a"}))

	calls := 0
	_, written, err := s.Update(ctx, "a", func(cur models.WorkingUpload) (models.WorkingUpload, error) {
		calls++
		data, _ := json.Marshal(models.WorkingUpload{SessionID: "a", RecordID: int64(calls)})
		require.NoError(t, client.Set(ctx, key("a"), data, time.Hour).Err())
		return cur, nil
	})
	assert.ErrorContains(t, err, "too many concurrent updates")
	assert.False(t, written)
	assert.Equal(t, maxUpdateAttempts, calls)
}
