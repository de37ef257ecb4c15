package repo

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

// exerciseKV runs the shared KV contract against a backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "absent")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "u1:chat-threads", []byte(`[{"id":"a"}]`)))
	v, err := kv.Get(ctx, "u1:chat-threads")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(v))

	// Overwrite replaces the value.
	require.NoError(t, kv.Set(ctx, "u1:chat-threads", []byte(`[{"id":"b"}]`)))
	v, err = kv.Get(ctx, "u1:chat-threads")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(v))

	require.NoError(t, kv.Delete(ctx, "u1:chat-threads"))
	_, err = kv.Get(ctx, "u1:chat-threads")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	require.NoError(t, kv.Delete(ctx, "u1:chat-threads"))

	require.Error(t, kv.Set(ctx, "", []byte(`{}`)))
}

func TestMemoryKV_Contract(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	buf := []byte(`{"a":1}`)
	require.NoError(t, kv.Set(ctx, "k", buf))
	buf[2] = 'z'

	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(v))
	assert.Equal(t, 1, kv.Len())
}

func TestMemoryKV_CanceledContext(t *testing.T) {
	kv := NewMemoryKV()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, kv.Set(ctx, "k", []byte(`1`)), context.Canceled)
	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteKV_Contract(t *testing.T) {
	db := newMemDB(t, &domain.KVEntry{})
	exerciseKV(t, NewSQLiteKV(db))
}

func TestSQLiteKV_UpsertKeepsSingleRow(t *testing.T) {
	db := newMemDB(t, &domain.KVEntry{})
	kv := NewSQLiteKV(db)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, kv.Set(ctx, "same", []byte(`{}`)))
	}
	var n int64
	require.NoError(t, db.Model(&domain.KVEntry{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestNewRedisKV_DefaultNamespace(t *testing.T) {
	kv := NewRedisKV(nil, "")
	assert.Equal(t, "shopping-assistant:kv", kv.hashKey)
	assert.Equal(t, "custom", NewRedisKV(nil, "custom").hashKey)
}

func TestOpenRedis_BadURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), "not-a-redis-url")
	require.Error(t, err)
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisKV_Contract(t *testing.T) {
	_, client := newMiniRedis(t)
	exerciseKV(t, NewRedisKV(client, "test:kv"))
}

func TestRedisKV_StoresFieldsInNamespaceHash(t *testing.T) {
	mr, client := newMiniRedis(t)
	kv := NewRedisKV(client, "test:kv")
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "u1:chat-active-thread", []byte(`"t1"`)))
	assert.Equal(t, `"t1"`, mr.HGet("test:kv", "u1:chat-active-thread"))

	other := NewRedisKV(client, "other:kv")
	_, err := other.Get(ctx, "u1:chat-active-thread")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisKV_ServerErrorIsNotNotFound(t *testing.T) {
	mr, client := newMiniRedis(t)
	kv := NewRedisKV(client, "test:kv")
	mr.SetError("LOADING")

	_, err := kv.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpenRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
