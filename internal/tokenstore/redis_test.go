package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-session/internal/common/errors"
	redisclient "amp-session/internal/redis"
	"amp-session/internal/token"
)

func setupRedisStore(t *testing.T, now time.Time, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redisclient.NewClient(&redisclient.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "", opts...)
	store.now = func() time.Time { return now }
	return store, mr
}

func TestRedisStore_RoundTripWithTTL(t *testing.T) {
	tok := sampleToken()
	store, mr := setupRedisStore(t, tok.ObtainedAt.Add(time.Hour))
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, tok))
	assert.True(t, mr.Exists(DefaultRedisKey))
	assert.Equal(t, 23*time.Hour, mr.TTL(DefaultRedisKey))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tok.Secret, got.Secret)
	assert.True(t, tok.ExpiresAt.Equal(got.ExpiresAt))

	mr.FastForward(24 * time.Hour)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_ExpiredTokenIsDeleted(t *testing.T) {
	tok := sampleToken()
	store, mr := setupRedisStore(t, tok.ExpiresAt.Add(time.Minute))
	ctx := context.Background()

	require.NoError(t, mr.Set(DefaultRedisKey, `{"token":"old"}`))
	require.NoError(t, store.Save(ctx, tok))
	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestRedisStore_Delete(t *testing.T) {
	tok := sampleToken()
	store, mr := setupRedisStore(t, tok.ObtainedAt)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, tok))
	require.NoError(t, store.Delete(ctx))
	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := setupRedisStore(t, time.Now())
	require.NoError(t, mr.Set(DefaultRedisKey, "garbage"))

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupRedisStore(t, time.Now())
	mr.Close()

	_, err := store.Load(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
	assert.True(t, errors.IsType(store.Save(context.Background(), token.Token{ExpiresAt: time.Now().Add(time.Hour)}), errors.ErrTypeStorage))
}

func TestRedisStore_EncryptedSecret(t *testing.T) {
	tok := sampleToken()
	store, mr := setupRedisStore(t, tok.ObtainedAt, WithCipher(newTestEncryptor(t, "redis-key")))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, tok))
	raw, err := mr.Get(DefaultRedisKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, tok.Secret)
	assert.Contains(t, raw, `"encrypted":true`)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tok.Secret, got.Secret)

	other := NewRedisStore(store.client, "", WithCipher(newTestEncryptor(t, "other-key")))
	_, err = other.Load(ctx)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}
