package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-session/internal/common/errors"
	"amp-session/internal/crypto"
)

func newTestEncryptor(t *testing.T, key string) *crypto.SecretEncryptor {
	t.Helper()

	encryptor, err := crypto.NewSecretEncryptor(key)
	require.NoError(t, err)
	return encryptor
}

func TestFileStore_EncryptedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path, WithCipher(newTestEncryptor(t, "file-key")))
	ctx := context.Background()
	want := sampleToken()

	require.NoError(t, store.Save(ctx, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), want.Secret)
	assert.Contains(t, string(data), `"encrypted": true`)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Secret, got.Secret)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestFileStore_WrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	ctx := context.Background()
	require.NoError(t, NewFileStore(path, WithCipher(newTestEncryptor(t, "right"))).Save(ctx, sampleToken()))

	_, err := NewFileStore(path, WithCipher(newTestEncryptor(t, "wrong"))).Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}

func TestFileStore_EncryptedWithoutKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	ctx := context.Background()
	require.NoError(t, NewFileStore(path, WithCipher(newTestEncryptor(t, "key"))).Save(ctx, sampleToken()))

	_, err := NewFileStore(path).Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
	assert.Contains(t, err.Error(), "no encryption key")
}

func TestFileStore_PlaintextReadableAfterKeyIsAdded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	ctx := context.Background()
	tok := sampleToken()
	require.NoError(t, NewFileStore(path).Save(ctx, tok))

	store := NewFileStore(path, WithCipher(newTestEncryptor(t, "key")))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok.Secret, got.Secret)

	require.NoError(t, store.Save(ctx, *got))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), tok.Secret)
}
