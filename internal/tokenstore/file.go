package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"amp-session/internal/common/errors"
	"amp-session/internal/token"
)

// FileStore keeps the token as JSON in a single file readable only by its owner
type FileStore struct {
	path  string
	codec codec
	mu    sync.Mutex
}

// NewFileStore stores the token at path
func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{path: path, codec: newCodec(opts)}
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Persister
func (s *FileStore) Load(ctx context.Context) (*token.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to read token file %s", s.path), err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to decode token file %s", s.path), err)
	}
	return s.codec.decode(rec)
}

// Save implements Persister. The file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, tok token.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.codec.encode(tok)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.StorageError("failed to encode token", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.StorageError(fmt.Sprintf("failed to create token directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return errors.StorageError("failed to create temporary token file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.StorageError("failed to write token file", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.StorageError("failed to restrict token file permissions", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.StorageError("failed to write token file", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.StorageError(fmt.Sprintf("failed to replace token file %s", s.path), err)
	}
	return nil
}

// Delete implements Persister. A missing file is not an error.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.StorageError(fmt.Sprintf("failed to delete token file %s", s.path), err)
	}
	return nil
}
