// Package filecache persists credential buckets as one JSON file per bucket.
package filecache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

// Store is a file-backed CredentialStore. Bucket files live directly under
// dir and are named <secret-hash>_<kind>.json. Writes replace the file
// atomically so readers never see a partial document.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads the bucket file for key. A missing file is a miss.
func (s *Store) Load(_ context.Context, key model.BucketKey) (*model.Credential, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrCacheIO, key.Name(), err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", model.ErrCacheCorrupt, key.Name(), err)
	}

	cred, err := model.CredentialFromDocument(key, doc)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", key.Name(), err)
	}
	return cred, nil
}

// Save writes cred to its bucket file with mode 0600.
func (s *Store) Save(_ context.Context, cred model.Credential) error {
	data, err := json.Marshal(cred.Document())
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", model.ErrCacheIO, cred.Key.Name(), err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create cache dir: %w", model.ErrCacheIO, err)
	}

	path := s.path(cred.Key)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrCacheIO, cred.Key.Name(), err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", model.ErrCacheIO, cred.Key.Name(), err)
	}
	return nil
}

// Delete removes the bucket file. A missing file is not an error.
func (s *Store) Delete(_ context.Context, key model.BucketKey) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", model.ErrCacheIO, key.Name(), err)
	}
	return nil
}

func (s *Store) path(key model.BucketKey) string {
	return filepath.Join(s.dir, key.Name()+".json")
}
