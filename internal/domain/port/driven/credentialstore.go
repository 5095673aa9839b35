package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by encrypted CredentialStore adapters when
// WECOMKIT_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set WECOMKIT_SECRET_KEY")

// CredentialStore defines the driven port for credential bucket persistence.
// Each bucket holds at most one credential; Save replaces it.
type CredentialStore interface {
	// Load returns the credential persisted for key.
	// Returns (nil, nil) when the bucket is empty.
	// Returns an error wrapping model.ErrCacheCorrupt when the bucket exists but
	// cannot be decoded, and model.ErrCacheIO for any other read failure.
	Load(ctx context.Context, key model.BucketKey) (*model.Credential, error)

	// Save persists cred in its bucket, replacing any previous credential.
	// A reader never observes a partially written bucket.
	Save(ctx context.Context, cred model.Credential) error

	// Delete empties the bucket. Deleting an empty bucket is not an error.
	Delete(ctx context.Context, key model.BucketKey) error
}
