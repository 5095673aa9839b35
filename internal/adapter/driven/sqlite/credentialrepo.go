package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Each bucket is one row; the credential document is encrypted with
// AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables the store.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil, in which case Load and Save return
// driven.ErrEncryptionKeyNotSet.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Load returns the credential in the bucket, or (nil, nil) when the bucket
// is empty. A row that cannot be decrypted or decoded is reported as
// model.ErrCacheCorrupt.
func (r *CredentialRepo) Load(ctx context.Context, key model.BucketKey) (*model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT payload FROM credential_cache WHERE bucket = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, key.Name()).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load bucket %s: %w", model.ErrCacheIO, key.Name(), err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt bucket %s: %w", model.ErrCacheCorrupt, key.Name(), err)
	}

	var doc map[string]any
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode bucket %s: %w", model.ErrCacheCorrupt, key.Name(), err)
	}

	cred, err := model.CredentialFromDocument(key, doc)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", key.Name(), err)
	}
	return cred, nil
}

// Save stores or replaces the credential in its bucket.
func (r *CredentialRepo) Save(ctx context.Context, cred model.Credential) error {
	doc, err := json.Marshal(cred.Document())
	if err != nil {
		return fmt.Errorf("%w: encode bucket %s: %w", model.ErrCacheIO, cred.Key.Name(), err)
	}

	encrypted, err := r.encrypt(doc)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO credential_cache (bucket, scope, kind, payload, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		cred.Key.Name(),
		string(cred.Key.Scope),
		string(cred.Key.Kind),
		encrypted,
		cred.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: save bucket %s: %w", model.ErrCacheIO, cred.Key.Name(), err)
	}
	return nil
}

// Delete empties the bucket.
func (r *CredentialRepo) Delete(ctx context.Context, key model.BucketKey) error {
	const query = `DELETE FROM credential_cache WHERE bucket = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, key.Name())
	if err != nil {
		return fmt.Errorf("%w: delete bucket %s: %w", model.ErrCacheIO, key.Name(), err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext []byte) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}

func (r *CredentialRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
