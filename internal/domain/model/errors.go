package model

import (
	"errors"
	"fmt"
)

// Failure classes surfaced by the callback channel and the credential cache.
var (
	// ErrSignatureMismatch means the request did not come from the platform.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrDecryption means the payload was authenticated but could not be decoded.
	ErrDecryption = errors.New("decryption failure")

	// ErrCredentialFetch means the upstream token or ticket fetch failed.
	ErrCredentialFetch = errors.New("credential fetch failure")

	// ErrCacheIO is a local cache read or write failure other than "not found".
	ErrCacheIO = errors.New("credential cache i/o failure")

	// ErrCacheCorrupt marks a persisted credential that cannot be decoded.
	// The credential service treats it as a cache miss.
	ErrCacheCorrupt = errors.New("credential cache entry corrupt")

	// ErrMalformedInput means an XML payload lacks a required structure.
	ErrMalformedInput = errors.New("malformed input")

	// ErrScopeNotConfigured means no secret is configured for a secret scope.
	ErrScopeNotConfigured = errors.New("secret scope not configured")
)

// CredentialFetchError describes a failed upstream credential fetch. Code and
// Message are set when the platform answered with a non-zero errcode; Err is
// set when the transport failed.
type CredentialFetchError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *CredentialFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCredentialFetch, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: errcode=%d errmsg=%s", ErrCredentialFetch, e.Op, e.Code, e.Message)
}

// Unwrap exposes both the sentinel and the transport cause, so a canceled
// fetch matches ErrCredentialFetch and context.Canceled.
func (e *CredentialFetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCredentialFetch, e.Err}
	}
	return []error{ErrCredentialFetch}
}

// APIError is a non-zero errcode returned by a platform API call.
type APIError struct {
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wecom api %s: errcode=%d errmsg=%s", e.Path, e.Code, e.Message)
}

// InvalidatesToken reports whether the platform rejected the access token
// itself (invalid, expired, or not the latest).
func (e *APIError) InvalidatesToken() bool {
	switch e.Code {
	case 40001, 40014, 42001:
		return true
	}
	return false
}
