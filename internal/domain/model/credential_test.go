package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_ValidAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "expires exactly now is stale", expiresAt: now, want: false},
		{name: "expired in the past", expiresAt: now.Add(-time.Minute), want: false},
		{name: "one second left is valid", expiresAt: now.Add(time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Credential{Value: "tok", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, c.ValidAt(now))
		})
	}
}

func TestNewCredential_DefaultTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	key := NewBucketKey("corp", ScopeAgent, "secret", KindAccessToken)

	cred := NewCredential(key, FetchResult{Value: "tok"}, now)

	assert.Equal(t, DefaultCredentialTTL, cred.TTL)
	assert.Equal(t, now.Add(7200*time.Second), cred.ExpiresAt)
	assert.Equal(t, "tok", cred.Fields["access_token"])
}

func TestCredential_DocumentRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	key := NewBucketKey("corp", ScopeCorp, "secret", KindCorpTicket)
	cred := NewCredential(key, FetchResult{
		Value:     "ticket-1",
		ExpiresIn: 7000,
		Fields:    map[string]any{"errcode": float64(0), "expires_in": float64(7000)},
	}, now)

	doc := cred.Document()
	assert.Equal(t, "ticket-1", doc["ticket"])
	assert.Equal(t, now.Add(7000*time.Second).UnixMilli(), doc["expires_at"])

	got, err := CredentialFromDocument(key, doc)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", got.Value)
	assert.True(t, got.ExpiresAt.Equal(cred.ExpiresAt))
	assert.True(t, got.ObtainedAt.Equal(now))
	assert.Equal(t, 7000*time.Second, got.TTL)
}

func TestCredentialFromDocument_AcceptsExpiresTime(t *testing.T) {
	key := NewBucketKey("corp", ScopeAgent, "secret", KindAgentTicket)
	doc := map[string]any{
		"ticket":       "legacy",
		"expires_in":   float64(7200),
		"expires_time": float64(1_700_007_200_000),
	}

	got, err := CredentialFromDocument(key, doc)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.Value)
	assert.Equal(t, int64(1_700_007_200_000), got.ExpiresAt.UnixMilli())
	assert.Equal(t, int64(1_700_000_000_000), got.ObtainedAt.UnixMilli())
}

func TestCredentialFromDocument_Corrupt(t *testing.T) {
	key := NewBucketKey("corp", ScopeAgent, "secret", KindAccessToken)

	_, err := CredentialFromDocument(key, map[string]any{"expires_at": float64(1)})
	assert.True(t, errors.Is(err, ErrCacheCorrupt))

	_, err = CredentialFromDocument(key, map[string]any{"access_token": "tok"})
	assert.True(t, errors.Is(err, ErrCacheCorrupt))
}

func TestNewBucketKey(t *testing.T) {
	a := NewBucketKey("corp", ScopeAgent, "s1", KindAccessToken)
	b := NewBucketKey("corp", ScopeContacts, "s1", KindAccessToken)
	c := NewBucketKey("other", ScopeAgent, "s1", KindAccessToken)

	assert.Len(t, a.SecretHash, 32)
	assert.NotEqual(t, a.SecretHash, b.SecretHash, "scopes must not share a bucket")
	assert.NotEqual(t, a.SecretHash, c.SecretHash, "tenants must not share a bucket")
	assert.Equal(t, a.SecretHash+"_access_token", a.Name())
	assert.NotContains(t, a.Name(), "s1")
}

func TestParseSecretScope(t *testing.T) {
	got, err := ParseSecretScope("concat")
	require.NoError(t, err)
	assert.Equal(t, ScopeContacts, got)

	got, err = ParseSecretScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeAgent, got)

	_, err = ParseSecretScope("bogus")
	assert.Error(t, err)
}

func TestCredentialFetchError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := error(&CredentialFetchError{Op: "gettoken", Err: cause})

	assert.True(t, errors.Is(err, ErrCredentialFetch))
	assert.True(t, errors.Is(err, cause))

	coded := error(&CredentialFetchError{Op: "gettoken", Code: 40013, Message: "invalid corpid"})
	assert.True(t, errors.Is(coded, ErrCredentialFetch))
	assert.Contains(t, coded.Error(), "errcode=40013")
}
