package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultCredentialTTL is applied when the platform omits expires_in.
const DefaultCredentialTTL = 7200 * time.Second

// Document keys written next to the upstream fields of a persisted credential.
const (
	docExpiresAt   = "expires_at"
	docExpiresTime = "expires_time" // written by older SDK releases
	docObtainedAt  = "obtained_at"
	docExpiresIn   = "expires_in"
)

// Credential is a short-lived bearer credential owned by the credential cache.
// Fields holds the upstream response as returned by the platform so the
// persisted document keeps every field the platform sent.
type Credential struct {
	Key        BucketKey
	Value      string
	ObtainedAt time.Time
	TTL        time.Duration
	ExpiresAt  time.Time
	Fields     map[string]any
}

// NewCredential builds a Credential from a successful upstream fetch observed at now.
func NewCredential(key BucketKey, res FetchResult, now time.Time) Credential {
	ttl := time.Duration(res.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}

	fields := make(map[string]any, len(res.Fields)+1)
	for k, v := range res.Fields {
		fields[k] = v
	}
	fields[key.Kind.ValueField()] = res.Value

	return Credential{
		Key:        key,
		Value:      res.Value,
		ObtainedAt: now,
		TTL:        ttl,
		ExpiresAt:  now.Add(ttl),
		Fields:     fields,
	}
}

// ValidAt reports whether the credential may be handed out at t.
// The comparison is strict: a credential expiring exactly at t is stale.
func (c Credential) ValidAt(t time.Time) bool {
	return c.Value != "" && t.Before(c.ExpiresAt)
}

// Document returns the persisted form: upstream fields plus expires_at and
// obtained_at as epoch milliseconds.
func (c Credential) Document() map[string]any {
	doc := make(map[string]any, len(c.Fields)+3)
	for k, v := range c.Fields {
		doc[k] = v
	}
	doc[c.Key.Kind.ValueField()] = c.Value
	doc[docExpiresAt] = c.ExpiresAt.UnixMilli()
	doc[docObtainedAt] = c.ObtainedAt.UnixMilli()
	return doc
}

// CredentialFromDocument rebuilds a Credential from its persisted document.
// Documents written by older releases carry expires_time instead of expires_at.
func CredentialFromDocument(key BucketKey, doc map[string]any) (*Credential, error) {
	value, _ := doc[key.Kind.ValueField()].(string)
	if value == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrCacheCorrupt, key.Kind.ValueField())
	}

	expiresMs, ok := numberField(doc, docExpiresAt)
	if !ok {
		expiresMs, ok = numberField(doc, docExpiresTime)
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing expiry", ErrCacheCorrupt)
	}

	cred := &Credential{
		Key:       key,
		Value:     value,
		ExpiresAt: time.UnixMilli(expiresMs),
		Fields:    make(map[string]any, len(doc)),
	}
	for k, v := range doc {
		switch k {
		case docExpiresAt, docExpiresTime, docObtainedAt:
			continue
		}
		cred.Fields[k] = v
	}

	if secs, ok := numberField(doc, docExpiresIn); ok && secs > 0 {
		cred.TTL = time.Duration(secs) * time.Second
	}
	if obtainedMs, ok := numberField(doc, docObtainedAt); ok {
		cred.ObtainedAt = time.UnixMilli(obtainedMs)
	} else if cred.TTL > 0 {
		cred.ObtainedAt = cred.ExpiresAt.Add(-cred.TTL)
	}

	return cred, nil
}

func numberField(doc map[string]any, key string) (int64, bool) {
	switch v := doc[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// BucketKey identifies one credential bucket. SecretHash binds the bucket to
// the corp id and scope secret so rotating a secret or switching tenants never
// reads another tenant's credential.
type BucketKey struct {
	Scope      SecretScope
	Kind       CredentialKind
	SecretHash string
}

// NewBucketKey derives the bucket key for a scope secret.
func NewBucketKey(corpID string, scope SecretScope, secret string, kind CredentialKind) BucketKey {
	sum := sha256.Sum256([]byte(corpID + "|" + string(scope) + "|" + secret))
	return BucketKey{
		Scope:      scope,
		Kind:       kind,
		SecretHash: hex.EncodeToString(sum[:16]),
	}
}

// Name is the storage name of the bucket, e.g. "3f2a…_access_token".
func (k BucketKey) Name() string {
	return k.SecretHash + "_" + string(k.Kind)
}

// FetchResult is what an upstream fetch returns on success.
type FetchResult struct {
	Value     string
	ExpiresIn int
	Fields    map[string]any
}
