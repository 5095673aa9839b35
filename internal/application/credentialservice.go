// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
	"github.com/ericfisherdev/wecomkit/internal/metrics"
)

// CredentialProvider hands out valid credentials and drops rejected ones.
// CredentialService is the production implementation.
type CredentialProvider interface {
	Get(ctx context.Context, scope model.SecretScope, kind model.CredentialKind) (string, error)
	Invalidate(ctx context.Context, scope model.SecretScope, kind model.CredentialKind) error
}

// Compile-time interface satisfaction check.
var _ CredentialProvider = (*CredentialService)(nil)

// CredentialService is the credential cache. It serves access tokens and
// JS-SDK tickets from a CredentialStore and refetches them from the platform
// once they expire.
//
// Without WithRefreshDedup, concurrent callers that observe the same expired
// bucket each fetch and persist independently and the last write wins.
type CredentialService struct {
	corpID  string
	secrets map[model.SecretScope]string
	store   driven.CredentialStore
	fetcher driven.TokenFetcher
	logger  *slog.Logger
	metrics *metrics.Metrics

	now    func() time.Time
	dedupe bool
	flight singleflight.Group
}

// flightTimeout bounds a deduplicated refresh.
const flightTimeout = 30 * time.Second

// CredentialOption configures a CredentialService.
type CredentialOption func(*CredentialService)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) CredentialOption {
	return func(s *CredentialService) { s.now = now }
}

// WithRefreshDedup collapses concurrent refreshes of the same bucket into a
// single upstream fetch per process. The shared fetch is detached from the
// cancellation of the caller that started it and bounded by flightTimeout;
// each caller still stops waiting when its own context ends.
func WithRefreshDedup() CredentialOption {
	return func(s *CredentialService) { s.dedupe = true }
}

// NewCredentialService creates a CredentialService. secrets maps each
// configured scope to its secret; scopes absent from the map cannot be used.
// logger and m may be nil.
func NewCredentialService(
	corpID string,
	secrets map[model.SecretScope]string,
	store driven.CredentialStore,
	fetcher driven.TokenFetcher,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...CredentialOption,
) *CredentialService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &CredentialService{
		corpID:  corpID,
		secrets: make(map[model.SecretScope]string, len(secrets)),
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	for scope, secret := range secrets {
		if secret != "" {
			s.secrets[scope] = secret
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a credential of kind for scope that is valid now. A cached
// credential is returned when it has not expired; otherwise exactly one
// upstream fetch and one store write happen before Get returns.
func (s *CredentialService) Get(ctx context.Context, scope model.SecretScope, kind model.CredentialKind) (string, error) {
	key, err := s.bucketKey(scope, kind)
	if err != nil {
		return "", err
	}

	cred, err := s.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if cred != nil {
		s.metrics.IncCredentialLookup(string(kind), "hit")
		return cred.Value, nil
	}
	s.metrics.IncCredentialLookup(string(kind), "miss")

	if !s.dedupe {
		return s.refresh(ctx, key)
	}

	ch := s.flight.DoChan(key.Name(), func() (any, error) {
		// The flight is shared, so it must outlive any one caller.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()

		// Another flight may have refreshed the bucket since our lookup.
		cred, err := s.lookup(flightCtx, key)
		if err != nil {
			return "", err
		}
		if cred != nil {
			return cred.Value, nil
		}
		return s.refresh(flightCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &model.CredentialFetchError{Op: "refresh " + key.Name(), Err: ctx.Err()}
	}
}

// Invalidate empties the bucket so the next Get refetches.
func (s *CredentialService) Invalidate(ctx context.Context, scope model.SecretScope, kind model.CredentialKind) error {
	key, err := s.bucketKey(scope, kind)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key.Name(), err)
	}
	s.logger.Info("credential invalidated", "scope", scope, "kind", kind)
	return nil
}

func (s *CredentialService) bucketKey(scope model.SecretScope, kind model.CredentialKind) (model.BucketKey, error) {
	secret, ok := s.secrets[scope]
	if !ok {
		return model.BucketKey{}, fmt.Errorf("%w: %s", model.ErrScopeNotConfigured, scope)
	}
	return model.NewBucketKey(s.corpID, scope, secret, kind), nil
}

// lookup returns the stored credential when it is valid now, nil on a miss.
// A corrupt entry is a miss.
func (s *CredentialService) lookup(ctx context.Context, key model.BucketKey) (*model.Credential, error) {
	cred, err := s.store.Load(ctx, key)
	if errors.Is(err, model.ErrCacheCorrupt) {
		s.logger.Warn("discarding corrupt credential cache entry", "bucket", key.Name(), "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key.Name(), err)
	}
	if cred == nil || !cred.ValidAt(s.now()) {
		return nil, nil
	}
	return cred, nil
}

func (s *CredentialService) refresh(ctx context.Context, key model.BucketKey) (string, error) {
	res, err := s.fetch(ctx, key)
	if err != nil {
		s.metrics.IncCredentialFetch(string(key.Kind), "error")
		return "", err
	}
	s.metrics.IncCredentialFetch(string(key.Kind), "ok")

	cred := model.NewCredential(key, res, s.now())
	if err := s.store.Save(ctx, cred); err != nil {
		return "", fmt.Errorf("save %s: %w", key.Name(), err)
	}

	s.logger.Info("credential refreshed",
		"scope", key.Scope,
		"kind", key.Kind,
		"expires_at", cred.ExpiresAt.Format(time.RFC3339),
	)
	return cred.Value, nil
}

func (s *CredentialService) fetch(ctx context.Context, key model.BucketKey) (model.FetchResult, error) {
	var (
		res model.FetchResult
		err error
	)

	switch key.Kind {
	case model.KindAccessToken:
		res, err = s.fetcher.FetchAccessToken(ctx, s.corpID, s.secrets[key.Scope])
	case model.KindAgentTicket, model.KindCorpTicket:
		token, tokenErr := s.Get(ctx, key.Scope, model.KindAccessToken)
		if tokenErr != nil {
			return model.FetchResult{}, tokenErr
		}
		if key.Kind == model.KindAgentTicket {
			res, err = s.fetcher.FetchAgentTicket(ctx, token)
		} else {
			res, err = s.fetcher.FetchCorpTicket(ctx, token)
		}
	default:
		return model.FetchResult{}, fmt.Errorf("unknown credential kind %q", key.Kind)
	}

	if err != nil {
		var fetchErr *model.CredentialFetchError
		if !errors.As(err, &fetchErr) {
			err = &model.CredentialFetchError{Op: string(key.Kind), Err: err}
		}
		return model.FetchResult{}, err
	}
	if res.Value == "" {
		return model.FetchResult{}, &model.CredentialFetchError{Op: string(key.Kind), Message: "empty credential in response"}
	}
	return res, nil
}
