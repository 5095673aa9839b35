package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
	"github.com/ericfisherdev/wecomkit/internal/metrics"
)

// APIService dispatches authorized calls to the platform API. Every call
// first obtains a valid access token for its secret scope.
type APIService struct {
	creds        CredentialProvider
	client       driven.APIClient
	defaultScope model.SecretScope
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewAPIService creates an APIService. defaultScope authorizes the built-in
// calls such as CallbackIPs. logger and m may be nil.
func NewAPIService(
	creds CredentialProvider,
	client driven.APIClient,
	defaultScope model.SecretScope,
	logger *slog.Logger,
	m *metrics.Metrics,
) *APIService {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIService{
		creds:        creds,
		client:       client,
		defaultScope: defaultScope,
		logger:       logger,
		metrics:      m,
	}
}

// Call sends an authorized request. When the platform rejects the access
// token itself, the cached token is invalidated and the call is retried once
// with a fresh token.
func (s *APIService) Call(
	ctx context.Context,
	scope model.SecretScope,
	method, path string,
	query url.Values,
	body, out any,
) error {
	err := s.call(ctx, scope, method, path, query, body, out)

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.InvalidatesToken() {
		s.logger.Warn("access token rejected, retrying with a fresh token",
			"scope", scope, "path", path, "errcode", apiErr.Code)
		if invErr := s.creds.Invalidate(ctx, scope, model.KindAccessToken); invErr != nil {
			return errors.Join(err, invErr)
		}
		err = s.call(ctx, scope, method, path, query, body, out)
	}

	if err != nil {
		s.metrics.IncAPICall(path, "error")
		return err
	}
	s.metrics.IncAPICall(path, "ok")
	return nil
}

func (s *APIService) call(
	ctx context.Context,
	scope model.SecretScope,
	method, path string,
	query url.Values,
	body, out any,
) error {
	token, err := s.creds.Get(ctx, scope, model.KindAccessToken)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", path, err)
	}
	if err := s.client.Do(ctx, method, path, token, query, body, out); err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	return nil
}

// CallbackIPs lists the addresses the platform sends callbacks from.
func (s *APIService) CallbackIPs(ctx context.Context) ([]string, error) {
	var out struct {
		IPList []string `json:"ip_list"`
	}
	if err := s.Call(ctx, s.defaultScope, http.MethodGet, "/cgi-bin/getcallbackip", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.IPList, nil
}

// APIDomainIPs lists the egress addresses of the platform API domain.
func (s *APIService) APIDomainIPs(ctx context.Context) ([]string, error) {
	var out struct {
		IPList []string `json:"ip_list"`
	}
	if err := s.Call(ctx, s.defaultScope, http.MethodGet, "/cgi-bin/get_api_domain_ip", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.IPList, nil
}
