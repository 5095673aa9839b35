package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ericfisherdev/wecomkit/internal/adapter/driven/filecache"
	sqliteadapter "github.com/ericfisherdev/wecomkit/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/wecomkit/internal/adapter/driven/wecom"
	"github.com/ericfisherdev/wecomkit/internal/application"
	"github.com/ericfisherdev/wecomkit/internal/config"
	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
	"github.com/ericfisherdev/wecomkit/internal/metrics"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	client  *wecom.Client
	creds   *application.CredentialService
	api     *application.APIService
	closers []func() error
}

// newLogger builds the process logger. serve logs JSON; the one-shot
// commands log text to w.
func newLogger(cfg *config.Config, w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newApp wires the credential store, upstream client and services.
// reg may be nil, in which case no metrics are recorded.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if reg != nil {
		a.metrics = metrics.New(reg)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.client = wecom.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger)

	var opts []application.CredentialOption
	if cfg.DedupeRefresh {
		opts = append(opts, application.WithRefreshDedup())
	}
	a.creds = application.NewCredentialService(cfg.CorpID, cfg.Secrets(), store, a.client, logger, a.metrics, opts...)
	a.api = application.NewAPIService(a.creds, a.client, defaultScope(cfg), logger, a.metrics)

	logger.Debug("services wired", "scopes", len(cfg.Secrets()), "dedupe_refresh", cfg.DedupeRefresh)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (driven.CredentialStore, error) {
	switch a.cfg.CacheMode {
	case config.CacheModeSQLite:
		db, err := sqliteadapter.NewDB(ctx, a.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open credential database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.logger.Info("database opened", "path", db.Path())

		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			return nil, err
		}
		return sqliteadapter.NewCredentialRepo(db, a.cfg.SecretKey()), nil
	default:
		a.logger.Info("file credential cache", "dir", a.cfg.CacheDir)
		return filecache.NewStore(a.cfg.CacheDir), nil
	}
}

// Close releases the credential store.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// defaultScope picks the scope that authorizes built-in API calls: the
// agent scope when it is configured, else the first configured scope.
func defaultScope(cfg *config.Config) model.SecretScope {
	secrets := cfg.Secrets()
	for _, scope := range []model.SecretScope{model.ScopeAgent, model.ScopeCorp, model.ScopeContacts} {
		if _, ok := secrets[scope]; ok {
			return scope
		}
	}
	return model.ScopeAgent
}
