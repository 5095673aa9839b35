package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/wecomkit/internal/config"
	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

// withApp loads configuration, wires the services without metrics and runs fn
// with an interrupt-aware context.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing credential store", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}

func newTokenCmd() *cobra.Command {
	var (
		scope   string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Print a valid access token for a secret scope, fetching and caching
a new one when the cached token has expired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := model.ParseSecretScope(scope)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				return printCredential(ctx, cmd, a, s, model.KindAccessToken, refresh)
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "agent", "secret scope: agent, contacts or corp")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached token before reading")
	return cmd
}

func newTicketCmd() *cobra.Command {
	var (
		kind    string
		scope   string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Print a valid JS-SDK ticket",
		Long: `Print a valid JS-SDK ticket. --kind agent returns the agent_config
ticket of the agent scope; --kind corp returns the jsapi ticket of --scope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				k model.CredentialKind
				s = model.ScopeAgent
			)
			switch kind {
			case "agent":
				k = model.KindAgentTicket
			case "corp":
				k = model.KindCorpTicket
				parsed, err := model.ParseSecretScope(scope)
				if err != nil {
					return err
				}
				s = parsed
			default:
				return fmt.Errorf("unknown ticket kind %q: want agent or corp", kind)
			}
			return withApp(func(ctx context.Context, a *app) error {
				return printCredential(ctx, cmd, a, s, k, refresh)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "agent", "ticket kind: agent or corp")
	cmd.Flags().StringVar(&scope, "scope", "corp", "secret scope for corp tickets")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached ticket before reading")
	return cmd
}

func printCredential(ctx context.Context, cmd *cobra.Command, a *app, scope model.SecretScope, kind model.CredentialKind, refresh bool) error {
	if refresh {
		if err := a.creds.Invalidate(ctx, scope, kind); err != nil {
			return err
		}
	}
	value, err := a.creds.Get(ctx, scope, kind)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func newIPsCmd() *cobra.Command {
	var domain bool

	cmd := &cobra.Command{
		Use:   "ips",
		Short: "List the platform's callback or API egress addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				list := a.api.CallbackIPs
				if domain {
					list = a.api.APIDomainIPs
				}
				ips, err := list(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ips, "\n"))
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&domain, "domain", false, "list API domain addresses instead of callback sources")
	return cmd
}
