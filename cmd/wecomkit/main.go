package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wecomkit",
		Short: "WeCom callback endpoint and credential cache",
		Long: `wecomkit serves a WeCom callback URL and keeps access tokens and
JS-SDK tickets cached between runs.

Configuration is read from WECOMKIT_* environment variables and an optional
.env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newTokenCmd(), newTicketCmd(), newIPsCmd())
	return root
}
