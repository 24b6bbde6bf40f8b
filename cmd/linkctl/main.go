// Command linkctl links incident files to zone files offline and inspects
// name canonicalization.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wildfire-linker/internal/match"
	"github.com/couchcryptid/wildfire-linker/internal/observability"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "linkctl",
		Short:         "Offline wildfire incident linking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")

	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newCanonCmd())
	return rootCmd
}

// cliLogger logs to stderr; stdout carries command output.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return observability.NewCLILogger(cmd.ErrOrStderr(), level, format)
}

func newEngine(cfg match.Config, logger *slog.Logger) (*match.Engine, error) {
	return match.NewEngine(cfg, logger, observability.NewUnregisteredMetrics())
}
