package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petal-labs/taskgate/config"
	taskmcp "github.com/petal-labs/taskgate/mcpserver"
)

// NewStdioCmd creates the "stdio" subcommand.
func NewStdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Speak MCP over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serveStdio(cmd, cfg)
		},
	}
}

// serveStdio runs the protocol until stdin closes or the process is
// signalled. Logs go to stderr; stdout carries protocol frames only.
func serveStdio(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	rt.logger.Info("stdio transport starting", "backend", rt.client.BaseURL())
	err = taskmcp.ServeStdio(ctx, rt.mcp, cmd.InOrStdin(), cmd.OutOrStdout(), rt.logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitError(exitRuntime, "stdio transport: %v", err)
	}
	return nil
}
