package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/taskgate/config"
	taskmcp "github.com/petal-labs/taskgate/mcpserver"
	"github.com/petal-labs/taskgate/server"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP wrapper with MCP mounted at /mcp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serveHTTP(cmd, cfg)
		},
	}
	addListenFlags(cmd)
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	return cmd
}

func serveHTTP(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	srv := server.NewServer(server.ServerConfig{
		Registry:    rt.registry,
		BackendURL:  cfg.BackendURL,
		MCP:         taskmcp.NewStreamableHandler(rt.mcp),
		CORSOrigins: cfg.CORSOrigins,
		MaxBody:     cfg.MaxBodyBytes,
		Logger:      rt.logger,
	})

	readTimeout := 30 * time.Second
	writeTimeout := 60 * time.Second
	if cmd.Flags().Lookup("read-timeout") != nil {
		readTimeout, _ = cmd.Flags().GetDuration("read-timeout")
		writeTimeout, _ = cmd.Flags().GetDuration("write-timeout")
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	printBanner(cmd, cfg, rt.client.BaseURL())
	rt.logger.Info("http transport listening", "addr", cfg.Addr())

	select {
	case <-ctx.Done():
		rt.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// printBanner writes the startup summary to stderr. Only the HTTP transport
// prints one.
func printBanner(cmd *cobra.Command, cfg config.Config, backendURL string) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "%s %s\n", cfg.ServerName, cfg.ServerVersion)
	fmt.Fprintf(w, "  listening on http://%s\n", cfg.Addr())
	fmt.Fprintf(w, "  mcp endpoint  http://%s/mcp\n", cfg.Addr())
	fmt.Fprintf(w, "  backend       %s\n", backendURL)
}
