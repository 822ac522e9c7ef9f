package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/petal-labs/taskgate/backend"
	"github.com/petal-labs/taskgate/config"
	"github.com/petal-labs/taskgate/gateway"
	taskmcp "github.com/petal-labs/taskgate/mcpserver"
	taskotel "github.com/petal-labs/taskgate/otel"
)

// loadConfig resolves the layered configuration and applies any command-line
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{ExplicitPath: explicitPath})
	if err != nil {
		return config.Config{}, exitError(exitConfig, "loading config: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("backend-url") {
		cfg.BackendURL, _ = flags.GetString("backend-url")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("cors-origin") {
		cfg.CORSOrigins, _ = flags.GetStringSlice("cors-origin")
	}
	if flags.Changed("max-body") {
		cfg.MaxBodyBytes, _ = flags.GetInt64("max-body")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitError(exitConfig, "invalid config: %v", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. It always writes to w, which is
// stderr in every transport so stdout stays free for protocol frames.
func newLogger(w io.Writer, cfg config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.LogFormat)
	}
}

// gatewayRuntime is everything a transport needs to serve the catalog.
type gatewayRuntime struct {
	cfg       config.Config
	logger    *slog.Logger
	telemetry *taskotel.Telemetry
	client    *backend.Client
	registry  *gateway.Registry
	mcp       *mcpserver.MCPServer
}

func buildRuntime(ctx context.Context, cmd *cobra.Command, cfg config.Config) (*gatewayRuntime, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	slog.SetDefault(logger)

	telemetry, err := taskotel.Setup(ctx, taskotel.SetupOptions{
		ServiceName:    cfg.ServerName,
		ServiceVersion: cfg.ServerVersion,
		Logger:         logger,
	})
	if err != nil {
		return nil, exitError(exitRuntime, "initializing telemetry: %v", err)
	}
	gateway.SetObserver(telemetry.Observer)

	httpClient := backend.NewHTTPClient(cfg.RequestTimeout)
	if cfg.OAuth.Enabled() {
		httpClient = backend.NewOAuthHTTPClient(ctx, cfg.RequestTimeout, cfg.OAuth.Backend())
		logger.Debug("backend oauth enabled", "token_url", cfg.OAuth.TokenURL)
	}
	client, err := backend.New(backend.Config{
		BaseURL:    cfg.BackendURL,
		APIPrefix:  cfg.APIPrefix,
		UserID:     cfg.UserID,
		Timeout:    cfg.RequestTimeout,
		HTTPClient: httpClient,
		Observer:   telemetry.Observer,
		Logger:     logger,
	})
	if err != nil {
		gateway.SetObserver(nil)
		return nil, exitError(exitConfig, "%v", errors.Join(err, telemetry.Shutdown(ctx)))
	}

	svc := gateway.NewService(gateway.ServiceConfig{Backend: client, Logger: logger})
	registry, err := gateway.NewCatalogRegistry(svc)
	if err != nil {
		gateway.SetObserver(nil)
		return nil, exitError(exitRuntime, "%v", errors.Join(err, telemetry.Shutdown(ctx)))
	}

	if cfg.Source != "" {
		logger.Debug("loaded config", "path", cfg.Source)
	}
	return &gatewayRuntime{
		cfg:       cfg,
		logger:    logger,
		telemetry: telemetry,
		client:    client,
		registry:  registry,
		mcp:       taskmcp.New(registry, cfg.ServerName, cfg.ServerVersion),
	}, nil
}

// close detaches the observer and flushes telemetry.
func (rt *gatewayRuntime) close(ctx context.Context) {
	gateway.SetObserver(nil)
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		rt.logger.Warn("telemetry shutdown failed", "error", err)
	}
}
