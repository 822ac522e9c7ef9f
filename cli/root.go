// Package cli implements the taskgate command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/petal-labs/taskgate/config"
)

// NewRootCmd builds the taskgate command tree. Run without a subcommand,
// the root picks stdio or HTTP from the configuration and process signals.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskgate",
		Short: "Task and appointment tool gateway",
		Long:  "taskgate exposes task and appointment tools over MCP (stdio or streamable HTTP) and a plain HTTP/JSON wrapper.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runAuto,
	}
	root.Version = version

	root.PersistentFlags().String("config", "", "Path to taskgate.yaml (default: ./taskgate.yaml, ~/.taskgate/config.yaml)")
	root.PersistentFlags().String("backend-url", "", "Backend REST API base URL")
	root.PersistentFlags().String("log-level", "", "Log level: debug | info | warn | error")
	root.PersistentFlags().String("log-format", "", "Log format: text | json")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	addListenFlags(root)

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewStdioCmd())
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewCallCmd())
	return root
}

func runAuto(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	transport := config.ResolveTransport(cfg, config.Signals{
		HasArgs:         len(args) > 0 || cmd.Flags().NFlag() > 0,
		StdinIsTerminal: config.StdinIsTerminal(),
	})
	if transport == config.TransportStdio {
		return serveStdio(cmd, cfg)
	}
	return serveHTTP(cmd, cfg)
}

func addListenFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", config.DefaultPort, "Listen port")
	cmd.Flags().String("host", config.DefaultHost, "Listen host")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable, * for any)")
	cmd.Flags().Int64("max-body", config.DefaultMaxBodyBytes, "Max request body size in bytes")
}
