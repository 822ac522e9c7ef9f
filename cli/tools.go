package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/taskgate/gateway"
)

// NewToolsCmd creates the "tools" subcommand, which lists the catalog.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
	cmd.Flags().Bool("json", false, "Print full tool definitions as JSON")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	asJSON, _ := cmd.Flags().GetBool("json")
	tools := rt.registry.Tools()
	if asJSON {
		definitions := make([]any, 0, len(tools))
		for _, tool := range tools {
			definitions = append(definitions, tool.Definition)
		}
		return writeIndented(cmd, definitions)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tREQUIRED\tDESCRIPTION")
	for _, tool := range tools {
		required := slices.Clone(tool.Definition.InputSchema.Required)
		slices.Sort(required)
		requiredText := strings.Join(required, ",")
		if requiredText == "" {
			requiredText = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", tool.Definition.Name, requiredText, firstLine(tool.Definition.Description))
	}
	return writer.Flush()
}

// NewCallCmd creates the "call" subcommand, which invokes one tool once.
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool and print its result",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	rawArgs, _ := cmd.Flags().GetString("args")

	var arguments map[string]any
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &arguments); err != nil {
			return exitError(exitInputParse, "--args must be a JSON object: %v", err)
		}
	}
	if arguments == nil {
		arguments = map[string]any{}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	result, err := rt.registry.Invoke(cmd.Context(), name, arguments)
	if err != nil {
		var argErr *gateway.ArgumentError
		switch {
		case errors.Is(err, gateway.ErrToolNotFound):
			return exitError(exitNotFound, "%v", err)
		case errors.As(err, &argErr):
			return exitError(exitInputParse, "%v", err)
		default:
			return exitError(exitRuntime, "%v", err)
		}
	}
	if err := writeIndented(cmd, result.Payload()); err != nil {
		return err
	}
	if !result.OK() {
		return exitError(exitToolFailed, "%s failed: %s", name, result.Failure.Error())
	}
	return nil
}

func writeIndented(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}
