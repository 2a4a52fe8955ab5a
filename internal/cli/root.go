package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pluma/internal/dispatch"
	"github.com/roach88/pluma/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// builtins are the commands that exist regardless of installed plugins.
var builtins = []string{"completion", "dev", "info"}

// rootCommand creates the root command: builtins plus one group per
// loaded plugin.
func (a *App) rootCommand() *cobra.Command {
	opts := &RootOptions{}
	a.opts = opts
	var listPlugins, citations bool

	cmd := &cobra.Command{
		Use:   "pluma",
		Short: "pluma - plugin actions on the command line",
		Long: `pluma exposes the actions of installed plugins as commands.

Each plugin is a command group and each of its actions a subcommand with
typed --i-, --p-, --m- and --o- options.`,
		Version:       ir.ToolVersion,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) > 0:
				if err := a.pluginErr; err != nil {
					return err
				}
				err := a.root.Suggest(args[0])
				err.Suggestions = closeBuiltins(args[0], err.Suggestions)
				return err
			case listPlugins:
				return a.writePlugins(cmd)
			case citations:
				return a.writeAllCitations(cmd)
			}
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("pluma version {{.Version}}\n")
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.Flags().BoolVar(&listPlugins, "plugins", false, "list installed plugins and their versions")
	cmd.Flags().BoolVar(&citations, "citations", false, "show citations for all installed plugins")

	cmd.AddCommand(a.newInfoCommand(opts))
	cmd.AddCommand(a.newDevCommand(opts))
	cmd.AddCommand(a.newCompletionCommand())
	cmd.AddCommand(a.newCompleteWordsCommand())
	for _, group := range a.root.Children {
		cmd.AddCommand(a.groupCommand(group))
	}
	return cmd
}

// closeBuiltins merges builtin command names close to name into the
// plugin suggestions.
func closeBuiltins(name string, suggestions []string) []string {
	for _, b := range builtins {
		if strings.HasPrefix(b, name) && !slices.Contains(suggestions, b) {
			suggestions = append(suggestions, b)
		}
	}
	slices.Sort(suggestions)
	return suggestions
}

func (a *App) writePlugins(cmd *cobra.Command) error {
	if err := a.requirePlugins(); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(a.plugins) == 0 {
		fmt.Fprintln(w, "No plugins installed.")
		return nil
	}
	lines := make([]string, 0, len(a.plugins))
	for _, p := range a.plugins {
		lines = append(lines, fmt.Sprintf("%s: %s", p.Name, p.Version))
	}
	slices.Sort(lines)
	fmt.Fprintln(w, a.theme.Emphasis("Installed plugins:"))
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}

func (a *App) writeAllCitations(cmd *cobra.Command) error {
	if err := a.requirePlugins(); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(a.root.Children) == 0 {
		fmt.Fprintln(w, "No citations found.")
		return nil
	}
	for i, group := range a.root.Children {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, a.theme.Emphasis("% "+group.Name))
		fmt.Fprintln(w, dispatch.Citations(group.Plugin))
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
