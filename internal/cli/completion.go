package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pluma/internal/complete"
)

func (a *App) newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "completion <shell>",
		Short:     "Generate the shell completion script",
		Long:      "Generate the completion script for " + strings.Join(complete.Shells, " or ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: complete.Shells,
		RunE: func(cmd *cobra.Command, args []string) error {
			return complete.WriteScript(cmd.OutOrStdout(), args[0], cmd.Root().Name())
		},
	}
}

// newCompleteWordsCommand answers the completion scripts: one candidate
// per line for the last word of the command line.
func (a *App) newCompleteWordsCommand() *cobra.Command {
	return &cobra.Command{
		Use:                complete.QueryCommand,
		Hidden:             true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range a.candidates(cmd.Root(), args) {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

// candidates completes plugin commands from the command tree and the
// builtin commands from cobra.
func (a *App) candidates(root *cobra.Command, words []string) []string {
	if len(words) > 1 {
		switch words[0] {
		case "dev":
			if len(words) == 2 {
				return builtinChildren(root, "dev", words[1])
			}
			return nil
		case "completion":
			if len(words) == 2 {
				return prefixed(complete.Shells, words[1])
			}
			return nil
		case "info":
			return nil
		}
	}
	return complete.Candidates(a.root, words, builtins)
}

func builtinChildren(root *cobra.Command, name, current string) []string {
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		return nil
	}
	var names []string
	for _, c := range cmd.Commands() {
		if !c.Hidden && c.Name() != "help" {
			names = append(names, c.Name())
		}
	}
	return prefixed(names, current)
}

func prefixed(names []string, prefix string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}
