package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pluma/internal/dispatch"
	"github.com/roach88/pluma/internal/tree"
)

// groupCommand adapts a plugin group to cobra. Its children are leaves.
func (a *App) groupCommand(group *tree.Node) *cobra.Command {
	var citations bool
	cmd := &cobra.Command{
		Use:   group.Name,
		Short: group.Summary,
		Long:  group.Help,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case citations:
				fmt.Fprintln(cmd.OutOrStdout(), dispatch.Citations(group.Plugin))
				return nil
			case len(args) > 0:
				return group.Suggest(args[0])
			}
			return cmd.Help()
		},
	}
	cmd.Flags().BoolVar(&citations, "citations", false, "show citations for this plugin")
	for _, leaf := range group.Children {
		cmd.AddCommand(a.leafCommand(leaf))
	}
	return cmd
}

// leafCommand adapts an action. The dispatcher owns the whole argument
// list, so cobra's flag parsing is off.
func (a *App) leafCommand(leaf *tree.Node) *cobra.Command {
	short := leaf.Summary
	if leaf.Action != nil && leaf.Action.Deprecated {
		short += " [deprecated]"
	}
	return &cobra.Command{
		Use:                leaf.Name,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, done := a.dispatcher()
			defer done()
			d.Stdout = cmd.OutOrStdout()
			d.Stderr = cmd.ErrOrStderr()
			return d.Dispatch(cmd.Context(), leaf, args)
		},
	}
}
