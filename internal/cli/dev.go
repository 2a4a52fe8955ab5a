package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/pluma/internal/store"
	"github.com/roach88/pluma/internal/style"
)

// DefaultHistoryLimit is how many invocations dev history shows.
const DefaultHistoryLimit = 10

func (a *App) newDevCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Utilities for plugin developers and advanced users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(a.newRefreshCacheCommand(rootOpts))
	cmd.AddCommand(newValidateCommand(rootOpts))
	cmd.AddCommand(a.newHistoryCommand(rootOpts))
	cmd.AddCommand(a.newImportThemeCommand())
	cmd.AddCommand(a.newExportThemeCommand())
	cmd.AddCommand(a.newResetThemeCommand())
	return cmd
}

// RefreshResult is the payload of dev refresh-cache.
type RefreshResult struct {
	Plugins int    `json:"plugins"`
	Cache   string `json:"cache"`
}

func (a *App) newRefreshCacheCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-cache",
		Short: "Rebuild the plugin registry cache",
		Long: `Rebuild the plugin registry cache from the installed plugins,
regardless of whether the cached fingerprint still matches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plugins, err := a.newCache(true).Refresh(cmd.Context())
			if err != nil {
				return err
			}
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			formatter.VerboseLog("Wrote %s", a.settings.Dir.CacheFile())
			if formatter.Format == "json" {
				return formatter.Success(RefreshResult{Plugins: len(plugins), Cache: a.settings.Dir.CacheFile()})
			}
			return formatter.Success(a.theme.Success(fmt.Sprintf("Registry cache refreshed (%d plugin(s)).", len(plugins))))
		},
	}
}

type historyOptions struct {
	limit int
}

func (o *historyOptions) addFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&o.limit, "limit", "n", DefaultHistoryLimit, "number of invocations to show")
}

func (a *App) newHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently dispatched actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.limit <= 0 {
				return fmt.Errorf("invalid limit %d: must be positive", opts.limit)
			}
			entries, err := a.history(cmd, opts.limit)
			if err != nil {
				return err
			}
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.Format == "json" {
				return formatter.Success(entries)
			}
			writeHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

// history reads the journal. A journal that was never written is empty.
func (a *App) history(cmd *cobra.Command, limit int) ([]store.Entry, error) {
	path := a.settings.Dir.JournalFile()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return []store.Entry{}, nil
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "open journal", err)
	}
	defer s.Close()
	return store.NewJournal(s, nil).Recent(cmd.Context(), limit)
}

func writeHistory(w io.Writer, entries []store.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No invocations recorded.")
		return
	}
	for _, e := range entries {
		status := "ok"
		if e.ExitCode != 0 {
			status = fmt.Sprintf("exit %d", e.ExitCode)
		}
		fmt.Fprintf(w, "%s  %s %s (%s)  %s  %s\n",
			e.StartedAt.UTC().Format(time.RFC3339),
			e.Plugin, e.Action, e.PluginVersion,
			status, shortID(e.ContentID))
		if e.Error != "" {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(e.Error))
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func (a *App) newImportThemeCommand() *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:   "import-theme",
		Short: "Install a theme for command-line output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := style.Import(theme, a.settings.ThemeFile()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Theme imported to "+a.settings.ThemeFile())
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "path to a theme file")
	_ = cmd.MarkFlagRequired("theme")
	return cmd
}

func (a *App) newExportThemeCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-default-theme",
		Short: "Write the default theme, as a starting point for a custom one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return style.WriteDefaults(cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := style.WriteDefaults(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "file to write (default stdout)")
	return cmd
}

func (a *App) newResetThemeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-theme",
		Short: "Go back to the default theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := style.Reset(a.settings.ThemeFile()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Theme reset to default.")
			return nil
		},
	}
}
