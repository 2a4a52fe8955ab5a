package cli

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/tree"
)

// Info is the payload of the info command.
type Info struct {
	Version     string            `json:"version"`
	GoVersion   string            `json:"go_version"`
	AppDir      string            `json:"app_dir"`
	CacheFile   string            `json:"cache_file"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	PluginPaths []string          `json:"plugin_paths"`
	Plugins     map[string]string `json:"plugins"`
	Actions     int               `json:"actions"`
	Problem     string            `json:"problem,omitempty"`
}

func (a *App) newInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display information about the current deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			info := a.info(cmd)
			if formatter.Format == "json" {
				return formatter.Success(info)
			}
			return formatter.Success(a.renderInfo(info))
		},
	}
}

func (a *App) info(cmd *cobra.Command) Info {
	info := Info{
		Version:     ir.ToolVersion,
		GoVersion:   runtime.Version(),
		AppDir:      string(a.settings.Dir),
		CacheFile:   a.settings.Dir.CacheFile(),
		PluginPaths: a.settings.PluginPaths(a.Getenv),
		Plugins:     make(map[string]string, len(a.plugins)),
	}
	for _, p := range a.plugins {
		info.Plugins[p.Name] = p.Version
	}
	if a.root != nil {
		a.root.Walk(func(n *tree.Node) bool {
			if n.Kind == tree.Leaf {
				info.Actions++
			}
			return true
		})
	}
	if err := a.requirePlugins(); err != nil {
		info.Problem = err.Error()
		return info
	}
	fp, err := a.cache.CurrentFingerprint(cmd.Context())
	if err != nil {
		info.Problem = err.Error()
		return info
	}
	info.Fingerprint = fp
	return info
}

func (a *App) renderInfo(info Info) string {
	var b strings.Builder
	section := func(title string) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.theme.Emphasis(title))
		b.WriteString("\n")
	}

	section("System versions")
	fmt.Fprintf(&b, "pluma version: %s\n", info.Version)
	fmt.Fprintf(&b, "Go version: %s\n", info.GoVersion)

	section("Installed plugins")
	if len(info.Plugins) == 0 {
		b.WriteString("none\n")
	}
	names := make([]string, 0, len(info.Plugins))
	for name := range info.Plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, info.Plugins[name])
	}
	if info.Actions > 0 {
		fmt.Fprintf(&b, "Actions: %d\n", info.Actions)
	}

	section("Application config directory")
	fmt.Fprintf(&b, "%s\n", info.AppDir)
	fmt.Fprintf(&b, "Plugin paths: %s\n", strings.Join(info.PluginPaths, ", "))
	fmt.Fprintf(&b, "Registry cache: %s\n", info.CacheFile)
	if info.Fingerprint != "" {
		fmt.Fprintf(&b, "Fingerprint: %s\n", info.Fingerprint)
	}
	if info.Problem != "" {
		fmt.Fprintf(&b, "%s\n", a.theme.Warning("Problem: "+info.Problem))
	}
	return strings.TrimRight(b.String(), "\n")
}
