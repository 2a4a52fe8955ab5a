package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/pluma/internal/cache"
	"github.com/roach88/pluma/internal/config"
	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/dispatch"
	"github.com/roach88/pluma/internal/executor"
	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
	"github.com/roach88/pluma/internal/registry"
	"github.com/roach88/pluma/internal/store"
	"github.com/roach88/pluma/internal/style"
	"github.com/roach88/pluma/internal/tree"
)

// EnvDev forces a registry cache rebuild on every start when set to 1.
const EnvDev = "PLUMA_DEV"

// App carries what one pluma invocation needs. Zero-valued collaborators
// are replaced with the production ones.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Registry defaults to the directories from the configuration.
	Registry registry.Registry
	// Executor defaults to running plugin executables.
	Executor executor.Executor
	Now      func() time.Time

	settings *config.Settings
	logger   *slog.Logger
	theme    *style.Theme
	opts     *RootOptions

	cache     *cache.Cache
	plugins   []plugin.Plugin
	root      *tree.Node
	pluginErr error
}

// Main runs pluma with args (without the program name) and returns the
// process exit status.
func Main(args []string, stdout, stderr io.Writer) int {
	app := &App{Stdout: stdout, Stderr: stderr, Getenv: os.Getenv}
	return app.Run(context.Background(), args)
}

// IsVersionRequest reports whether args only ask for the version, which
// is answered before any configuration or registry work.
func IsVersionRequest(args []string) bool {
	return len(args) == 1 && args[0] == "--version"
}

// VersionLine is the output of --version.
func VersionLine() string {
	return "pluma version " + ir.ToolVersion
}

// Run executes one command line.
func (a *App) Run(ctx context.Context, args []string) int {
	if IsVersionRequest(args) {
		fmt.Fprintln(a.Stdout, VersionLine())
		return ExitSuccess
	}
	if a.Getenv == nil {
		a.Getenv = os.Getenv
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	verbose := slices.Contains(args, "--verbose") || slices.Contains(args, "-v")
	a.logger = NewLogger(a.Stderr, verbose)

	settings, err := config.Resolve(a.Getenv)
	if err != nil {
		fmt.Fprintln(a.Stderr, "Error:", err)
		return ExitFailure
	}
	a.settings = settings

	looks, err := style.LoadTheme(settings.ThemeFile())
	if err != nil {
		a.logger.Warn("theme not applied", "error", err)
		looks = nil
	}
	a.theme = style.New(a.Stdout, settings.Color, looks)

	if needsPlugins(args) {
		a.loadPlugins(ctx)
	} else {
		a.root, _ = tree.Build(nil)
	}

	root := a.rootCommand()
	if args == nil {
		// cobra reads os.Args when given nil
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	err = root.ExecuteContext(ctx)
	if err != nil && !alreadyReported(err) {
		a.printError(err)
	}
	return GetExitCode(err)
}

// printError reports a command failure: as a JSON envelope on stdout when
// JSON output was requested, otherwise on stderr.
func (a *App) printError(err error) {
	if a.opts != nil && a.opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: a.Stdout}
		if ferr := formatter.Error(errorCode(err), err.Error(), nil); ferr == nil {
			return
		}
	}
	fmt.Fprintln(a.Stderr, a.theme.Error("Error: "+err.Error()))
}

// needsPlugins reports whether the command line can touch plugin
// commands or list them. Builtins that work without plugins skip the
// registry.
func needsPlugins(args []string) bool {
	var words []string
	for _, arg := range args {
		if len(arg) > 0 && arg[0] != '-' {
			words = append(words, arg)
		}
	}
	if len(words) == 0 {
		return true
	}
	switch words[0] {
	case "completion":
		return false
	case "dev":
		return len(words) < 2
	}
	return true
}

func (a *App) newCache(force bool) *cache.Cache {
	reg := a.Registry
	if reg == nil {
		dir := registry.NewDir(a.settings.PluginPaths(a.Getenv)...)
		dir.Logger = a.logger
		reg = dir
	}
	storage := cache.NewFileStorage(a.settings.Dir.CacheFile())
	return cache.New(reg, storage,
		cache.WithLogger(a.logger),
		cache.WithClock(a.Now),
		cache.WithForceRefresh(force || a.Getenv(EnvDev) == "1"),
	)
}

// loadPlugins fills in the descriptor set and command tree. A registry
// failure leaves an empty tree; plugin commands then report pluginErr.
func (a *App) loadPlugins(ctx context.Context) {
	a.cache = a.newCache(false)
	plugins, err := a.cache.Plugins(ctx)
	if err == nil {
		a.root, err = tree.Build(plugins)
	}
	if err != nil {
		if diag.KindOf(err) != diag.RegistryUnavailable {
			err = &diag.Error{Kind: diag.RegistryUnavailable, Message: "could not load plugins", Err: err}
		}
		a.logger.Debug("plugins unavailable", "error", err)
		a.pluginErr = err
		a.root, _ = tree.Build(nil)
		return
	}
	a.plugins = plugins
}

// dispatcher builds the dispatcher for one action run. The returned
// cleanup closes the journal.
func (a *App) dispatcher() (*dispatch.Dispatcher, func()) {
	exec := a.Executor
	if exec == nil {
		exec = executor.NewProcess(a.Stdout, a.Stderr)
	}
	d := &dispatch.Dispatcher{
		Executor: exec,
		Stdout:   a.Stdout,
		Stderr:   a.Stderr,
		Layout:   layoutFor(a.Stdout),
		Style:    a.theme,
		Logger:   a.logger,
		Now:      a.Now,
	}
	if !a.settings.JournalEnabled() {
		return d, func() {}
	}
	s, err := a.openStore()
	if err != nil {
		a.logger.Warn("invocation journal unavailable", "error", err)
		return d, func() {}
	}
	d.Journal = store.NewJournal(s, nil)
	return d, func() {
		if err := s.Close(); err != nil {
			a.logger.Warn("error closing journal", "error", err)
		}
	}
}

func (a *App) openStore() (*store.Store, error) {
	path := a.settings.Dir.JournalFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return store.Open(path)
}

// requirePlugins returns the registry failure, if there was one.
func (a *App) requirePlugins() error {
	if a.pluginErr != nil {
		return a.pluginErr
	}
	if a.cache == nil {
		return errors.New("plugins were not loaded")
	}
	return nil
}
