package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/idleledger/internal/adapters/provider/logind"
	"github.com/evanschultz/idleledger/internal/adapters/server"
	"github.com/evanschultz/idleledger/internal/adapters/server/common"
	"github.com/evanschultz/idleledger/internal/adapters/storage/journal"
	"github.com/evanschultz/idleledger/internal/adapters/storage/sqlite"
	"github.com/evanschultz/idleledger/internal/adapters/storage/translog"
	"github.com/evanschultz/idleledger/internal/app"
	"github.com/evanschultz/idleledger/internal/config"
	"github.com/evanschultz/idleledger/internal/platform"
	"github.com/evanschultz/idleledger/internal/tui"
	"github.com/spf13/cobra"
)

// version is overridden at build time.
var version = "dev"

// program is the subset of tea.Program the debug command drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the debug screen program; tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP/MCP server; tests replace it.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, ledger common.LedgerReader) error {
	return server.Run(ctx, cfg, ledger)
}

// trackerProviderFactory builds the session provider used by run and debug.
var trackerProviderFactory = func(cfg config.Config) app.Provider {
	return logind.New(logind.Options{PreferHypridle: cfg.Linux.PreferHypridle})
}

// sleepSourceFactory subscribes to suspend notifications for run.
var sleepSourceFactory = func() (sleepSource, error) {
	watcher, err := logind.WatchSleep(logind.DefaultSleepBuffer)
	if err != nil {
		return nil, err
	}
	return watcher, nil
}

// sleepSource is a closable suspend/resume feed.
type sleepSource interface {
	app.SleepSource
	Close() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation. fang prints any returned error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	dataDir    string
	devMode    bool
}

// cliEnv is the resolved state a subcommand runs against.
type cliEnv struct {
	flags      globalFlags
	paths      platform.Paths
	configPath string
	cfg        config.Config
	meta       config.Meta
	logger     *runtimeLogger
	stdout     io.Writer
	stderr     io.Writer
}

// newRootCommand builds the command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("IDLE_LEDGER_DEV_MODE"); ok {
		defaultDevMode = envDev
	}

	// setup resolves paths, config and logging for one subcommand.
	setup := func() (*cliEnv, error) {
		return loadEnv(flags, stdout, stderr)
	}

	root := &cobra.Command{
		Use:   "idle-ledger",
		Short: "Local activity/break ledger driven by session idle state",
		Long: "idle-ledger polls the desktop session for idle, lock and inhibitor state, " +
			"classifies each moment as activity or break and keeps a crash-safe daily journal.",
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config TOML (env IDLE_LEDGER_CONFIG)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory override (env IDLE_LEDGER_DATA_DIR)")
	root.PersistentFlags().BoolVar(&flags.devMode, "dev", defaultDevMode, "use dev mode paths (idle-ledger-dev)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Track activity and breaks until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				env, err := setup()
				if err != nil {
					return err
				}
				defer closeLogger(env)
				return runTracker(cmd.Context(), env)
			},
		},
		&cobra.Command{
			Use:   "debug",
			Short: "Show live provider readings and classification without persisting",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				env, err := setup()
				if err != nil {
					return err
				}
				defer closeLogger(env)
				return runDebug(env)
			},
		},
		newStatusCommand(setup),
		&cobra.Command{
			Use:       "summary [today|yesterday|week]",
			Short:     "Print totals and the daily target delta for a period",
			Args:      cobra.MaximumNArgs(1),
			ValidArgs: []string{string(app.PeriodToday), string(app.PeriodYesterday), string(app.PeriodWeek)},
			RunE: func(_ *cobra.Command, args []string) error {
				env, err := setup()
				if err != nil {
					return err
				}
				defer closeLogger(env)
				raw := ""
				if len(args) > 0 {
					raw = args[0]
				}
				return runSummary(env, raw)
			},
		},
		newHistoryCommand(setup),
		&cobra.Command{
			Use:   "reindex",
			Short: "Rebuild the sqlite day index from the journals",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				env, err := setup()
				if err != nil {
					return err
				}
				defer closeLogger(env)
				return runReindex(cmd.Context(), env)
			},
		},
		newServeCommand(setup),
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file and create the data directories",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				env, err := setup()
				if err != nil {
					return err
				}
				defer closeLogger(env)
				return runInit(env)
			},
		},
		&cobra.Command{
			Use:   "paths",
			Short: "Print resolved config and data paths",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				env, err := setup()
				if err != nil {
					return err
				}
				defer closeLogger(env)
				printPaths(env)
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(stdout, "idle-ledger %s\n", version)
			},
		},
	)
	return root
}

// newStatusCommand builds the status subcommand.
func newStatusCommand(setup func() (*cliEnv, error)) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show config, data locations, provider mode and today's totals",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer closeLogger(env)
			return runStatus(env, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print plain text instead of rendered markdown")
	return cmd
}

// newHistoryCommand builds the history subcommand.
func newHistoryCommand(setup func() (*cliEnv, error)) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List indexed day totals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer closeLogger(env)
			return runHistory(cmd.Context(), env, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 14, "maximum days to list (0 lists all)")
	return cmd
}

// newServeCommand builds the serve subcommand.
func newServeCommand(setup func() (*cliEnv, error)) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only day reports over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer closeLogger(env)
			return runServe(cmd.Context(), env, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (default from [server] bind)")
	return cmd
}

// loadEnv resolves paths, config and logging from flags and the environment.
func loadEnv(flags globalFlags, stdout, stderr io.Writer) (*cliEnv, error) {
	if flags.dataDir == "" {
		flags.dataDir = strings.TrimSpace(os.Getenv("IDLE_LEDGER_DATA_DIR"))
	}
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: platform.AppName,
		DevMode: flags.devMode,
		DataDir: flags.dataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	configPath := strings.TrimSpace(flags.configPath)
	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv("IDLE_LEDGER_CONFIG"))
	}
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	cfg, meta := config.Load(configPath, config.Default())

	logger, err := newRuntimeLogger(stderr, platform.AppName, flags.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, err
	}
	if meta.Err != nil {
		logger.Warn("config unreadable, using defaults", "path", configPath, "err", meta.Err)
	}
	for _, w := range meta.Warnings {
		logger.Warn("config value ignored", "path", configPath, "warning", w)
	}
	if path := logger.DevLogPath(); path != "" {
		logger.Debug("dev log file enabled", "path", path)
	}
	return &cliEnv{
		flags:      flags,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		meta:       meta,
		logger:     logger,
		stdout:     stdout,
		stderr:     stderr,
	}, nil
}

// closeLogger releases the dev log file.
func closeLogger(env *cliEnv) {
	if err := env.logger.Close(); err != nil {
		_, _ = fmt.Fprintln(env.stderr, "close dev log:", err)
	}
}

// journalStore opens the journal directory.
func (e *cliEnv) journalStore() *journal.Store {
	return journal.NewStore(e.paths.JournalDir, version)
}

// reporter builds a reporter over the journals and transition logs.
func (e *cliEnv) reporter() *app.Reporter {
	return app.NewReporter(
		e.journalStore(),
		translog.New(e.paths.TransitionLogDir),
		app.ReportConfig{
			DailyTargetMinutes: e.cfg.Summary.DailyTargetMinutes,
			WeekStartsSunday:   e.cfg.Summary.WeekStart == config.WeekStartSunday,
		},
		time.Now,
	)
}

// openIndex opens the sqlite day index.
func (e *cliEnv) openIndex() (*sqlite.Repository, error) {
	repo, err := sqlite.Open(e.paths.IndexDBPath)
	if err != nil {
		return nil, fmt.Errorf("open day index %s: %w", e.paths.IndexDBPath, err)
	}
	return repo, nil
}

// runTracker runs the tracking loop until ctx is canceled.
func runTracker(ctx context.Context, env *cliEnv) error {
	logger := env.logger
	provider := trackerProviderFactory(env.cfg)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("close provider", "err", err)
		}
	}()

	transitions := translog.New(env.paths.TransitionLogDir)
	opts := []app.TrackerOption{app.WithLogger(logger.Component("tracker"))}

	if watcher, err := sleepSourceFactory(); err != nil {
		logger.Warn("sleep notifications unavailable", "err", err)
	} else {
		defer func() { _ = watcher.Close() }()
		opts = append(opts, app.WithSleepSource(watcher))
	}

	if env.cfg.Index.Enabled {
		repo, err := env.openIndex()
		if err != nil {
			logger.Warn("day index disabled", "err", err)
		} else {
			defer func() { _ = repo.Close() }()
			opts = append(opts, app.WithDayIndex(repo))
		}
	}

	tracker := app.NewTracker(provider, env.journalStore(), transitions, app.TrackerConfig{
		Classifier: env.cfg.Classifier(),
		Poll:       env.cfg.PollInterval(),
		Heartbeat:  env.cfg.HeartbeatInterval(),
	}, opts...)

	logger.Info("tracking",
		"journal_dir", env.paths.JournalDir,
		"logs_dir", env.paths.TransitionLogDir,
		"run_id", transitions.RunID(),
		"threshold_seconds", env.cfg.ThresholdSeconds,
		"poll", env.cfg.PollInterval(),
	)
	if err := tracker.Run(ctx); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// runDebug shows the live debug screen. The console sink stays off while it owns the terminal.
func runDebug(env *cliEnv) error {
	provider := trackerProviderFactory(env.cfg)
	defer func() { _ = provider.Close() }()

	env.logger.SetConsoleEnabled(false)
	defer env.logger.SetConsoleEnabled(true)
	env.logger.Info("debug screen started")

	model := tui.NewModel(provider, tui.Config{
		Classifier: env.cfg.Classifier(),
		Poll:       env.cfg.PollInterval(),
	})
	if _, err := programFactory(model).Run(); err != nil {
		return fmt.Errorf("run debug screen: %w", err)
	}
	return nil
}

// runStatus prints the status report.
func runStatus(env *cliEnv, plain bool) error {
	report := env.reporter().Status(app.StatusInput{
		ConfigPath:       env.configPath,
		ConfigErr:        env.meta.Err,
		ConfigWarnings:   env.meta.Warnings,
		JournalDir:       env.paths.JournalDir,
		TransitionLogDir: env.paths.TransitionLogDir,
		Settings:         statusSettings(env.cfg),
	})
	if plain {
		_, _ = fmt.Fprintln(env.stdout, strings.Join(report.Lines(), "\n"))
		return nil
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("build markdown renderer: %w", err)
	}
	out, err := renderer.Render(report.Markdown())
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}
	_, _ = fmt.Fprint(env.stdout, out)
	return nil
}

// statusSettings lists the settings shown in status output.
func statusSettings(cfg config.Config) []app.Setting {
	return []app.Setting{
		{Key: "threshold_seconds", Value: strconv.Itoa(cfg.ThresholdSeconds)},
		{Key: "poll_seconds", Value: strconv.FormatFloat(cfg.PollSeconds, 'g', -1, 64)},
		{Key: "journal_heartbeat_seconds", Value: strconv.Itoa(cfg.JournalHeartbeatSeconds)},
		{Key: "treat_inhibitor_as_activity", Value: strconv.FormatBool(cfg.TreatInhibitorAsActivity)},
		{Key: "daily_target_minutes", Value: strconv.Itoa(cfg.Summary.DailyTargetMinutes)},
		{Key: "week_start", Value: string(cfg.Summary.WeekStart)},
	}
}

// runSummary prints one period summary.
func runSummary(env *cliEnv, raw string) error {
	period, err := app.ParsePeriod(raw)
	if err != nil {
		return err
	}
	summary, err := env.reporter().Summary(period)
	if err != nil {
		return fmt.Errorf("summarize %s: %w", period, err)
	}
	_, _ = fmt.Fprintln(env.stdout, summary.String())
	return nil
}

// runHistory lists indexed days.
func runHistory(ctx context.Context, env *cliEnv, limit int) error {
	repo, err := env.openIndex()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	entries, err := app.History(ctx, repo, limit)
	if err != nil {
		return fmt.Errorf("list day index: %w", err)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(env.stdout, "no indexed days (run `idle-ledger reindex`)")
		return nil
	}
	for _, entry := range entries {
		_, _ = fmt.Fprintf(env.stdout, "%s  activity %s  break %s  blocks %d\n",
			entry.Day, app.FormatHM(entry.Totals.ActivitySeconds), app.FormatHM(entry.Totals.BreakSeconds), entry.BlockCount)
	}
	return nil
}

// runReindex rebuilds the day index.
func runReindex(ctx context.Context, env *cliEnv) error {
	repo, err := env.openIndex()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	n, err := app.Reindex(ctx, env.journalStore(), repo, time.Now())
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	_, _ = fmt.Fprintf(env.stdout, "reindexed %d days into %s\n", n, env.paths.IndexDBPath)
	return nil
}

// runServe serves the read-only API until ctx is canceled.
func runServe(ctx context.Context, env *cliEnv, bind string) error {
	if strings.TrimSpace(bind) == "" {
		bind = env.cfg.Server.Bind
	}
	cfg := server.Config{
		HTTPBind:      bind,
		ServerName:    platform.AppName,
		ServerVersion: version,
	}
	env.logger.Info("serving", "bind", bind, "journal_dir", env.paths.JournalDir)
	if err := serveCommandRunner(ctx, cfg, env.reporter()); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// runInit writes the default config when missing and creates the data directories.
func runInit(env *cliEnv) error {
	created, err := config.EnsureDefaultFile(env.configPath)
	if err != nil {
		return err
	}
	for _, dir := range []string{env.paths.JournalDir, env.paths.TransitionLogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	if created {
		_, _ = fmt.Fprintf(env.stdout, "created config: %s\n", env.configPath)
	} else {
		_, _ = fmt.Fprintf(env.stdout, "config exists: %s\n", env.configPath)
	}
	_, _ = fmt.Fprintf(env.stdout, "data dir: %s\n", env.paths.DataDir)
	return nil
}

// printPaths prints the resolved locations.
func printPaths(env *cliEnv) {
	_, _ = fmt.Fprintf(env.stdout, "app: %s\n", platform.AppName)
	_, _ = fmt.Fprintf(env.stdout, "dev_mode: %t\n", env.flags.devMode)
	_, _ = fmt.Fprintf(env.stdout, "config: %s\n", env.configPath)
	_, _ = fmt.Fprintf(env.stdout, "data_dir: %s\n", env.paths.DataDir)
	_, _ = fmt.Fprintf(env.stdout, "journal_dir: %s\n", env.paths.JournalDir)
	_, _ = fmt.Fprintf(env.stdout, "logs_dir: %s\n", env.paths.TransitionLogDir)
	_, _ = fmt.Fprintf(env.stdout, "index_db: %s\n", env.paths.IndexDBPath)
}

// parseBoolEnv reads a boolean env var; ok is false when unset or malformed.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
