package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"compass/internal/cache"
	"compass/internal/correlate"
	"compass/internal/engine"
	"compass/internal/history"
	"compass/internal/notify"
	"compass/internal/record"
	"compass/internal/refresh"
	"compass/internal/runlog"
	"compass/internal/settings"
	"compass/internal/workspace"
)

const appName = "compass"

func main() {
	flag.String("workspace", "", "Path to workspace root")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: strategic intelligence analytics\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init       Initialize a new workspace")
		fmt.Fprintln(os.Stderr, "  clusters   Group issues into theme clusters")
		fmt.Fprintln(os.Stderr, "  health     Compute the composite health score")
		fmt.Fprintln(os.Stderr, "  alerts     Evaluate threshold alerts")
		fmt.Fprintln(os.Stderr, "  forecast   Project the portfolio ROI")
		fmt.Fprintln(os.Stderr, "  correlate  Correlate a cluster or initiative")
		fmt.Fprintln(os.Stderr, "  insights   Compose the executive summary")
		fmt.Fprintln(os.Stderr, "  settings   Show or update settings")
		fmt.Fprintln(os.Stderr, "  watch      Refresh on an interval")
		fmt.Fprintln(os.Stderr, "  runs       Show recent engine runs")
		fmt.Fprintln(os.Stderr, "  help       Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	workspacePath, remaining, err := extractWorkspaceFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	commands := map[string]func([]string, string) error{
		"init":      runInit,
		"clusters":  runClusters,
		"health":    runHealth,
		"alerts":    runAlerts,
		"forecast":  runForecast,
		"correlate": runCorrelate,
		"insights":  runInsights,
		"settings":  runSettings,
		"watch":     runWatch,
		"runs":      runRuns,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err := cmd(args[1:], workspacePath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func extractWorkspaceFlag(args []string) (string, []string, error) {
	var workspacePath string
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--workspace" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--workspace requires a value")
			}
			workspacePath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--workspace=") {
			workspacePath = strings.TrimPrefix(arg, "--workspace=")
			continue
		}
		remaining = append(remaining, arg)
	}
	return workspacePath, remaining, nil
}

// engineOptions carries the per-command flags shared by every analytics
// command.
type engineOptions struct {
	fresh   bool
	verbose bool
}

func (o *engineOptions) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.fresh, "fresh", false, "Bypass the result cache for this run")
	fs.BoolVar(&o.verbose, "verbose", false, "Verbose logging")
}

type openedEngine struct {
	Workspace *workspace.Workspace
	Engine    *engine.Engine
	Settings  settings.Settings
	Logger    *zap.Logger
	closers   []func() error
}

func (o *openedEngine) Close() {
	for _, fn := range o.closers {
		_ = fn()
	}
	_ = o.Logger.Sync()
}

// openEngine resolves the workspace and wires the engine with its cache,
// history store, and run log. With opts.fresh the cache stays closed, so
// every sub-engine recomputes from the live records.
func openEngine(workspacePath string, opts engineOptions) (*openedEngine, error) {
	if strings.TrimSpace(workspacePath) == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	ws, err := workspace.Resolve(workspacePath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(opts.verbose)
	cfg, warnings := settings.Load(ws.SettingsPath)

	opened := &openedEngine{Workspace: ws, Settings: cfg, Logger: logger}

	var resultCache *cache.Cache
	if !opts.fresh {
		resultCache, err = cache.Open(ws.CacheDBPath)
		if err != nil {
			logger.Warn("cache unavailable", zap.Error(err))
		} else {
			opened.closers = append(opened.closers, resultCache.Close)
		}
	}

	store, err := history.Open(ws.HistoryDBPath)
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		store = nil
	} else {
		opened.closers = append(opened.closers, store.Close)
	}

	opened.Engine = engine.New(engine.Config{
		Repo:             record.NewDirRepository(ws.RecordsDir),
		Settings:         cfg,
		SettingsWarnings: warnings,
		History:          store,
		Cache:            resultCache,
		RunLog:           runlog.NewLogger(ws.RunLogDBPath),
		Logger:           logger,
	})
	return opened, nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

func runClusters(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	return printJSON(opened.Engine.Clusters(context.Background()))
}

func runHealth(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	return printJSON(opened.Engine.HealthScore(context.Background()))
}

func runAlerts(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("alerts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	return printJSON(opened.Engine.Alerts(context.Background()))
}

func runForecast(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	return printJSON(opened.Engine.ROIForecast(context.Background()))
}

func runCorrelate(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("correlate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	entityType := fs.String("type", "cluster", "Entity type: cluster or initiative")
	entityID := fs.String("id", "", "Entity ID or cluster label")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*entityID) == "" {
		return fmt.Errorf("--id is required")
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	res := opened.Engine.Correlations(context.Background(), *entityID, correlate.EntityType(*entityType))
	return printJSON(res)
}

func runInsights(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	return printJSON(opened.Engine.Insights(context.Background()))
}

func runSettings(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s settings: missing subcommand (show, diff, write)", appName)
	}

	switch args[0] {
	case "show":
		return runSettingsShow(args[1:], workspacePath)
	case "diff":
		return runSettingsDiff(args[1:], workspacePath)
	case "write":
		return runSettingsWrite(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s settings: unknown subcommand %q", appName, args[0])
	}
}

func runSettingsShow(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}

	cfg, warnings := settings.Load(ws.SettingsPath)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	rendered, err := settings.Render(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, string(rendered))
	return nil
}

// runSettingsDiff previews what a normalizing write would change, without
// touching the file.
func runSettingsDiff(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("settings diff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}

	cfg, warnings := settings.Load(ws.SettingsPath)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	diff, err := settings.PreviewDiff(ws.SettingsPath, cfg)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(os.Stdout, "settings.yml is already normalized")
		return nil
	}
	fmt.Fprint(os.Stdout, diff)
	return nil
}

func runSettingsWrite(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("settings write", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}

	cfg, warnings := settings.Load(ws.SettingsPath)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if err := settings.Write(ws.SettingsPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", ws.SettingsPath)
	return nil
}

func runWatch(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts engineOptions
	opts.register(fs)
	interval := fs.Duration("interval", 0, "Refresh interval (default from settings)")
	notifyFlag := fs.Bool("notify", false, "Print notifications for new alerts")
	once := fs.Bool("once", false, "Run a single refresh and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opened, err := openEngine(workspacePath, opts)
	if err != nil {
		return err
	}
	defer opened.Close()

	tickInterval := *interval
	if tickInterval <= 0 {
		tickInterval = time.Duration(opened.Settings.RefreshIntervalMinutes) * time.Minute
	}

	runner := &refresh.Runner{
		Engine:     opened.Engine,
		Interval:   tickInterval,
		Logger:     opened.Logger,
		Notifier:   &notify.Notifier{Enabled: *notifyFlag, Out: os.Stdout},
		RecordsDir: opened.Workspace.RecordsDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		runner.Tick(ctx)
		return nil
	}
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runRuns(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Number of runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}

	entries, err := runlog.NewLogger(ws.RunLogDBPath).Recent(*limit)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func runInit(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	template := fs.String("template", "minimal", "Workspace template (default: minimal)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *template != "minimal" {
		return fmt.Errorf("unknown template: %s", *template)
	}
	if strings.TrimSpace(workspacePath) == "" {
		return fmt.Errorf("--workspace is required")
	}

	root, err := workspace.ResolveRoot(workspacePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return err
	}
	if err := ws.EnsureDirs(); err != nil {
		return err
	}

	if err := writeFileIfMissing(filepath.Join(ws.RecordsDir, record.IssuesFile), minimalIssuesTemplate); err != nil {
		return err
	}
	if err := writeFileIfMissing(filepath.Join(ws.RecordsDir, record.InitiativesFile), minimalInitiativesTemplate); err != nil {
		return err
	}
	if err := writeFileIfMissing(filepath.Join(ws.RecordsDir, record.TeamsFile), minimalTeamsTemplate); err != nil {
		return err
	}
	if _, err := os.Stat(ws.SettingsPath); os.IsNotExist(err) {
		if err := settings.Write(ws.SettingsPath, settings.Defaults()); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "Initialized workspace: %s\n", ws.Root)
	fmt.Fprintln(os.Stdout, "Next steps:")
	fmt.Fprintf(os.Stdout, "  %s insights --workspace %s\n", appName, ws.Root)
	fmt.Fprintf(os.Stdout, "  %s alerts --workspace %s\n", appName, ws.Root)
	fmt.Fprintf(os.Stdout, "  %s watch --workspace %s --notify\n", appName, ws.Root)
	return nil
}

func resolveWorkspace(workspacePath string) (*workspace.Workspace, error) {
	if strings.TrimSpace(workspacePath) == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	return workspace.Resolve(workspacePath)
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

const minimalIssuesTemplate = `kind: issues
issues:
  - issue_id: issue-1
    description: Release pipeline rebuilds every service on each deploy
    category: Delivery
    department: Engineering
    keywords: [pipeline, deploys]
    votes: 12
    heatmap_score: 74
    created_at: 2026-01-10
  - issue_id: issue-2
    description: Pipeline configuration is copied by hand between environments
    category: Delivery
    department: Engineering
    keywords: [pipeline, staging]
    votes: 7
    heatmap_score: 58
    created_at: 2026-01-18
`

const minimalInitiativesTemplate = `kind: initiatives
initiatives:
  - initiative_id: init-1
    title: Rebuild the release pipeline
    status: in_progress
    phase: EXECUTE
    owner_id: jordan
    progress: 40
    timeline_start: 2026-01-05
    timeline_end: 2026-03-31
    budget: 50000
    spent: 18000
    projected_roi: 22
    addresses_issues: [issue-1, issue-2]
    assignments:
      - team_id: team-platform
        role: lead
        hours_allocated: 30
`

const minimalTeamsTemplate = `kind: teams
teams:
  - team_id: team-platform
    name: Platform
    department: Engineering
    capacity: 120
`
