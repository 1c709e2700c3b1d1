package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pevans/defrumours"
	"github.com/pevans/defrumours/api"
	"github.com/pevans/defrumours/config"
	"github.com/pevans/defrumours/fetch"
	"github.com/pevans/defrumours/history"
	"github.com/pevans/defrumours/mail"
	"github.com/pevans/defrumours/output"
)

// Exit codes.
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

// run is split out from main so the command can be tested without spawning
// a process. It returns 0 on success, 2 for usage or configuration errors
// and 1 for runtime failures.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "run":
		return runCommand(ctx, args[1:], stdout, stderr)
	case "watch":
		return watchCommand(ctx, args[1:], stderr)
	case "serve":
		return serveCommand(ctx, args[1:], stderr)
	case "history":
		return historyCommand(ctx, args[1:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Error: unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "defrumours - Defender transfer rumour scraper")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  defrumours <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run        Scrape once and write the results")
	fmt.Fprintln(w, "  watch      Scrape now and then on a fixed interval")
	fmt.Fprintln(w, "  serve      Serve the latest results over HTTP")
	fmt.Fprintln(w, "  history    List recorded runs")
	fmt.Fprintln(w, "  help       Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  DEFRUMOURS_CONFIG  Path to the YAML config file (default: defrumours.yaml)")
	fmt.Fprintln(w, "  COMPETITION        Competition code (default: L1)")
	fmt.Fprintln(w, "  SEASON_ID          Season (default: 2025)")
	fmt.Fprintln(w, "  ENRICH_PROFILES    Fetch player profiles (default: false)")
	fmt.Fprintln(w, "  ENRICH_DELAY       Pause between profile fetches (default: 2s)")
	fmt.Fprintln(w, "  OUT_DIR            Output directory (default: out)")
	fmt.Fprintln(w, "  HISTORY_DSN        SQLite database for the run log (default: none)")
	fmt.Fprintln(w, "  MAIL_TO            Comma separated mail recipients (default: none)")
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// settingsFlags are the flags shared by every command that loads settings.
// Flags the user sets override the config file and the environment.
type settingsFlags struct {
	fs          *flag.FlagSet
	configPath  *string
	envPath     *string
	competition *string
	season      *string
	enrich      *bool
	delay       *time.Duration
	out         *string
	historyDSN  *string
	mailTo      *string
	verbose     *bool
}

func addSettingsFlags(fs *flag.FlagSet) *settingsFlags {
	defaults := config.Default()
	return &settingsFlags{
		fs:          fs,
		configPath:  fs.String("config", getEnv("DEFRUMOURS_CONFIG", config.DefaultFile), "Path to YAML config file (DEFRUMOURS_CONFIG)"),
		envPath:     fs.String("env", config.DefaultDotEnv, "Path to .env file"),
		competition: fs.String("competition", defaults.Competition, "Competition code (COMPETITION)"),
		season:      fs.String("season", defaults.Season, "Season id (SEASON_ID)"),
		enrich:      fs.Bool("enrich", defaults.Enrich.Enabled, "Fetch player profiles for extra fields (ENRICH_PROFILES)"),
		delay:       fs.Duration("delay", defaults.Enrich.Delay, "Minimum pause between profile fetches (ENRICH_DELAY)"),
		out:         fs.String("out", defaults.OutDir, "Output directory (OUT_DIR)"),
		historyDSN:  fs.String("history", "", "SQLite database for the run log (HISTORY_DSN)"),
		mailTo:      fs.String("mail-to", "", "Comma separated mail recipients (MAIL_TO)"),
		verbose:     fs.Bool("v", false, "Verbose (debug) logging"),
	}
}

// load builds the settings: defaults, config file, .env, environment and
// finally any flag set on the command line.
func (f *settingsFlags) load() (config.Config, error) {
	cfg, err := config.Load(*f.configPath, *f.envPath)
	if err != nil {
		return cfg, err
	}

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "competition":
			cfg.Competition = *f.competition
		case "season":
			cfg.Season = *f.season
		case "enrich":
			cfg.Enrich.Enabled = *f.enrich
		case "delay":
			cfg.Enrich.Delay = *f.delay
		case "out":
			cfg.OutDir = *f.out
		case "history":
			cfg.HistoryDSN = *f.historyDSN
		case "mail-to":
			cfg.Mail.To = config.SplitList(*f.mailTo)
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app bundles a configured service and what it needs closed afterwards.
type app struct {
	cfg     config.Config
	service *defrumours.Service
	writer  *output.Writer
	store   *history.Store
	logger  *slog.Logger
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) options() defrumours.Options {
	return defrumours.Options{
		URL:         a.cfg.ListingURL(),
		Competition: a.cfg.Competition,
		Season:      a.cfg.Season,
		Enrich:      a.cfg.Enrich.Enabled,
	}
}

// newApp wires the service for cfg. A non-empty listingFile is read instead
// of fetching the listing page.
func newApp(cfg config.Config, listingFile string, logger *slog.Logger) (*app, error) {
	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Timeout = cfg.Fetch.Timeout
	fetchCfg.Retries = cfg.Fetch.Retries
	fetchCfg.Referer = cfg.BaseURL
	var fetcher fetch.Fetcher = fetch.NewClient(fetchCfg, logger)
	if listingFile != "" {
		fetcher = localListing(listingFile, cfg.ListingURL(), fetcher)
	}

	writer, err := output.NewWriter(cfg.OutDir)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, writer: writer, logger: logger}
	svcCfg := defrumours.ServiceConfig{
		Fetcher:     fetcher,
		Writer:      writer,
		EnrichDelay: cfg.Enrich.Delay,
		Logger:      logger,
	}

	if cfg.HistoryDSN != "" {
		store, err := history.NewStore(cfg.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		a.store = store
		svcCfg.History = store
	}

	if cfg.Mail.Enabled() {
		svcCfg.Mailer = mail.NewSender(mail.Settings{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
		}, logger)
	}

	a.service, err = defrumours.NewService(svcCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// localListing serves the listing URL from a file and everything else (the
// profile pages) from next.
func localListing(path, listingURL string, next fetch.Fetcher) fetch.Fetcher {
	return fetch.Func(func(ctx context.Context, url string) ([]byte, error) {
		if url != listingURL {
			return next.Fetch(ctx, url)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read listing file: %w", err)
		}
		return data, nil
	})
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	settings := addSettingsFlags(fs)
	htmlPath := fs.String("html", "", "Read the listing from a local HTML file instead of fetching it")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := settings.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	logger := newLogger(stderr, *settings.verbose)

	a, err := newApp(cfg, *htmlPath, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}
	defer a.Close()

	result, err := a.service.Run(ctx, a.options())
	if err != nil {
		logger.ErrorContext(ctx, "run failed", "error", err, "transient", fetch.IsTransient(err))
		return exitRuntime
	}

	fmt.Fprintf(stdout, "Found %d defender rumours (%d rows)\n", result.Results.Count, result.Page.TotalRows)
	fmt.Fprintf(stdout, "  JSON: %s\n", a.writer.Path(output.ResultFile))
	fmt.Fprintf(stdout, "  HTML: %s\n", a.writer.Path(output.HTMLFile))
	if result.NeedsDiagnostics {
		fmt.Fprintf(stdout, "  Diagnostics: %s, %s\n",
			a.writer.Path(output.DebugHTMLFile), a.writer.Path(output.RowsFile))
	}
	return exitOK
}

func watchCommand(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	settings := addSettingsFlags(fs)
	every := fs.Duration("every", 6*time.Hour, "Interval between runs")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *every <= 0 {
		fmt.Fprintln(stderr, "Error: -every must be positive")
		return exitUsage
	}

	cfg, err := settings.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	logger := newLogger(stderr, *settings.verbose)

	a, err := newApp(cfg, "", logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}
	defer a.Close()

	if err := a.service.Watch(ctx, a.options(), *every); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watch failed", "error", err)
		return exitRuntime
	}
	return exitOK
}

func serveCommand(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	settings := addSettingsFlags(fs)
	listen := fs.String("listen", "", "Address to listen on (LISTEN_ADDR, default :8080)")
	every := fs.Duration("every", 0, "Also scrape on this interval (0 disables)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := settings.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	logger := newLogger(stderr, *settings.verbose)

	a, err := newApp(cfg, "", logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}
	defer a.Close()

	var runs api.RunLister
	if a.store != nil {
		runs = a.store
	}
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewAPIServer(a.writer, runs).SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var background func(context.Context)
	if *every > 0 {
		background = func(ctx context.Context) {
			_ = a.service.Watch(ctx, a.options(), *every)
		}
	}

	logger.Info("serving results", "addr", cfg.Listen, "dir", a.writer.Dir())
	if err := serve(ctx, server, background); err != nil {
		logger.Error("server failed", "error", err)
		return exitRuntime
	}
	return exitOK
}

// serve runs server until ctx is done or the listener fails. background, if
// set, runs alongside it and has returned by the time serve does, so the
// caller can release what it uses.
func serve(ctx context.Context, server *http.Server, background func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if background != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			background(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func historyCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dsn := fs.String("history", getEnv(config.EnvHistoryDSN, ""), "SQLite database for the run log (HISTORY_DSN)")
	limit := fs.Int("limit", 20, "Maximum number of runs to show (0 for all)")
	asJSON := fs.Bool("json", false, "Print runs as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *dsn == "" {
		fmt.Fprintln(stderr, "Error: -history or HISTORY_DSN is required")
		return exitUsage
	}

	store, err := history.NewStore(*dsn)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open history store: %v\n", err)
		return exitRuntime
	}
	defer store.Close()

	runs, err := store.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			fmt.Fprintf(stderr, "Error: failed to marshal JSON: %v\n", err)
			return exitRuntime
		}
		return exitOK
	}

	printRunsTable(stdout, runs)
	return exitOK
}

// printRunsTable prints runs in human-readable table format
func printRunsTable(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-20s  %-11s  %-6s  %5s  %5s  %s\n", "GENERATED (UTC)", "COMPETITION", "SEASON", "ROWS", "ITEMS", "DIAG")
	for _, r := range runs {
		diag := ""
		if r.Diagnostics {
			diag = "yes"
		}
		fmt.Fprintf(w, "%-20s  %-11s  %-6s  %5d  %5d  %s\n",
			r.GeneratedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Competition, r.Season, r.TotalRows, r.Count, diag)
	}
}
