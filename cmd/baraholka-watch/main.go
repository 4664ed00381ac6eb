package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/api"
	"github.com/baraholka-watch/baraholka-watch/internal/lockfile"
	"github.com/baraholka-watch/baraholka-watch/internal/notify"
	"github.com/baraholka-watch/baraholka-watch/internal/pipeline"
	"github.com/baraholka-watch/baraholka-watch/internal/scheduler"
	"github.com/baraholka-watch/baraholka-watch/internal/scrape"
	"github.com/baraholka-watch/baraholka-watch/internal/store"
	"github.com/baraholka-watch/baraholka-watch/internal/telegram"
	"github.com/baraholka-watch/baraholka-watch/internal/twiliosms"
	"github.com/baraholka-watch/baraholka-watch/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for baraholka-watch state data
	DefaultStateDir = "/var/lib/baraholka-watch"
	// DefaultStateFileName is the default JSON dedup state filename
	DefaultStateFileName = "sent_ads.json"
	// DefaultListingURL is the newest-first furniture category on yarmarka.ge
	DefaultListingURL = "https://yarmarka.ge/goods/c_2438/0/0?sort=new"
	// DefaultIntervalMinutes is the scheduled poll period
	DefaultIntervalMinutes = 30
	// DefaultRetentionDays is how long dedup records are kept
	DefaultRetentionDays = 7
	// DefaultTimeoutSeconds is the per-request scrape timeout
	DefaultTimeoutSeconds = 30
	// DefaultSelfTestTimeout bounds the startup notification transport check
	DefaultSelfTestTimeout = 30 * time.Second
	// DefaultShutdownTimeout bounds the API server drain on shutdown
	DefaultShutdownTimeout = 5 * time.Second
)

// Notification transport names selected via NOTIFY_TRANSPORT
const (
	TransportTelegram  = "telegram"
	TransportTwilioSMS = "twilio-sms"
)

func main() {
	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags (defaults come from the environment)
	flags := parseCommandLineFlags(config)

	// Initialize structured logging before any real work
	if err := initializeLogger(*flags.logLevel, config.LogFile); err != nil {
		slog.Error("Failed to initialize logging", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting baraholka-watch",
		"urls", len(config.ListingURLs),
		"transport", config.NotifyTransport,
		"interval_minutes", *flags.intervalMinutes,
		"dry_run", *flags.dryRun)

	if err := run(config, flags); err != nil {
		slog.Error("baraholka-watch failed", "error", err)
		os.Exit(1)
	}
	slog.Info("baraholka-watch exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken        string
	ChatID          string
	IntervalMinutes int
	ListingURLs     []string
	SearchKeywords  string
	StateFile       string
	StateDSN        string
	StateDir        string
	RetentionDays   int
	HTTPTimeoutSecs int
	ResolveWorkers  int
	LogLevel        string
	LogFile         string
	APIAddr         string
	NotifyTransport string
	TwilioToNumber  string
}

// Flags holds command line flag values
type Flags struct {
	once            *bool
	dryRun          *bool
	testConnection  *bool
	resetState      *bool
	stats           *bool
	stateFile       *string
	stateDir        *string
	intervalMinutes *int
	apiAddr         *string
	logLevel        *string
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		ChatID:          os.Getenv("CHAT_ID"),
		IntervalMinutes: util.ParseIntEnv("CHECK_INTERVAL_MINUTES", DefaultIntervalMinutes),
		SearchKeywords:  os.Getenv("SEARCH_KEYWORDS"),
		StateFile:       os.Getenv("STATE_FILE"),
		StateDSN:        os.Getenv("STATE_DSN"),
		StateDir:        os.Getenv("BARAHOLKA_STATE_DIR"),
		RetentionDays:   util.ParseIntEnv("RETENTION_DAYS", DefaultRetentionDays),
		HTTPTimeoutSecs: util.ParseIntEnv("HTTP_TIMEOUT_SECONDS", DefaultTimeoutSeconds),
		ResolveWorkers:  util.ParseIntEnv("RESOLVE_WORKERS", pipeline.DefaultResolveWorkers),
		LogLevel:        os.Getenv("LOGGING_LEVEL"),
		LogFile:         os.Getenv("LOG_FILE"),
		APIAddr:         os.Getenv("API_ADDR"),
		NotifyTransport: os.Getenv("NOTIFY_TRANSPORT"),
		TwilioToNumber:  os.Getenv("TWILIO_TO_NUMBER"),
	}

	// The multi-URL variable takes precedence over the single-URL one
	if urls := util.SplitList(os.Getenv("YARMARKA_URLS")); len(urls) > 0 {
		config.ListingURLs = urls
	} else if url := os.Getenv("YARMARKA_URL"); url != "" {
		config.ListingURLs = []string{url}
	} else {
		config.ListingURLs = []string{DefaultListingURL}
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BARAHOLKA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("BARAHOLKA_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// Default the state file into the state directory
	if config.StateFile == "" {
		config.StateFile = filepath.Join(config.StateDir, DefaultStateFileName)
		slog.Debug("No STATE_FILE set, using default", "state_file", config.StateFile)
	}

	if config.NotifyTransport == "" {
		config.NotifyTransport = TransportTelegram
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	slog.Debug("environment variables loaded",
		"BOT_TOKEN_set", config.BotToken != "",
		"CHAT_ID_set", config.ChatID != "",
		"CHECK_INTERVAL_MINUTES", config.IntervalMinutes,
		"YARMARKA_URL_count", len(config.ListingURLs),
		"SEARCH_KEYWORDS_set", config.SearchKeywords != "",
		"STATE_FILE", config.StateFile,
		"STATE_DSN_set", config.StateDSN != "",
		"BARAHOLKA_STATE_DIR", config.StateDir,
		"RETENTION_DAYS", config.RetentionDays,
		"HTTP_TIMEOUT_SECONDS", config.HTTPTimeoutSecs,
		"RESOLVE_WORKERS", config.ResolveWorkers,
		"LOGGING_LEVEL", config.LogLevel,
		"LOG_FILE_set", config.LogFile != "",
		"API_ADDR", config.APIAddr,
		"NOTIFY_TRANSPORT", config.NotifyTransport)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		once:            flag.Bool("once", false, "run a single poll cycle and exit"),
		dryRun:          flag.Bool("dry-run", false, "log would-be notifications without sending or recording them"),
		testConnection:  flag.Bool("test-connection", false, "verify the notification transport and exit"),
		resetState:      flag.Bool("reset-state", false, "clear the dedup state and exit"),
		stats:           flag.Bool("stats", false, "print dedup state statistics and exit"),
		stateFile:       flag.String("state-file", config.StateFile, "JSON dedup state path (overrides $STATE_FILE)"),
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for the lockfile and default state path (overrides $BARAHOLKA_STATE_DIR)"),
		intervalMinutes: flag.Int("interval-minutes", config.IntervalMinutes, "minutes between polls (overrides $CHECK_INTERVAL_MINUTES)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "diagnostics API address (overrides $API_ADDR)"),
		logLevel:        flag.String("log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $LOGGING_LEVEL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"once", *flags.once,
		"dryRun", *flags.dryRun,
		"testConnection", *flags.testConnection,
		"resetState", *flags.resetState,
		"stats", *flags.stats,
		"stateFile", *flags.stateFile,
		"stateDir", *flags.stateDir,
		"intervalMinutes", *flags.intervalMinutes,
		"apiAddr", *flags.apiAddr,
		"logLevel", *flags.logLevel)

	// Moving the state directory moves the default state file along with it
	if *flags.stateFile == config.StateFile && config.StateFile == filepath.Join(config.StateDir, DefaultStateFileName) && *flags.stateDir != config.StateDir {
		*flags.stateFile = filepath.Join(*flags.stateDir, DefaultStateFileName)
		slog.Debug("Updated state file based on state directory", "state_file", *flags.stateFile, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// initializeLogger sets up structured logging at the configured level. When
// a log file is configured, output is teed to it alongside stdout.
func initializeLogger(level, logFile string) error {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if logFile != "" {
		// The file handle stays open for the process lifetime
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		w = io.MultiWriter(os.Stdout, f)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

// run dispatches the selected mode after shared setup.
func run(config Config, flags Flags) error {
	st, err := buildStore(config, flags)
	if err != nil {
		return fmt.Errorf("failed to initialize dedup store: %w", err)
	}
	defer st.Close()

	if err := st.Load(); err != nil {
		return fmt.Errorf("failed to load dedup state: %w", err)
	}

	// Maintenance modes need only the store
	if *flags.resetState {
		if err := st.Reset(); err != nil {
			return fmt.Errorf("failed to reset dedup state: %w", err)
		}
		slog.Info("Dedup state reset")
		return nil
	}
	if *flags.stats {
		return printStats(st)
	}

	sink, err := buildNotificationSink(config)
	if err != nil {
		return fmt.Errorf("failed to initialize notification transport: %w", err)
	}

	// A transport that cannot identify itself cannot deliver; fail before
	// the first poll rather than during it.
	selfTestCtx, cancel := context.WithTimeout(context.Background(), DefaultSelfTestTimeout)
	identity, err := sink.TestConnection(selfTestCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("notification transport self-test failed: %w", err)
	}
	slog.Info("Notification transport ready", "identity", identity)
	if *flags.testConnection {
		return nil
	}

	orch, err := buildOrchestrator(config, flags, st, sink)
	if err != nil {
		return err
	}

	if *flags.once {
		return runOnce(orch)
	}
	return runScheduled(config, flags, orch, st)
}

// buildStore selects the dedup store backend. A DSN selects SQLite or
// PostgreSQL; otherwise the JSON file store is used.
func buildStore(config Config, flags Flags) (store.Store, error) {
	if config.StateDSN != "" {
		if store.DetectDSNType(config.StateDSN) == store.DSNTypePostgres {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			return store.NewPostgresStore(store.WithPostgresDSN(config.StateDSN))
		}
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", config.StateDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(config.StateDSN))
	}
	slog.Debug("No state DSN provided, using JSON file store", "state_file", *flags.stateFile)
	return store.NewFileStore(store.WithPath(*flags.stateFile))
}

// buildNotificationSink constructs the configured notification transport.
func buildNotificationSink(config Config) (notify.Service, error) {
	switch config.NotifyTransport {
	case TransportTwilioSMS:
		client, err := twiliosms.NewClient()
		if err != nil {
			return nil, err
		}
		return notify.NewTwilioSMSService(client, config.TwilioToNumber)
	case TransportTelegram:
		chatID, err := strconv.ParseInt(strings.TrimSpace(config.ChatID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHAT_ID must be a signed integer, got %q: %w", config.ChatID, err)
		}
		var opts []telegram.Option
		if config.BotToken != "" {
			opts = append(opts, telegram.WithToken(config.BotToken))
		}
		client, err := telegram.NewClient(opts...)
		if err != nil {
			return nil, err
		}
		return notify.NewTelegramService(client, chatID)
	default:
		return nil, fmt.Errorf("unknown notification transport %q", config.NotifyTransport)
	}
}

// buildOrchestrator wires the scrape, store and notify components into the
// polling pipeline.
func buildOrchestrator(config Config, flags Flags, st store.Store, sink notify.Service) (*pipeline.Orchestrator, error) {
	keywords := util.SplitList(config.SearchKeywords)
	filter, err := scrape.NewKeywordFilter(keywords)
	if err != nil {
		return nil, fmt.Errorf("SEARCH_KEYWORDS must contain at least one keyword: %w", err)
	}

	fetcher := scrape.NewHTTPPageFetcher(scrape.WithTimeout(time.Duration(config.HTTPTimeoutSecs) * time.Second))
	source := scrape.NewYarmarkaSource(fetcher)
	resolver := scrape.NewChatLinkResolver(fetcher)

	return pipeline.NewOrchestrator(source, filter, resolver, st, sink,
		pipeline.WithListingURLs(config.ListingURLs...),
		pipeline.WithRetention(time.Duration(config.RetentionDays)*24*time.Hour),
		pipeline.WithResolveWorkers(config.ResolveWorkers),
		pipeline.WithDryRun(*flags.dryRun),
	)
}

// printStats writes a human-readable dedup state summary to stdout.
func printStats(st store.Store) error {
	stats, err := st.Stats()
	if err != nil {
		return fmt.Errorf("failed to collect state statistics: %w", err)
	}

	fmt.Printf("Backend:        %s\n", stats.Backend)
	if stats.StatePath != "" {
		fmt.Printf("State path:     %s (exists: %v)\n", stats.StatePath, stats.FileExists)
	}
	fmt.Printf("Total records:  %d\n", stats.TotalRecords)
	fmt.Printf("Sent last 24h:  %d\n", stats.SentLast24h)
	if stats.OldestRecord != nil {
		fmt.Printf("Oldest record:  %s\n", stats.OldestRecord.Format(time.RFC3339))
	}
	if stats.NewestRecord != nil {
		fmt.Printf("Newest record:  %s\n", stats.NewestRecord.Format(time.RFC3339))
	}
	return nil
}

// runOnce executes a single poll cycle, honoring SIGINT/SIGTERM.
func runOnce(orch *pipeline.Orchestrator) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("polling run %s failed in state %s: %w", report.RunID, report.State, err)
	}
	slog.Info("Polling run completed",
		"run_id", report.RunID,
		"fetched", report.Fetched,
		"matched", report.Matched,
		"sent", report.Sent,
		"duplicates", report.Duplicates)
	return nil
}

// runScheduled polls on the configured interval until a shutdown signal
// arrives. The state directory lock guarantees a single instance.
func runScheduled(config Config, flags Flags, orch *pipeline.Orchestrator, st store.Store) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *api.Server
	if *flags.apiAddr != "" {
		srv = api.NewServer(orch, st, api.WithAddr(*flags.apiAddr))
		srv.Start()
	}

	interval := time.Duration(*flags.intervalMinutes) * time.Minute
	pollOnce := func() {
		// A run gets at most one interval, so a stuck run cannot stack
		// behind the next one.
		runCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		report, err := orch.Run(runCtx)
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			slog.Warn("Skipping poll, previous run still in progress")
		case errors.Is(err, context.Canceled):
			slog.Info("Poll cancelled during shutdown", "run_id", report.RunID)
		case err != nil:
			slog.Error("Poll failed", "error", err, "run_id", report.RunID, "state", report.State)
		default:
			slog.Info("Poll completed",
				"run_id", report.RunID,
				"fetched", report.Fetched,
				"matched", report.Matched,
				"sent", report.Sent,
				"duplicates", report.Duplicates,
				"pruned", report.Pruned)
		}
	}

	// First poll happens immediately; a fresh start should not wait out a
	// full interval.
	pollOnce()

	sched := scheduler.NewScheduler()
	if err := sched.AddJob(scheduler.EveryExpr(interval), pollOnce); err != nil {
		return fmt.Errorf("failed to schedule polling job: %w", err)
	}
	slog.Info("Polling scheduler started", "interval", interval.String(), "urls", len(config.ListingURLs))

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown failed", "error", err)
		}
	}
	return nil
}
