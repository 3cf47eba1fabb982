// visitbot is a WhatsApp bot that walks telecom field agents through a
// step-by-step visit report and stores the finished reports.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/telkomfield/visitbot/internal/api"
	"github.com/telkomfield/visitbot/internal/form"
	"github.com/telkomfield/visitbot/internal/gateway"
	"github.com/telkomfield/visitbot/internal/lockfile"
	"github.com/telkomfield/visitbot/internal/messaging"
	"github.com/telkomfield/visitbot/internal/scheduler"
	"github.com/telkomfield/visitbot/internal/session"
	"github.com/telkomfield/visitbot/internal/twiliowhatsapp"
	"github.com/telkomfield/visitbot/internal/util"
	"github.com/telkomfield/visitbot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for visitbot state data
	DefaultStateDir = "/var/lib/visitbot"
	// DefaultDBFileName is the default SQLite database filename for
	// submissions and sessions
	DefaultDBFileName = "visitbot.db"
	// DefaultWhatsmeowDBFileName is the default SQLite database filename
	// for the whatsmeow device store
	DefaultWhatsmeowDBFileName = "whatsmeow.db"
	// DefaultImageDirName is the default directory name for evidence photos
	DefaultImageDirName = "images"
	// TwilioWebhookPath is where inbound Twilio messages are received
	TwilioWebhookPath = "/webhook/twilio"
	// DefaultSweepSchedule runs the stale-session sweep every hour
	DefaultSweepSchedule = "0 * * * *"
	// DefaultSessionTTL is how long an untouched mid-form session lives
	// before the sweep resets it
	DefaultSessionTTL = 24 * time.Hour
)

// Config holds environment configuration
type Config struct {
	Channel        string
	StateDir       string
	DatabaseURL    string
	WhatsAppDSN    string
	ImageDir       string
	APIAddr        string
	MemorySessions bool
}

// Flags holds command line flag values
type Flags struct {
	channel        *string
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	dbDSN          *string
	whatsappDSN    *string
	imageDir       *string
	apiAddr        *string
	memorySessions *bool
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping visitbot", "channel", *flags.channel, "api_addr", *flags.apiAddr)
	if err := run(flags); err != nil {
		slog.Error("visitbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("visitbot exited successfully")
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Channel:        os.Getenv("VISITBOT_CHANNEL"),
		StateDir:       os.Getenv("VISITBOT_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		ImageDir:       os.Getenv("VISITBOT_IMAGE_DIR"),
		APIAddr:        os.Getenv("API_ADDR"),
		MemorySessions: util.ParseBoolEnv("VISITBOT_MEMORY_SESSIONS", false),
	}

	if config.Channel == "" {
		config.Channel = "whatsapp"
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No VISITBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = "file:" + filepath.Join(config.StateDir, DefaultWhatsmeowDBFileName) + "?_foreign_keys=on"
	}
	if config.ImageDir == "" {
		config.ImageDir = filepath.Join(config.StateDir, DefaultImageDirName)
	}

	slog.Debug("environment variables loaded",
		"VISITBOT_CHANNEL", config.Channel,
		"VISITBOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"VISITBOT_IMAGE_DIR", config.ImageDir,
		"API_ADDR", config.APIAddr,
		"VISITBOT_MEMORY_SESSIONS", config.MemorySessions)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		channel:        flag.String("channel", config.Channel, "message channel: whatsapp or twilio (overrides $VISITBOT_CHANNEL)"),
		qrOutput:       flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:        flag.Bool("numeric-code", false, "use numeric WhatsApp pairing code instead of QR code"),
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for visitbot data (overrides $VISITBOT_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for sessions and submissions (overrides $DATABASE_URL)"),
		whatsappDSN:    flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow device store (overrides $WHATSAPP_DB_DSN)"),
		imageDir:       flag.String("image-dir", config.ImageDir, "directory for evidence photos (overrides $VISITBOT_IMAGE_DIR)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		memorySessions: flag.Bool("memory-sessions", config.MemorySessions, "keep sessions in memory instead of SQLite (overrides $VISITBOT_MEMORY_SESSIONS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"channel", *flags.channel,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"imageDir", *flags.imageDir,
		"apiAddr", *flags.apiAddr,
		"memorySessions", *flags.memorySessions)

	return flags
}

// isPostgresDSN reports whether a DSN points at PostgreSQL rather than
// a SQLite file.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !isPostgresDSN(*flags.dbDSN) {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, gateway.DefaultDirPermissions); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	if err := os.MkdirAll(*flags.imageDir, gateway.DefaultDirPermissions); err != nil {
		slog.Error("Failed to create image directory", "error", err, "image_dir", *flags.imageDir)
		return err
	}
	return nil
}

// buildSessionStore picks the session backend from the flags.
func buildSessionStore(flags Flags) (session.Store, error) {
	if *flags.memorySessions {
		slog.Debug("Using in-memory session store")
		return session.NewMemoryStore(), nil
	}
	dsn := *flags.dbDSN
	if isPostgresDSN(dsn) {
		// Sessions stay in a local SQLite file even when submissions go
		// to PostgreSQL: they are per-instance scratch state.
		dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Submissions DSN is PostgreSQL, keeping sessions in local SQLite", "session_db", dsn)
	}
	slog.Debug("Using SQLite session store", "db_path", dsn)
	store, err := session.NewSQLiteStore(dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// submissionGateway is the combined surface the wiring needs from a
// gateway backend.
type submissionGateway interface {
	form.Gateway
	api.SubmissionLister
	Close() error
}

// buildGateway picks the submission backend from the flags.
func buildGateway(flags Flags) (submissionGateway, error) {
	if isPostgresDSN(*flags.dbDSN) {
		slog.Debug("Using PostgreSQL submission gateway", "dsn_set", true)
		gw, err := gateway.NewPostgresGateway(*flags.dbDSN, *flags.imageDir)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
	slog.Debug("Using SQLite submission gateway", "db_path", *flags.dbDSN)
	gw, err := gateway.NewSQLiteGateway(*flags.dbDSN, *flags.imageDir)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// buildMessagingService constructs the transport for the chosen channel.
func buildMessagingService(flags Flags) (messaging.Service, *messaging.TwilioService, error) {
	switch *flags.channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc, nil
	default:
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithStoreDSN(*flags.whatsappDSN))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	}
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	sessions, err := buildSessionStore(flags)
	if err != nil {
		return err
	}

	gw, err := buildGateway(flags)
	if err != nil {
		return err
	}
	defer gw.Close()

	svc, twilioSvc, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	router := messaging.NewRouter(svc, nil)
	stepper := form.NewStepper(form.DefaultPlan(), sessions, gw, router)
	router.SetHandler(stepper)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if twilioSvc != nil {
		apiOpts = append(apiOpts, api.WithWebhook(TwilioWebhookPath, twilioSvc.WebhookHandler))
	}
	server := api.NewServer(sessions, gw, stepper, apiOpts...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(DefaultSweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := sessions.SweepIdle(sweepCtx, time.Now().Add(-DefaultSessionTTL)); err != nil {
			slog.Error("Stale session sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if err := router.Start(ctx); err != nil {
		return err
	}
	server.Start()

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	if err := router.Stop(); err != nil {
		slog.Error("Router shutdown failed", "error", err)
	}
	return nil
}
