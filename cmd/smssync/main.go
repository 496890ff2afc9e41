package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kauri-edtech/smssync/internal/app"
	"github.com/kauri-edtech/smssync/internal/backupclient"
	"github.com/kauri-edtech/smssync/internal/config"
	"github.com/kauri-edtech/smssync/internal/db"
	"github.com/kauri-edtech/smssync/internal/jobs"
	"github.com/kauri-edtech/smssync/internal/logging"
	"github.com/kauri-edtech/smssync/internal/notify"
	"github.com/kauri-edtech/smssync/internal/observability"
	"github.com/kauri-edtech/smssync/internal/sms"
)

var version = "dev"

func main() {
	restoreLatest := flag.Bool("restore-latest", false, "restore the newest database backup and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()
	logger := lg.Sugar

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warnw("sentry init failed", "err", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *restoreLatest {
		bc := backupclient.FromEnv()
		if bc == nil {
			logger.Fatalw("restore requested but BACKUPCTL_URL is not set")
		}
		out, err := bc.RestoreLatest(ctx)
		if err != nil {
			logger.Fatalw("restore failed", "err", err)
		}
		logger.Infow("restore finished", "result", out)
		return
	}

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("db open failed", "err", err)
	}
	defer func() { _ = database.Close() }()
	if err := db.Migrate(database); err != nil {
		logger.Fatalw("db migrate failed", "err", err)
	}

	store := db.NewStore(database)

	tg, err := notify.NewTelegram(cfg.BotToken, cfg.AdminChatIDs, logger)
	if err != nil {
		logger.Warnw("telegram disabled", "err", err)
	}
	var notifier sms.Notifier
	if tg != nil {
		notifier = tg
	}

	notifyErrors := make(map[string]bool, len(cfg.NotifyErrors))
	for _, code := range cfg.NotifyErrors {
		notifyErrors[code] = true
	}

	source := sms.NewClient(store, nil, cfg.Safeguard, cfg.UserFields)
	orch := sms.NewOrchestrator(store, source, notifier, sms.Config{
		CourseID:      cfg.CourseID,
		ProfileFields: cfg.UserFields,
		GenderOptions: cfg.GenderOptions,
		NotifyErrors:  notifyErrors,
	}, logger)

	runner := jobs.New(ctx, logger)
	runner.Every(cfg.ImportInterval, "import", orch.RunImport)
	runner.Every(cfg.CleanupInterval, "cleanup", orch.RunCleanup)
	if bc := backupclient.FromEnv(); bc != nil {
		runner.Every(24*time.Hour, "backup", func(ctx context.Context) error {
			out, err := bc.TriggerBackup(ctx)
			if err == nil {
				logger.Infow("backup triggered", "result", out)
			}
			return err
		})
	}

	app.StartHTTP(ctx, cfg.HTTPAddr, app.Deps{
		DB:            database,
		Store:         store,
		Orch:          orch,
		ProfileFields: cfg.UserFields,
		Location:      cfg.Location,
		Log:           logger,
	})

	logger.Infow("smssync started",
		"addr", cfg.HTTPAddr, "env", cfg.Env,
		"import_interval", cfg.ImportInterval, "cleanup_interval", cfg.CleanupInterval)

	<-ctx.Done()
	logger.Infow("shutting down")
}
