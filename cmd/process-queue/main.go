// Command process-queue runs a single queue-processing pass and exits. An
// external cron invokes it on whatever cadence the operator wants; there is
// no in-process scheduler anywhere in the system.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hearthside/mailroom/internal/config"
	"github.com/hearthside/mailroom/internal/mailer"
	"github.com/hearthside/mailroom/internal/pkg/distlock"
	"github.com/hearthside/mailroom/internal/pkg/logger"
	"github.com/hearthside/mailroom/internal/queue"
	"github.com/hearthside/mailroom/internal/repository/postgres"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		logger.Error("database url is required (config database.url or DATABASE_URL)")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping database", "error", err)
		os.Exit(1)
	}

	sender, err := buildSender(ctx, cfg.Mailer)
	if err != nil {
		logger.Error("configure mailer", "provider", cfg.Mailer.Provider, "error", err)
		os.Exit(1)
	}

	lock := distlock.New(nil, db, "mailroom:queue-processor", 10*time.Minute)
	processor := queue.NewProcessor(postgres.NewQueueRepo(db), sender, lock)
	processor.SetBatchSize(cfg.Queue.BatchSize)
	processor.SetRetryBase(cfg.Queue.RetryBase())
	processor.SetStaleClaim(cfg.Queue.StaleClaim())

	result, err := processor.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("queue pass failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("processed=%d sent=%d failed=%d retried=%d\n",
		result.Processed, result.Sent, result.Failed, result.Retried)
}

func buildSender(ctx context.Context, cfg config.MailerConfig) (mailer.Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return mailer.LogSender{}, nil
	case "ses":
		return mailer.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey,
			cfg.SES.Region, cfg.FromName, cfg.FromEmail, cfg.SES.Timeout())
	default:
		return nil, fmt.Errorf("unknown mailer provider %q", cfg.Provider)
	}
}
