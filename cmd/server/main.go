package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/hearthside/mailroom/internal/api"
	"github.com/hearthside/mailroom/internal/automation"
	"github.com/hearthside/mailroom/internal/config"
	"github.com/hearthside/mailroom/internal/mailer"
	"github.com/hearthside/mailroom/internal/pkg/distlock"
	"github.com/hearthside/mailroom/internal/pkg/logger"
	"github.com/hearthside/mailroom/internal/queue"
	"github.com/hearthside/mailroom/internal/repository/postgres"
	"github.com/hearthside/mailroom/internal/segment"
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
	applyLogConfig(cfg.Log)

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
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.Error("ping database", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			// Fall through to the advisory lock; redis is an optimization.
			logger.Warn("redis unreachable, using postgres advisory lock", "error", err)
			redisClient = nil
		}
	}

	sender, err := buildSender(context.Background(), cfg.Mailer)
	if err != nil {
		logger.Error("configure mailer", "provider", cfg.Mailer.Provider, "error", err)
		os.Exit(1)
	}

	// Repositories
	segmentRepo := postgres.NewSegmentRepo(db)
	subscriberRepo := postgres.NewSubscriberRepo(db)
	automationRepo := postgres.NewAutomationRepo(db)
	queueRepo := postgres.NewQueueRepo(db)
	activityLog := postgres.NewActivityLog(db)

	// Services
	segmentSvc := segment.NewService(segmentRepo, subscriberRepo, activityLog)
	automationSvc := automation.NewService(automationRepo, queueRepo, activityLog)
	dispatcher := automation.NewDispatcher(automationRepo, queueRepo)
	dispatcher.SetMaxRetries(cfg.Queue.MaxRetries)

	lock := distlock.New(redisClient, db, "mailroom:queue-processor", 10*time.Minute)
	processor := queue.NewProcessor(queueRepo, sender, lock)
	processor.SetBatchSize(cfg.Queue.BatchSize)
	processor.SetRetryBase(cfg.Queue.RetryBase())
	processor.SetStaleClaim(cfg.Queue.StaleClaim())

	handlers := api.NewHandlers(segmentSvc, automationSvc, dispatcher, processor, subscriberRepo, activityLog)
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "mailer", cfg.Mailer.Provider)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server exited", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
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

func applyLogConfig(cfg config.LogConfig) {
	switch cfg.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
	if cfg.RedactPII != nil {
		logger.SetRedactPII(*cfg.RedactPII)
	}
}
