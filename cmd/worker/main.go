// cmd/worker/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"text-extraction-service/internal/blob"
	"text-extraction-service/internal/config"
	"text-extraction-service/internal/processor"
	"text-extraction-service/internal/repository/postgresql"
	"text-extraction-service/internal/service"
	"text-extraction-service/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	store, err := blob.Open(ctx, cfg.Blob, log)
	if err != nil {
		return err
	}

	// DI
	repo := postgresql.NewJobRepository(pool)
	queue := service.NewRedisQueue(rdb, service.Keys{
		QueueKey:      cfg.Redis.QueueKey,
		ProcessingKey: cfg.Redis.ProcessingKey,
		ClaimsKey:     cfg.Redis.ClaimsKey,
	})
	registry := processor.Default(cfg, log)

	proc := worker.NewProcessor(repo, store, registry, worker.Options{
		ScratchDir:      cfg.Worker.ScratchDir,
		DownloadTimeout: cfg.Worker.DownloadTimeout,
		ExtractTimeout:  cfg.Worker.ExtractTimeout,
		UploadTimeout:   cfg.Worker.UploadTimeout,
	}, log)
	workers := worker.NewPool(queue, proc, cfg.Worker.Count, cfg.Worker.ClaimTimeout, log)
	reaper := worker.NewReaper(queue, cfg.Redis.ReaperInterval, cfg.Redis.VisibilityTimeout, log)

	log.Info("worker config",
		"workers", cfg.Worker.Count,
		"capabilities", registry.Names(),
		"redis_addr", cfg.Redis.Addr,
		"queue_key", cfg.Redis.QueueKey,
		"processing_key", cfg.Redis.ProcessingKey,
		"postgres_dsn", redactDSN(cfg.Postgres.DSN),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		workers.Run(gctx)
		return nil
	})
	return g.Wait()
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// redactDSN masks the password: user:pass@ -> user:****@
func redactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
