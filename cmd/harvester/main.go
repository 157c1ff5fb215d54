// The harvester binary runs the full service: HTTP API, queue worker,
// and cron scheduler in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/api"
	"github.com/JakeFAU/serp-harvester/internal/clock/system"
	"github.com/JakeFAU/serp-harvester/internal/config"
	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/diag"
	"github.com/JakeFAU/serp-harvester/internal/extract"
	"github.com/JakeFAU/serp-harvester/internal/fetch"
	"github.com/JakeFAU/serp-harvester/internal/id/uuid"
	"github.com/JakeFAU/serp-harvester/internal/logging"
	"github.com/JakeFAU/serp-harvester/internal/metrics"
	"github.com/JakeFAU/serp-harvester/internal/proxy"
	"github.com/JakeFAU/serp-harvester/internal/queue"
	"github.com/JakeFAU/serp-harvester/internal/renderer"
	"github.com/JakeFAU/serp-harvester/internal/scheduler"
	"github.com/JakeFAU/serp-harvester/internal/search"
	"github.com/JakeFAU/serp-harvester/internal/storage/gcs"
	"github.com/JakeFAU/serp-harvester/internal/storage/local"
	"github.com/JakeFAU/serp-harvester/internal/storage/memory"
	"github.com/JakeFAU/serp-harvester/internal/store"
	"github.com/JakeFAU/serp-harvester/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		//nolint:errcheck // stderr sync failures are not actionable
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	pool, err := proxy.NewPool(cfg.Proxies.Specs)
	if err != nil {
		return fmt.Errorf("seed proxy pool: %w", err)
	}

	jobQueue, closeQueue, err := buildQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	blobs, closeBlobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()

	var tasks crawler.TaskStore
	if cfg.DB.DSN != "" {
		pgStore, err := store.New(ctx, store.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("connect task store: %w", err)
		}
		defer pgStore.Close()
		tasks = pgStore
	} else {
		logger.Warn("no database DSN configured, task persistence disabled")
	}

	artifacts, err := diag.NewFileSink(cfg.Artifacts.Dir, logger)
	if err != nil {
		return fmt.Errorf("open artifact sink: %w", err)
	}

	clk := system.New()
	ids := uuid.NewUUIDGenerator()

	browser := renderer.NewChromedp(renderer.ChromedpConfig{
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.NavTimeout(),
	})
	searcher := search.New(browser, pool, artifacts, clk, logger, search.Config{
		UserAgent:          cfg.Search.UserAgent,
		BingHomeURL:        cfg.Search.BingHomeURL,
		GoogleHomeURL:      cfg.Search.GoogleHomeURL,
		MinPageBytes:       cfg.Search.MinPageBytes,
		GoogleMaxAttempts:  cfg.Search.GoogleMaxAttempts,
		GoogleRetryBackoff: time.Duration(cfg.Search.GoogleBackoffSec) * time.Second,
	})

	fetcher := fetch.New(fetch.Config{UserAgent: cfg.Search.UserAgent})
	extractor := extract.New(fetcher, logger)

	w := worker.New(jobQueue, searcher, extractor, tasks, blobs, clk, logger, worker.Config{
		EmptyPollDelay: time.Duration(cfg.Worker.EmptyPollDelaySec) * time.Second,
		ErrorPollDelay: time.Duration(cfg.Worker.ErrorPollDelaySec) * time.Second,
	})

	sched, err := scheduler.New(jobQueue, ids, logger, cfg.Schedules)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(jobQueue, tasks, pool, ids, logger, api.Config{
		AuthEnabled: cfg.Auth.Enabled,
		APIKey:      cfg.Auth.APIKey,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("worker: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("fatal component error", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	logger.Info("harvester stopped")
	return nil
}

func buildQueue(cfg config.Config, logger *zap.Logger) (crawler.Queue, func(), error) {
	switch cfg.Queue.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Queue.Addr,
			DB:   cfg.Queue.DB,
		})
		q := queue.NewRedis(client, cfg.Queue.Key, logger)
		return q, func() {
			//nolint:errcheck // closing on shutdown
			_ = client.Close()
		}, nil
	case "memory":
		return queue.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (crawler.BlobStore, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs blob store: %w", err)
		}
		return blobs, func() {
			//nolint:errcheck // closing on shutdown
			_ = client.Close()
		}, nil
	case "local":
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("create local blob store: %w", err)
		}
		return blobs, func() {}, nil
	case "memory":
		return memory.NewBlobStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
