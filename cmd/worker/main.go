package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/landhub/internal/app"
	"github.com/odyssey-erp/landhub/internal/jobs"
	"github.com/odyssey-erp/landhub/internal/observability"
	"github.com/odyssey-erp/landhub/internal/upload"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	jobMetrics := jobs.NewMetrics(metrics.Registerer())

	var (
		handlers []jobs.TaskHandler
		cron     []jobs.CronRegistration
	)
	if cfg.UploadBackend == app.BackendFS {
		storage, err := upload.NewFilesystemStorage(cfg.UploadDir)
		if err != nil {
			return err
		}
		sweepTask, err := jobs.NewSweepTask(cfg.UploadSweepAge)
		if err != nil {
			return fmt.Errorf("build sweep task: %w", err)
		}
		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskUploadSweepTemp,
			Handler: jobs.NewSweepJob(storage, logger, jobMetrics).Handle,
		})
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.UploadSweepCron,
			Task:    sweepTask,
			Options: []asynq.Option{asynq.MaxRetry(1), asynq.Unique(5 * time.Minute)},
		})
	} else {
		logger.Info("upload backend has no temp directory, sweeper disabled", slog.String("backend", cfg.UploadBackend))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisConnOpt(cfg.RedisAddr),
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func redisConnOpt(addrs string) asynq.RedisConnOpt {
	var list []string
	for _, addr := range strings.Split(addrs, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			list = append(list, addr)
		}
	}
	if len(list) > 1 {
		return asynq.RedisClusterClientOpt{Addrs: list}
	}
	addr := ""
	if len(list) == 1 {
		addr = list[0]
	}
	return asynq.RedisClientOpt{Addr: addr}
}
