package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/themelab-io/themeboard-backend/internal/ads"
	"github.com/themelab-io/themeboard-backend/internal/cron"
	"github.com/themelab-io/themeboard-backend/pkg/config"
	"github.com/themelab-io/themeboard-backend/pkg/db"
	"github.com/themelab-io/themeboard-backend/pkg/logger"
	"github.com/themelab-io/themeboard-backend/pkg/metrics"
	"github.com/themelab-io/themeboard-backend/pkg/migrate"
	"github.com/themelab-io/themeboard-backend/pkg/outbox"
	"github.com/themelab-io/themeboard-backend/pkg/redis"
)

const lockKeyFormat = "tb:sweep-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	adsRepo := ads.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	slotMetrics := metrics.NewSlotMetrics(prometheus.DefaultRegisterer)

	sweepJob, err := cron.NewSlotSweepJob(cron.SlotSweepJobParams{
		Logger:       logg,
		DB:           dbClient,
		Reader:       adsRepo,
		Outbox:       outboxService,
		Metrics:      slotMetrics,
		SlotCapacity: cfg.Ads.SlotCapacity,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create slot sweep job", err)
		os.Exit(1)
	}

	resyncJob, err := cron.NewSlotResyncJob(cron.SlotResyncJobParams{
		Logger:      logg,
		DB:          dbClient,
		Reader:      adsRepo,
		Snapshot:    redisClient,
		Outbox:      outboxService,
		SnapshotTTL: cfg.Ads.SnapshotTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create slot resync job", err)
		os.Exit(1)
	}

	sweepService, err := newCronService(logg, cronMetrics, redisClient, sweepJob, cfg.Ads.SweepInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	resyncService, err := newCronService(logg, cronMetrics, redisClient, resyncJob, cfg.Ads.ResyncInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create resync service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweep worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return sweepService.Run(groupCtx) })
	group.Go(func() error { return resyncService.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweep worker shutting down gracefully")
}

func newCronService(logg *logger.Logger, cronMetrics *metrics.CronJobMetrics, redisClient *redis.Client, job cron.Job, interval time.Duration) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, fmt.Sprintf(lockKeyFormat, job.Name()), 0)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	registry.Register(job)

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: interval,
	})
}
