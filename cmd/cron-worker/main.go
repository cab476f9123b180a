package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vendeo/vendeo-backend/internal/commissions"
	"github.com/vendeo/vendeo-backend/internal/cron"
	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/pkg/bootstrap"
	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
)

const serviceName = "cron-worker"

func main() {
	jobs := flag.String("jobs", "", "comma separated job names to run; empty runs all")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	bootstrap.Exit(serviceName, run(splitJobs(*jobs), *once))
}

func run(jobNames []string, once bool) error {
	rt, err := bootstrap.Start(serviceName)
	if err != nil {
		return err
	}
	cfg, logg := rt.Config, rt.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = rt.Context(ctx)
	defer rt.Close(ctx)

	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName, env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err == nil {
		registry, err = registry.Select(jobNames...)
	}
	if err != nil {
		return fmt.Errorf("cron registry: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if once {
		logg.Info(ctx, "running a single cron cycle")
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "cron worker started")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker stopped")
	return nil
}

// buildRegistry lists every sweep in the order a cycle runs them.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	distributorService, err := distributors.NewService(distributors.ServiceParams{
		Repository: distributors.NewRepository(dbClient.DB()),
		TxRunner:   dbClient,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	integrity, err := cron.NewHierarchyIntegrityJob(cron.HierarchyIntegrityJobParams{
		Logger:    logg,
		Hierarchy: distributorService,
		Metrics:   metrics.NewCommissionMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, err
	}
	orphans, err := cron.NewCommissionOrphanJob(cron.CommissionOrphanJobParams{
		Logger:     logg,
		Repository: commissions.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
		DLQ:         outbox.NewDLQRepository(dbClient.DB()),
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(integrity, orphans, retention)
}

func splitJobs(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
