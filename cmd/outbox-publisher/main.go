package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vendeo/vendeo-backend/pkg/bootstrap"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/registry"
	"github.com/vendeo/vendeo-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	bootstrap.Exit(serviceName, run())
}

func run() error {
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

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Options{
		RequiredTopics: eventRegistry.Topics(),
	}, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	rt.OnClose("pubsub", pubsubClient.Close)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewEventingMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	logg.Info(ctx, "outbox publisher started")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "outbox publisher stopped")
	return nil
}
