package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vendeo/vendeo-backend/internal/analytics/router"
	"github.com/vendeo/vendeo-backend/internal/analytics/worker"
	"github.com/vendeo/vendeo-backend/internal/analytics/writer"
	"github.com/vendeo/vendeo-backend/pkg/bigquery"
	"github.com/vendeo/vendeo-backend/pkg/bootstrap"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox/idempotency"
	"github.com/vendeo/vendeo-backend/pkg/pubsub"
)

const serviceName = "analytics-worker"

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

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Options{
		RequiredSubscriptions: []string{
			cfg.PubSub.CommissionAnalyticsSubscription,
			cfg.PubSub.DistributorAnalyticsSubscription,
		},
	}, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	rt.OnClose("pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bootstrap bigquery: %w", err)
	}
	rt.OnClose("bigquery", bqClient.Close)

	rows, err := writer.New(bqClient, writer.Config{
		CommissionTable:  cfg.BigQuery.CommissionEventsTable,
		DistributorTable: cfg.BigQuery.DistributorEventsTable,
	})
	if err != nil {
		return fmt.Errorf("analytics writer: %w", err)
	}
	handler, err := router.NewRouter(rows, logg)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}

	eventingMetrics := metrics.NewEventingMetrics(prometheus.DefaultRegisterer)
	subscriptions := []struct {
		name string
		sub  *gcppubsub.Subscriber
	}{
		{"commission", pubsubClient.CommissionAnalyticsSubscription()},
		{"distributor", pubsubClient.DistributorAnalyticsSubscription()},
	}

	workers := make([]*worker.Service, 0, len(subscriptions))
	for _, s := range subscriptions {
		if s.sub == nil {
			return fmt.Errorf("%s analytics subscription not configured", s.name)
		}
		svc, err := worker.NewService(s.name, s.sub, handler, manager, logg, worker.WithMetrics(eventingMetrics))
		if err != nil {
			return fmt.Errorf("%s analytics worker: %w", s.name, err)
		}
		workers = append(workers, svc)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range workers {
		group.Go(func() error { return svc.Run(groupCtx) })
	}
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	logg.Info(ctx, "analytics worker ready")

	err = group.Wait()
	if flushErr := rows.Flush(context.Background()); flushErr != nil {
		logg.Error(ctx, "flush analytics rows", flushErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "analytics worker stopped")
	return nil
}
