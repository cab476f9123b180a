package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendeo/vendeo-backend/api/routes"
	"github.com/vendeo/vendeo-backend/internal/commissions"
	"github.com/vendeo/vendeo-backend/internal/cvd"
	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/internal/qualification"
	"github.com/vendeo/vendeo-backend/pkg/bootstrap"
	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

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
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	services, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, promhttp.Handler(), services),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = logg.WithField(ctx, "addr", server.Addr)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe() }()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// buildServices wires the domain services behind the HTTP routes.
func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Services, error) {
	var services routes.Services
	defaultRate, err := cfg.Commission.DefaultRate()
	if err != nil {
		return services, fmt.Errorf("commission config: %w", err)
	}
	commissionMetrics := metrics.NewCommissionMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	if services.CVD, err = cvd.NewService(cvd.ServiceParams{
		Repository: cvd.NewRepository(dbClient.DB()),
		Logger:     logg,
		Metrics:    commissionMetrics,
	}); err != nil {
		return services, fmt.Errorf("cvd service: %w", err)
	}

	distributorService, err := distributors.NewService(distributors.ServiceParams{
		Repository:  distributors.NewRepository(dbClient.DB()),
		TxRunner:    dbClient,
		Logger:      logg,
		DefaultRate: defaultRate,
		Outbox:      outboxService,
	})
	if err != nil {
		return services, fmt.Errorf("distributor service: %w", err)
	}
	services.Distributors = distributorService

	if services.Qualification, err = qualification.NewService(qualification.ServiceParams{
		Repository: qualification.NewRepository(dbClient.DB()),
		Hierarchy:  distributorService,
		Logger:     logg,
	}); err != nil {
		return services, fmt.Errorf("qualification service: %w", err)
	}

	if services.Commissions, err = commissions.NewService(commissions.ServiceParams{
		Repository: commissions.NewRepository(dbClient.DB()),
		Hierarchy:  distributorService,
		TxRunner:   dbClient,
		Logger:     logg,
		Metrics:    commissionMetrics,
		Outbox:     outboxService,
	}); err != nil {
		return services, fmt.Errorf("commission service: %w", err)
	}
	return services, nil
}
