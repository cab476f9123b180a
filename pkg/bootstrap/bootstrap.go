// Package bootstrap holds the startup sequence shared by the binaries:
// environment, config, logger, and the shared clients, closed in reverse
// order of opening.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/instance"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/migrate"
	"github.com/vendeo/vendeo-backend/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Runtime is a started binary.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger

	closers []closer
}

// Start loads .env (if any) and config, and builds the service logger.
func Start(service string) (*Runtime, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	return &Runtime{
		Service: service,
		Config:  cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}, nil
}

// Context tags ctx with the fields every log line of this process carries.
func (r *Runtime) Context(ctx context.Context) context.Context {
	env := ""
	if r.Config != nil {
		env = r.Config.App.Env
	}
	return r.Logger.WithFields(ctx, map[string]any{
		"env":         env,
		"serviceKind": r.Service,
		"instance":    instance.GetID(),
	})
}

// OnClose registers fn to run in Close.
func (r *Runtime) OnClose(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers last-in first-out. Failures are logged.
func (r *Runtime) Close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(); err != nil {
			r.Logger.Error(r.Logger.WithField(ctx, "resource", c.name), "close failed", err)
		}
	}
	r.closers = nil
}

// Database connects and, in dev, brings the schema up to date.
func (r *Runtime) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, r.Config.DB, r.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	r.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, r.Config, r.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (r *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, r.Config.Redis, r.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	r.OnClose("redis", client.Close)
	return client, nil
}

// Exit ends a binary whose run returned err.
func Exit(service string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", service, err)
	os.Exit(1)
}
