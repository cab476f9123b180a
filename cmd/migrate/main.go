package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/vendeo/vendeo-backend/pkg/bootstrap"
	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/migrate"
)

const serviceName = "migrate"

type options struct {
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
var offline = map[string]func(opts options) error{
	"create": func(opts options) error {
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(opts options) error {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

// online commands run against the configured database.
var online = map[string]func(ctx context.Context, m *migrate.Migrator, opts options) error{
	"up": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return m.Up(ctx)
	},
	"down": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return m.Down(ctx)
	},
	"status": printStatus,
	"version": func(ctx context.Context, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return m.To(ctx, opts.version)
	},
}

func printStatus(ctx context.Context, m *migrate.Migrator, _ options) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "pending"
		if st.Applied {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", st.Version, applied, st.Path)
	}
	return w.Flush()
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (default: embedded set; "+migrate.DefaultDir+" for create and validate)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	bootstrap.Exit(serviceName, run(*cmd, opts))
}

func run(cmd string, opts options) error {
	if fn, ok := offline[cmd]; ok {
		if opts.dir == "" {
			opts.dir = migrate.DefaultDir
		}
		return fn(opts)
	}
	fn, ok := online[cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}

	rt, err := bootstrap.Start(serviceName)
	if err != nil {
		return err
	}
	ctx := rt.Logger.WithFields(rt.Context(context.Background()), map[string]any{"cmd": cmd, "dir": opts.dir})
	defer rt.Close(ctx)

	dbClient, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	rt.OnClose("database", dbClient.Close)
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	migrator, err := migrate.New(sqlDB, opts.dir, rt.Logger)
	if err != nil {
		return err
	}

	if err := fn(ctx, migrator, opts); err != nil {
		rt.Logger.Error(ctx, "migration command failed", err)
		return err
	}
	rt.Logger.Info(ctx, "migration command complete")
	return nil
}
