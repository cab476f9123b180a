package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/migrate/migrations"
)

// DefaultDir is where the SQL files live in the source tree. Binaries read
// the embedded copy unless a directory is given.
const DefaultDir = "pkg/migrate/migrations"

// Status is one migration as seen by the database.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the Postgres migrations. SQLite databases are built with
// gorm AutoMigrate instead.
type Migrator struct {
	provider *goose.Provider
	logg     *logger.Logger
}

// New reads migrations from dir, or from the embedded set when dir is empty.
func New(db *sql.DB, dir string, logg *logger.Logger) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider, logg: logg}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	m.report(ctx, results)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	result, err := m.provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		m.logg.Info(ctx, "no migration to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	m.report(ctx, []*goose.MigrationResult{result})
	return nil
}

// To migrates up or down until the database sits at version
// (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("current db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = m.provider.UpTo(ctx, target)
	default:
		results, err = m.provider.DownTo(ctx, target)
	}
	m.report(ctx, results)
	if err != nil {
		return fmt.Errorf("goose migrate to %d: %w", target, err)
	}
	return nil
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	states, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(states))
	for _, st := range states {
		out = append(out, Status{
			Version:   st.Source.Version,
			Path:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

func (m *Migrator) report(ctx context.Context, results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		rctx := m.logg.WithFields(ctx, map[string]any{
			"version":     r.Source.Version,
			"direction":   r.Direction,
			"duration_ms": r.Duration.Milliseconds(),
		})
		if r.Error != nil {
			m.logg.Error(rctx, "migration failed", r.Error)
			continue
		}
		m.logg.Info(rctx, "migration applied")
	}
}
