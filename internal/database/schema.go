package database

import (
	"context"
	"fmt"
	"log/slog"

	"scribe/internal/config"
	"scribe/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeSQL  = "sql"
	SchemaModeAuto = "auto"
)

// SchemaStatus reports how the schema would be brought up to date.
type SchemaStatus struct {
	Mode               string
	Driver             string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations []Migration
}

// SchemaMode resolves the effective mode. The embedded migrations are PostgreSQL
// DDL, so SQLite always uses AutoMigrate.
func SchemaMode(cfg *config.Config) string {
	if driverName(cfg) == DriverSQLite {
		return SchemaModeAuto
	}
	if cfg.DBSchemaMode == "" {
		return SchemaModeSQL
	}
	return cfg.DBSchemaMode
}

func runAutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the schema up to date using the configured mode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	mode := SchemaMode(cfg)

	switch mode {
	case SchemaModeSQL:
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	case SchemaModeAuto:
		if cfg.IsProduction() {
			middleware.Logger.Warn("Running GORM AutoMigrate in production; review schema diffs")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("driver", driverName(cfg)), slog.String("env", cfg.Env))
		if err := runAutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	default:
		return fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}

	return nil
}

// GetSchemaStatus lists applied and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	mode := SchemaMode(cfg)
	status := &SchemaStatus{
		Mode:               mode,
		Driver:             driverName(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         mode == SchemaModeSQL,
		WillRunAutoMigrate: mode == SchemaModeAuto,
	}

	if status.Mode != SchemaModeSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pendingMigrations(applied, GetMigrations())

	return status, nil
}
