package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sharebite/auth-service/internal/config"
	"github.com/sharebite/auth-service/internal/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations to the PostgreSQL user database.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.DBDriver != config.DriverPostgres {
		return oops.Code("CONFIG_INVALID").Errorf("migrations require the postgres driver, got %q", cfg.DBDriver)
	}

	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := repository.Connect(ctx, postgresConfig(cfg))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	cmd.Println("Running migrations...")
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}

func postgresConfig(cfg *config.Config) repository.PostgresConfig {
	return repository.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		TimeZone: "UTC",
	}
}
