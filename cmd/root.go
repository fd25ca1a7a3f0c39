// Package cmd implements the seshat command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/seshat-labs/seshat/internal/config"
	"github.com/seshat-labs/seshat/internal/database"
	"github.com/seshat-labs/seshat/internal/log"
)

var (
	flagDBURL  string
	flagSchema string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "seshat",
	Short: "Seshat - session persistence and memory search for conversational agents",
	Long: `Seshat persists agent sessions (state plus an append-only event log)
in PostgreSQL and answers substring memory searches over stored
conversation text.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBURL, "db-url", "",
		"PostgreSQL connection URL (defaults to DATABASE_URL and friends)")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "",
		"PostgreSQL schema for all tables (defaults to DB_SCHEMA)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"enable debug logging")
}

// appEnv bundles the runtime pieces each subcommand needs.
type appEnv struct {
	logger  *slog.Logger
	manager *database.Manager
	pool    *pgxpool.Pool
	dbCfg   database.Config
}

// setupEnv loads config, builds the logger, and opens the connection
// pool. Callers must Close the returned env.
func setupEnv(ctx context.Context) (*appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := cfg.Level()
	if flagDebug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	dbURL, schema, err := cfg.ResolveDatabase(flagDBURL, flagSchema)
	if err != nil {
		return nil, err
	}

	dbCfg := database.Config{URL: dbURL, Schema: schema}
	manager := database.NewManager(logger)
	pool, err := manager.Get(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	return &appEnv{logger: logger, manager: manager, pool: pool, dbCfg: dbCfg}, nil
}

// Close releases the env's database resources.
func (e *appEnv) Close() {
	e.manager.Close()
}
