package main

import (
	"fmt"
	"log/slog"
	"os"

	"coursework-api/internal/config"
	"coursework-api/internal/database"
	"coursework-api/internal/seed"
	"coursework-api/internal/store"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coursework-api",
		Short:        "Task tracking API for university course projects",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())
	return root
}

// setup loads the configuration, installs the default logger and opens a
// migrated database
func setup() (*config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg.Log)

	level, _ := cfg.Log.SlogLevel()
	db, err := database.Open(cfg.Database.Path, level)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, nil, err
	}
	logger.Info("database connected and migrated", slog.String("path", cfg.Database.Path))
	return cfg, logger, db, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, db, err := setup()
			if err != nil {
				return err
			}
			return closeDB(db)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load users, courses, projects, sprints and tasks from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			_, logger, db, err := setup()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := seed.Apply(cmd.Context(), store.New(db), file); err != nil {
				return fmt.Errorf("seeding: %w", err)
			}
			logger.Info("seed applied",
				slog.String("file", args[0]),
				slog.Int("users", len(file.Users)),
				slog.Int("subjects", len(file.Subjects)),
			)
			return nil
		},
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
