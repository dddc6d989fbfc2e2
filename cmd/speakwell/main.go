package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/speakwell-backend/internal/app"
	"github.com/yungbote/speakwell-backend/internal/data/db"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "speakwell",
	Short: "SpeakWell speech practice API",
	Long: `SpeakWell serves the speech practice API.

Configuration comes from the YAML file named by SPEAKWELL_CONFIG and from
SPEAKWELL_* environment variables. Without database settings the server runs
in demo mode on an in-memory store.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and exit",
	RunE:  runMigrate,
}

var seedSkillsCmd = &cobra.Command{
	Use:   "seed-skills",
	Short: "Upsert the built-in skill catalog and exit",
	RunE:  runSeedSkills,
}

var addrFlag string

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides addr from config)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedSkillsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

// withStore opens the configured database for one-shot commands.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, log *logger.Logger, cfg app.Config, store *db.Service) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	if cfg.Mode() == app.ModeDemo {
		log.Warn("No database configured; changes apply to a throwaway in-memory store")
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	store, err := app.OpenDatabase(log, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, log, cfg, store)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(ctx context.Context, log *logger.Logger, cfg app.Config, store *db.Service) error {
		if err := store.AutoMigrateAll(); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		log.Info("Schema migrated", "dialect", store.Dialect())
		return nil
	})
}

func runSeedSkills(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(ctx context.Context, log *logger.Logger, cfg app.Config, store *db.Service) error {
		if err := store.AutoMigrateAll(); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		return app.SeedSkills(ctx, log, store.DB())
	})
}
