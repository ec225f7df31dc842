package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/daemon"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/database"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/logging"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/pidfile"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tradecored",
		Short: "Commodity matching, risk and negotiation engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	return cmd
}

func run(cfg *config.Config) error {
	logger := logging.New(cfg.Logging)

	if cfg.Daemon.PIDFile != "" {
		pf := pidfile.New(cfg.Daemon.PIDFile)
		if err := pf.Acquire(); err != nil {
			return fmt.Errorf("failed to acquire pid file: %w", err)
		}
		defer func() {
			if err := pf.Release(); err != nil {
				logger.Warn().Err(err).Msg("pid file not released")
			}
		}()
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info().Str("type", cfg.Database.Type).Msg("database ready")

	if cfg.Metrics.Enabled {
		if err := daemon.InitMetrics(); err != nil {
			return err
		}
	}

	// No external bus is wired in this build; the outbox still records
	// and internally dispatches every event.
	var publisher outbox.Publisher

	d, err := daemon.New(cfg, db, publisher, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}
