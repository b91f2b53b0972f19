package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/config"
	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/server"
)

// --- Global Command Variables ---
var (
	fixturePath string
	seedOnStart bool

	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "adops",
		Short:         "Campaign editor backend for ad operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			logger = ctxlog.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the editor API and websocket server",
		RunE:  runServe,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load a catalog fixture into the database",
		RunE:  runSeed,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "",
		"Catalog fixture YAML (default: the built-in demo catalog)")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&seedOnStart, "seed", false, "Seed the catalog before serving")

	rootCmd.AddCommand(seedCmd)
}

func loadFixture() (*catalog.Fixture, error) {
	if fixturePath == "" {
		return catalog.DefaultFixture()
	}
	f, err := os.Open(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("opening fixture: %w", err)
	}
	defer f.Close()
	return catalog.ReadFixture(f)
}

func openApp(ctx context.Context) (*server.App, error) {
	return server.NewApp(ctxlog.WithLogger(ctx, logger), cfg, logger, prometheus.DefaultRegisterer)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if seedOnStart {
		f, err := loadFixture()
		if err != nil {
			return err
		}
		if err := app.Seed(ctx, f); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		logger.Info("catalog seeded")
	}

	app.Start(ctx)
	return server.Run(ctx, cfg.Port, app.Handler, logger)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := ctxlog.WithLogger(cmd.Context(), logger)
	f, err := loadFixture()
	if err != nil {
		return err
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Seed(ctx, f); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	logger.Info("catalog seeded",
		"platforms", len(f.Platforms),
		"brands", len(f.Brands),
		"accounts", len(f.Accounts),
	)
	return nil
}
