// Package cmd holds the stopkeeper CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stopkeeper/config"
	"stopkeeper/internal/adapters/alpaca"
	"stopkeeper/internal/adapters/logger"
)

var rootCmd = &cobra.Command{
	Use:           "stopkeeper",
	Short:         "Keeps every long position covered by a stop-loss order",
	Long:          "stopkeeper evaluates each long position in the account and maintains a fixed or trailing stop sell order for it. Designed to run from cron or CI on a schedule.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI and exits non-zero on command failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deps holds the dependencies every command starts from.
type deps struct {
	cfg    *config.Config
	logger *logger.ZapLogger
	broker *alpaca.Client
}

// bootstrap loads configuration and initializes the logger and broker client.
func bootstrap() (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	broker, err := alpaca.New(alpaca.Config{
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		Paper:     cfg.Paper,
		Logger:    appLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize broker client: %w", err)
	}
	appLogger.Info(context.Background(), "Broker client initialized", map[string]interface{}{"paper": cfg.Paper})

	return &deps{cfg: cfg, logger: appLogger, broker: broker}, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
