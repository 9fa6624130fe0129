package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stopkeeper/config"
	"stopkeeper/internal/adapters/sqlite"
	"stopkeeper/internal/app"
	"stopkeeper/internal/policy"
	"stopkeeper/internal/ports"
	"stopkeeper/internal/protection"
)

var runNoJournal bool

func init() {
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "skip the sqlite audit journal")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate all long positions once and place or adjust their stops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := bootstrap()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		table, err := config.LoadPolicies(d.cfg.PolicyFile)
		if err != nil {
			return err
		}
		resolver, err := policy.NewResolver(table, d.cfg.DefaultPolicy())
		if err != nil {
			return fmt.Errorf("failed to build policy resolver: %w", err)
		}

		engine, err := protection.NewEngine(protection.Config{
			Executor:    protection.NewExecutor(d.broker),
			Logger:      d.logger,
			SettleDelay: d.cfg.CancelSettleDelay,
		})
		if err != nil {
			return fmt.Errorf("failed to build protection engine: %w", err)
		}

		var journal ports.RunJournal
		if !runNoJournal {
			j, err := sqlite.NewJournal(sqlite.Config{DBPath: d.cfg.DBPath, Logger: d.logger})
			if err != nil {
				// The journal is audit-only. A broken database should not
				// leave positions unprotected.
				d.logger.Error(ctx, err, "Journal unavailable, running without audit trail")
			} else {
				defer j.Close()
				journal = j
			}
		}

		service, err := app.NewService(d.broker, resolver, engine, journal, d.logger)
		if err != nil {
			return fmt.Errorf("failed to build run service: %w", err)
		}

		report, err := service.RunOnce(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("positions=%d long=%d ordersCreated=%d failures=%d\n",
			report.PositionsSeen, report.LongPositions, report.OrdersCreated, report.Failures)
		return nil
	},
}
