package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stopkeeper/internal/adapters/sqlite"
	"stopkeeper/internal/utils"
)

var (
	exportRunsPath   string
	exportEventsPath string
	exportLimit      int
)

func init() {
	exportCmd.Flags().StringVar(&exportRunsPath, "runs", "runs.csv", "output path for run records")
	exportCmd.Flags().StringVar(&exportEventsPath, "events", "events.csv", "output path for order events")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum records per file, newest first")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the run journal to CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := bootstrap()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		journal, err := sqlite.NewJournal(sqlite.Config{DBPath: d.cfg.DBPath, Logger: d.logger})
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()

		runs, err := journal.FindRuns(ctx, exportLimit)
		if err != nil {
			return err
		}
		if err := utils.WriteRunsToCSV(runs, exportRunsPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportRunsPath, err)
		}

		events, err := journal.FindEvents(ctx, exportLimit)
		if err != nil {
			return err
		}
		if err := utils.WriteEventsToCSV(events, exportEventsPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportEventsPath, err)
		}

		fmt.Printf("wrote %d runs to %s, %d events to %s\n", len(runs), exportRunsPath, len(events), exportEventsPath)
		return nil
	},
}
