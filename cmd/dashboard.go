package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"stopkeeper/internal/adapters/csvstore"
	"stopkeeper/internal/dashboard"
)

var dashboardOut string

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "", "output HTML path (default DOCS_DIR/index.html)")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Capture an account snapshot and render the static HTML dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := bootstrap()
		if err != nil {
			return err
		}
		defer d.logger.Sync()

		store, err := csvstore.New(csvstore.Config{DataDir: d.cfg.DataDir, Logger: d.logger})
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}

		gen, err := dashboard.New(dashboard.Config{Broker: d.broker, Store: store, Logger: d.logger})
		if err != nil {
			return fmt.Errorf("failed to build dashboard generator: %w", err)
		}

		if err := gen.Capture(ctx); err != nil {
			return err
		}

		outPath := dashboardOut
		if outPath == "" {
			outPath = filepath.Join(d.cfg.DocsDir, "index.html")
		}
		if err := gen.Render(ctx, outPath); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", outPath)
		return nil
	},
}
