package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trade execution service",
	Long: `Starts the trade execution service, which will:
1. Serve the dashboard trade API (dialogs, confirm, orders, history)
2. Push quote and execution updates to dashboard clients over WebSocket
3. Expose /metrics, /health and /ready (ready follows the backend status)`,
	RunE: runService,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(cmd *cobra.Command, args []string) error {
	application, logger, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
