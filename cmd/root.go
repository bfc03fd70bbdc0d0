package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "xleaderboard",
	Short: "Polymarket trade execution for the leaderboard dashboard",
	Long: `Trade execution service behind the leaderboard dashboard.

It quotes orders against live depth through the dashboard backend, resolves
an execution price, signs backend-prepared orders with the configured wallet
and submits them, retrying signature rejections with fresh orders.

Configuration is read from the environment (and .env when present).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
