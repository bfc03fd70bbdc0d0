package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var quoteCmd = &cobra.Command{
	Use:   "quote <token-id>",
	Short: "Quote a market order against live depth",
	Long: `Fetches the depth quote for an order and shows the execution price the
trade dialog would use, without signing or submitting anything.

Examples:
  # Quote buying 10 shares around 0.20
  go run . quote 7132...2563 --side BUY --shares 10 --reference-price 0.20`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

//nolint:gochecknoglobals // Cobra boilerplate
var quoteFlags struct {
	side      string
	shares    string
	reference string
	timeout   time.Duration
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVar(&quoteFlags.side, "side", "BUY", "Order side (BUY or SELL)")
	quoteCmd.Flags().StringVar(&quoteFlags.shares, "shares", "", "Number of shares")
	quoteCmd.Flags().StringVar(&quoteFlags.reference, "reference-price", "", "Current market price of the outcome")
	quoteCmd.Flags().DurationVar(&quoteFlags.timeout, "timeout", 15*time.Second, "How long to wait for the quote")
	_ = quoteCmd.MarkFlagRequired("shares")
	_ = quoteCmd.MarkFlagRequired("reference-price")
}

func runQuote(cmd *cobra.Command, args []string) error {
	side, err := types.ParseSide(quoteFlags.side)
	if err != nil {
		return err
	}
	shares, err := decimal.NewFromString(quoteFlags.shares)
	if err != nil {
		return fmt.Errorf("parse shares: %w", err)
	}
	reference, err := decimal.NewFromString(quoteFlags.reference)
	if err != nil {
		return fmt.Errorf("parse reference price: %w", err)
	}

	application, logger, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown()
		_ = logger.Sync()
	}()

	controller := application.Controller()
	dialog, err := controller.Open(args[0], side, types.Market, reference)
	if err != nil {
		return fmt.Errorf("open dialog: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), quoteFlags.timeout)
	defer cancel()

	err = dialog.SetShares(shares)
	if err != nil {
		return err
	}
	err = awaitQuote(ctx, controller, dialog.ID())
	if err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "Token:           %s\n", args[0])
	fmt.Fprintf(out, "Side:            %s\n", side)
	fmt.Fprintf(out, "Shares:          %s\n", shares)

	summary, qErr := dialog.LastQuote()
	if qErr != nil {
		fmt.Fprintf(out, "Quote error:     %v\n", qErr)
	}
	printQuote(out, summary)

	res, err := dialog.Preview()
	printResolution(out, res, err)

	return nil
}
