package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/percyitchy/xleaderboard/internal/app"
	"github.com/percyitchy/xleaderboard/internal/trade"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradeCmd = &cobra.Command{
	Use:   "trade <token-id>",
	Short: "Place one order through the trade dialog flow",
	Long: `Opens a trade dialog, quotes the order, shows the execution price and,
after confirmation, prepares, signs and submits it. Signature rejections are
retried with freshly prepared orders up to EXECUTION_MAX_RETRIES times.

Use --sell-percent to sell a share of the current position instead of a
fixed number of shares.

Examples:
  # Market buy 10 shares
  go run . trade 7132...2563 --side BUY --shares 10 --reference-price 0.20

  # Sell half of the position at a limit price
  go run . trade 7132...2563 --side SELL --kind LIMIT --price 0.55 --sell-percent 50 --reference-price 0.52`,
	Args: cobra.ExactArgs(1),
	RunE: runTrade,
}

//nolint:gochecknoglobals // Cobra boilerplate
var tradeFlags struct {
	side        string
	kind        string
	shares      string
	sellPercent string
	price       string
	reference   string
	yes         bool
	timeout     time.Duration
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().StringVar(&tradeFlags.side, "side", "BUY", "Order side (BUY or SELL)")
	tradeCmd.Flags().StringVar(&tradeFlags.kind, "kind", "MARKET", "Order kind (MARKET or LIMIT)")
	tradeCmd.Flags().StringVar(&tradeFlags.shares, "shares", "", "Number of shares")
	tradeCmd.Flags().StringVar(&tradeFlags.sellPercent, "sell-percent", "", "Sell this percentage of the current position")
	tradeCmd.Flags().StringVar(&tradeFlags.price, "price", "", "Limit price (LIMIT orders)")
	tradeCmd.Flags().StringVar(&tradeFlags.reference, "reference-price", "", "Current market price of the outcome")
	tradeCmd.Flags().BoolVarP(&tradeFlags.yes, "yes", "y", false, "Skip confirmation and signature prompts")
	tradeCmd.Flags().DurationVar(&tradeFlags.timeout, "timeout", 2*time.Minute, "Overall timeout")
	_ = tradeCmd.MarkFlagRequired("reference-price")
	tradeCmd.MarkFlagsMutuallyExclusive("shares", "sell-percent")
}

func runTrade(cmd *cobra.Command, args []string) error {
	tokenID := args[0]

	side, err := types.ParseSide(tradeFlags.side)
	if err != nil {
		return err
	}
	kind, err := types.ParseOrderKind(tradeFlags.kind)
	if err != nil {
		return err
	}
	reference, err := decimal.NewFromString(tradeFlags.reference)
	if err != nil {
		return fmt.Errorf("parse reference price: %w", err)
	}
	if tradeFlags.shares == "" && tradeFlags.sellPercent == "" {
		return errors.New("one of --shares or --sell-percent is required")
	}
	if tradeFlags.sellPercent != "" && side != types.Sell {
		return errors.New("--sell-percent only applies to SELL orders")
	}

	opts := &app.Options{}
	if !tradeFlags.yes {
		opts.Approve = func(ctx context.Context, data apitypes.TypedData) bool {
			return promptYesNo(stdin, os.Stdout, "Sign order (salt "+fmt.Sprint(data.Message["salt"])+")?")
		}
	}

	application, logger, err := loadApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown()
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), tradeFlags.timeout)
	defer cancel()

	controller := application.Controller()
	dialog, err := controller.Open(tokenID, side, kind, reference)
	if err != nil {
		return fmt.Errorf("open dialog: %w", err)
	}
	defer dialog.Close()

	if kind == types.Limit {
		limit, perr := decimal.NewFromString(tradeFlags.price)
		if perr != nil {
			return fmt.Errorf("parse limit price: %w", perr)
		}
		err = dialog.SetLimitPrice(limit)
		if err != nil {
			return err
		}
	}

	err = setTradeShares(ctx, application, dialog, tokenID)
	if err != nil {
		return err
	}

	if kind == types.Market {
		err = awaitQuote(ctx, controller, dialog.ID())
		if err != nil {
			return err
		}
		summary, _ := dialog.LastQuote()
		printQuote(os.Stdout, summary)
	}

	res, err := dialog.Preview()
	printResolution(os.Stdout, res, err)
	if err != nil {
		return err
	}

	intent := dialog.Intent()
	question := fmt.Sprintf("%s %s %s shares at %s (~$%s)?",
		intent.Kind, intent.Side, intent.Shares, res.ExecutionPrice, res.EstimatedTotal.StringFixed(2))
	if !tradeFlags.yes && !promptYesNo(stdin, os.Stdout, question) {
		fmt.Println("Cancelled.")
		return nil
	}

	unsubscribe := controller.Subscribe(func(ev trade.Event) {
		if ev.DialogID == dialog.ID() && ev.Type == trade.EventSession {
			fmt.Printf("  attempt %d: %s\n", ev.Attempt, ev.Phase)
		}
	})
	defer unsubscribe()

	result, err := dialog.Confirm(ctx)
	if err != nil {
		return fmt.Errorf("execute order: %w", err)
	}

	fmt.Printf("\nOrder ID: %s\n", result.OrderID)
	fmt.Printf("Status:   %s\n", result.Status)
	for _, tx := range result.TransactionHashes {
		fmt.Printf("Tx:       %s\n", tx)
	}

	return nil
}

func setTradeShares(ctx context.Context, application *app.App, dialog *trade.Dialog, tokenID string) error {
	if tradeFlags.sellPercent == "" {
		shares, err := decimal.NewFromString(tradeFlags.shares)
		if err != nil {
			return fmt.Errorf("parse shares: %w", err)
		}
		return dialog.SetShares(shares)
	}

	pct, err := decimal.NewFromString(tradeFlags.sellPercent)
	if err != nil {
		return fmt.Errorf("parse sell percent: %w", err)
	}

	identity, err := application.Session().Identity()
	if err != nil {
		return fmt.Errorf("read identity: %w", err)
	}

	position, err := application.Positions().PositionSize(ctx, identity.ProxyAddress, tokenID)
	if err != nil {
		return fmt.Errorf("look up position: %w", err)
	}
	if !position.IsPositive() {
		return fmt.Errorf("no position in token %s", tokenID)
	}

	fmt.Printf("Position:        %s shares\n", position)
	return dialog.SetSharesFromPercent(position, pct)
}
