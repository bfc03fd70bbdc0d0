package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List the wallet's open orders",
	Args:  cobra.NoArgs,
	RunE:  runListOrders,
}

//nolint:gochecknoglobals // Cobra boilerplate
var cancelOrderCmd = &cobra.Command{
	Use:   "cancel-order <order-id>",
	Short: "Cancel one open order",
	Long: `Cancels a resting order through the dashboard backend using the
configured wallet's API credentials.

Examples:
  go run . cancel-order 0x5e1c...9a`,
	Args: cobra.ExactArgs(1),
	RunE: runCancelOrder,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(cancelOrderCmd)
}

func runListOrders(cmd *cobra.Command, args []string) error {
	application, logger, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown()
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orders, err := application.Orders().Open(ctx)
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		fmt.Println("No open orders found.")
		return nil
	}

	printOrders(os.Stdout, orders)
	return nil
}

func runCancelOrder(cmd *cobra.Command, args []string) error {
	application, logger, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown()
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := application.Orders().Cancel(ctx, args[0])
	if err != nil {
		return err
	}

	for _, id := range result.Canceled {
		fmt.Printf("Canceled: %s\n", id)
	}
	return nil
}

func printOrders(out io.Writer, orders []types.OpenOrder) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIDE\tPRICE\tSIZE\tMATCHED\tSTATUS\tTYPE")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortOrderID(o.ID), o.Side, o.Price, o.OriginalSize, o.SizeMatched, o.Status, o.OrderType)
	}
	_ = w.Flush()
}

func shortOrderID(id string) string {
	if len(id) <= 14 {
		return id
	}
	return id[:8] + "..." + id[len(id)-4:]
}
