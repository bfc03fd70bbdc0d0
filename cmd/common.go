package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/percyitchy/xleaderboard/internal/app"
	"github.com/percyitchy/xleaderboard/internal/pricing"
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/internal/trade"
	"github.com/percyitchy/xleaderboard/pkg/config"
	"go.uber.org/zap"
)

func loadApp(opts *app.Options) (*app.App, *zap.Logger, error) {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("create app: %w", err)
	}

	return application, logger, nil
}

// stdin is shared by every prompt so buffered answers are not lost between them.
var stdin = bufio.NewReader(os.Stdin) //nolint:gochecknoglobals // Single reader over process stdin

// promptYesNo asks question on out and reads one answer line from in.
// Anything but y or yes is a no.
func promptYesNo(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// awaitQuote blocks until the dialog applies its next quote result.
func awaitQuote(ctx context.Context, controller *trade.Controller, dialogID string) error {
	got := make(chan struct{}, 1)
	unsubscribe := controller.Subscribe(func(ev trade.Event) {
		if ev.DialogID != dialogID || ev.Type != trade.EventQuote {
			return
		}
		select {
		case got <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	select {
	case <-got:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for quote: %w", ctx.Err())
	}
}

func printQuote(out io.Writer, summary *quote.Summary) {
	if summary == nil {
		fmt.Fprintln(out, "Quote:           unavailable (below minimum notional or backend error)")
		return
	}

	fmt.Fprintf(out, "Notional:        $%s\n", summary.Notional.StringFixed(2))
	fmt.Fprintf(out, "Best price:      %s\n", summary.BestPrice)
	fmt.Fprintf(out, "VWAP:            %s\n", summary.VolumeWeightedPrice)
	fmt.Fprintf(out, "Worst price:     %s\n", summary.WorstPriceAtFullFill)
	fmt.Fprintf(out, "Levels consumed: %d\n", summary.LevelsConsumed)
	if summary.IsFullyFillable {
		fmt.Fprintln(out, "Fillable:        yes")
	} else {
		fmt.Fprintf(out, "Fillable:        no ($%s unfilled)\n", summary.RemainingNotionalUnfilled.StringFixed(2))
	}
}

func printResolution(out io.Writer, res *pricing.Resolution, err error) {
	if res != nil {
		fmt.Fprintf(out, "Execution price: %s (%s)\n", res.ExecutionPrice, res.Source)
		fmt.Fprintf(out, "Estimated total: $%s\n", res.EstimatedTotal.StringFixed(2))
	}
	if err != nil {
		fmt.Fprintf(out, "Blocked:         %v\n", err)
	}
}
