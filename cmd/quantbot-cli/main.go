// quantbot-cli is a thin command-line client for a running quantbot-server.
//
// Usage:
//
//	quantbot-cli [-addr http://localhost:8080] <command> [options]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"quantbot/pkg/quantbot"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: quantbot-cli [-addr URL] <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version      Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  status       Show server status\n")
	fmt.Fprintf(os.Stderr, "  strategies   List registered strategies\n")
	fmt.Fprintf(os.Stderr, "  backtest     Run a backtest (-strategy, -symbol, -limit)\n")
	fmt.Fprintf(os.Stderr, "  results      List stored backtest results (-strategy, -limit)\n")
	fmt.Fprintf(os.Stderr, "  positions    Show open positions\n")
	fmt.Fprintf(os.Stderr, "  account      Show simulated account balances\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	defaultAddr := "http://localhost:8080"
	if a := os.Getenv("QUANTBOT_ADDR"); a != "" {
		defaultAddr = a
	}
	addr := flag.String("addr", defaultAddr, "quantbot-server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	client := quantbot.NewClient(*addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "version":
		fmt.Printf("quantbot-cli %s\n", version)
	case "status":
		err = runStatus(ctx, client)
	case "strategies":
		err = runStrategies(ctx, client)
	case "backtest":
		err = runBacktest(ctx, client, flag.Args()[1:])
	case "results":
		err = runResults(ctx, client, flag.Args()[1:])
	case "positions":
		err = runPositions(ctx, client)
	case "account":
		err = runAccount(ctx, client)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runStatus(ctx context.Context, client *quantbot.Client) error {
	health, err := client.GetHealth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("status: %s (mode: %s)\n", health.Status, health.Mode)
	return nil
}

func runStrategies(ctx context.Context, client *quantbot.Client) error {
	strategies, err := client.GetStrategies(ctx)
	if err != nil {
		return err
	}
	for _, s := range strategies {
		fmt.Println(s)
	}
	return nil
}

func runBacktest(ctx context.Context, client *quantbot.Client, args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	strategy := fs.String("strategy", "", "strategy name (required)")
	symbol := fs.String("symbol", "", "symbol to test (required)")
	limit := fs.Int("limit", 0, "candles of history (0 = server default)")
	fs.Parse(args)

	if *strategy == "" || *symbol == "" {
		return fmt.Errorf("-strategy and -symbol are required")
	}

	result, err := client.RunBacktest(ctx, quantbot.BacktestRequest{
		Strategy: *strategy,
		Symbol:   *symbol,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func printResult(r *quantbot.BacktestResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "strategy:\t%s\n", r.Strategy)
	fmt.Fprintf(w, "symbol:\t%s\n", r.Symbol)
	fmt.Fprintf(w, "period:\t%s to %s\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "return:\t%.2f%%\n", r.TotalReturn*100)
	fmt.Fprintf(w, "final capital:\t%.2f\n", r.FinalCapital)
	fmt.Fprintf(w, "trades:\t%d\n", r.TotalTrades)
	fmt.Fprintf(w, "win rate:\t%.0f%%\n", r.WinRate*100)
	fmt.Fprintf(w, "max drawdown:\t%.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(w, "sharpe:\t%.2f\n", r.SharpeRatio)
	fmt.Fprintf(w, "sortino:\t%.2f\n", r.SortinoRatio)
	w.Flush()
}

func runResults(ctx context.Context, client *quantbot.Client, args []string) error {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	strategy := fs.String("strategy", "", "filter by strategy name")
	limit := fs.Int("limit", 20, "max results")
	fs.Parse(args)

	results, err := client.GetResults(ctx, *strategy, *limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tSYMBOL\tRETURN\tTRADES\tWIN RATE\tDRAWDOWN")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%d\t%.0f%%\t%.2f%%\n",
			r.Strategy, r.Symbol, r.TotalReturn*100, r.TotalTrades, r.WinRate*100, r.MaxDrawdown*100)
	}
	return w.Flush()
}

func runPositions(ctx context.Context, client *quantbot.Client) error {
	positions, err := client.GetPositions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSIDE\tQTY\tENTRY\tMARK\tUNREALIZED")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f\t%.2f\t%.2f\n",
			p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.MarkPrice, p.UnrealizedPnL)
	}
	return w.Flush()
}

func runAccount(ctx context.Context, client *quantbot.Client) error {
	account, err := client.GetAccount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cash:   %.2f\n", account.Cash)
	fmt.Printf("equity: %.2f\n", account.Equity)
	return nil
}
