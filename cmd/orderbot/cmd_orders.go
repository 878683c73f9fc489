package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/orderbot/internal/state"
)

var ordersLimit int

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.Flags().IntVarP(&ordersLimit, "limit", "n", 20, "number of most recent orders to show")
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List completed orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store, err := state.Open(cfg.Storage.Backend, cfg.DataDir, cfg.Storage.RedisURL)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		return listOrders(cmd.Context(), state.OpenOrderLog(store, cfg.DataDir), ordersLimit, os.Stdout)
	},
}

func listOrders(ctx context.Context, orders state.OrderLog, limit int, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	list, err := orders.Tail(ctx, limit)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No orders found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tORDER\tPHONE\tNAME\tCLOSED\tSUMMARY")
	for _, o := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			o.Seq,
			o.OrderCode,
			o.Customer.Phone,
			o.Customer.Name,
			o.ClosedAt.Local().Format("2006-01-02 15:04"),
			firstLine(o.Summary, 60),
		)
	}
	return w.Flush()
}

func firstLine(s string, max int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return s
}
