package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/orderbot/internal/state"
	"github.com/user/orderbot/internal/types"
)

var sessionShowJSON bool

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd)
	sessionShowCmd.Flags().BoolVar(&sessionShowJSON, "json", false, "print the stored JSON document")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect customer sessions",
}

func openStore() (state.Store, error) {
	cfg := loadConfig()
	store, err := state.Open(cfg.Storage.Backend, cfg.DataDir, cfg.Storage.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return listSessions(cmd.Context(), store, os.Stdout)
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <phone>",
	Short: "Show the session of a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return showSession(cmd.Context(), store, args[0], sessionShowJSON, os.Stdout)
	},
}

func listSessions(ctx context.Context, store state.Store, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	keys, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PHONE\tNAME\tSTATUS\tORDER\tMESSAGES\tSTARTED")
	for _, key := range keys {
		sess, err := state.LoadSession(ctx, store, key)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\tunreadable\t-\t-\t-\n", key)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			sess.Customer.Phone,
			sess.Customer.Name,
			sess.Status,
			sess.OrderCode,
			len(sess.Transcript),
			sess.StartedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func showSession(ctx context.Context, store types.SessionStore, phoneArg string, asJSON bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	phone := types.NormalizePhone(phoneArg)
	if phone == "" {
		return fmt.Errorf("invalid phone: %s", phoneArg)
	}

	sess, err := state.LoadSession(ctx, store, types.CustomerKey(phone))
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("no session for %s", phone)
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}

	fmt.Fprintf(out, "Customer: %s (%s)\n", sess.Customer.Name, sess.Customer.Phone)
	fmt.Fprintf(out, "Order:    %s\n", sess.OrderCode)
	fmt.Fprintf(out, "Status:   %s\n", sess.Status)
	fmt.Fprintf(out, "Started:  %s\n", sess.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintln(out)
	// The opening instruction is long and identical across sessions.
	for _, turn := range sess.Transcript {
		if turn.Role == types.RoleSystem {
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", turn.Role, turn.Content)
	}
	if sess.OrderSummary != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Summary:")
		fmt.Fprintln(out, sess.OrderSummary)
	}
	return nil
}
