package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/orderbot/internal/types"
)

var (
	chatPhone string
	chatName  string
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatPhone, "phone", "+5500000000000", "customer phone number")
	chatCmd.Flags().StringVar(&chatName, "name", "Cliente", "customer name")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal as a customer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, provider)
		if err != nil {
			return err
		}
		defer a.shutdown()

		return runChat(ctx, a, os.Stdin, os.Stdout)
	},
}

// runChat feeds each input line to the conversation manager as a message
// from the console customer and prints the replies.
func runChat(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	phone := types.NormalizePhone(chatPhone)
	if phone == "" {
		return fmt.Errorf("invalid phone: %s", chatPhone)
	}
	a.delivery.Register("console:", func(_ context.Context, _ string, message string) error {
		_, err := fmt.Fprintf(out, "bot> %s\n", message)
		return err
	})

	fmt.Fprintf(out, "Chatting with %s as %s. Ctrl-D to quit.\n", a.cfg.Store.Name, phone)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		sess := a.manager.HandleInbound(ctx, &types.InboundMessage{
			Source:     "console",
			Sender:     "console:" + phone,
			SenderName: chatName,
			Text:       text,
		})
		a.manager.Wait()

		if sess != nil && sess.Status == types.StatusClosed {
			fmt.Fprintf(out, "-- order %s closed --\n%s\n", sess.OrderCode, sess.OrderSummary)
		}
	}
}
