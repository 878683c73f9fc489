package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/orderbot/internal/types"
)

const (
	maxTelegramMessage = 4096

	// AddressPrefix starts every Telegram chat address.
	AddressPrefix = "telegram:"
)

// Inbound accepts messages for processing.
type Inbound interface {
	HandleInbound(ctx context.Context, msg *types.InboundMessage) error
}

// botAPI is the subset of tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot     botAPI
	inbound Inbound
	welcome string
}

// New creates a Telegram adapter. welcome is sent in reply to /start.
func New(token string, inbound Inbound, welcome string) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:     bot,
		inbound: inbound,
		welcome: welcome,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			// Photos, stickers, voice notes and the like carry no text.
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() && msg.Command() == "start" {
		if err := a.Send(ctx, Address(msg.Chat.ID), a.welcome); err != nil {
			slog.Error("send welcome failed", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}

	event := &types.InboundMessage{
		Source:     "telegram",
		Sender:     Address(msg.Chat.ID),
		SenderName: displayName(msg.From),
		Text:       msg.Text,
		IsGroup:    !msg.Chat.IsPrivate(),
	}
	if err := a.inbound.HandleInbound(ctx, event); err != nil {
		slog.Error("handle inbound failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

// Send delivers text to a "telegram:<chat id>" address, split into
// Telegram-sized parts. Markdown is tried first and plain text on failure.
func (a *Adapter) Send(_ context.Context, address, text string) error {
	chatID, err := ParseAddress(address)
	if err != nil {
		return err
	}
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.bot.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

// Address returns the channel address of a chat.
func Address(chatID int64) string {
	return AddressPrefix + strconv.FormatInt(chatID, 10)
}

// ParseAddress extracts the chat id from a "telegram:<id>" address.
func ParseAddress(address string) (int64, error) {
	raw, ok := strings.CutPrefix(address, AddressPrefix)
	if !ok {
		return 0, fmt.Errorf("not a telegram address: %s", address)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", raw, err)
	}
	return id, nil
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	return name
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end >= len(text) {
			end = len(text)
		} else {
			// Never cut a multi-byte rune in half.
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
