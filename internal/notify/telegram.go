package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Telegram sends messages to a single chat through the Bot API.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

// Compile-time interface check.
var _ Notifier = (*Telegram)(nil)

// NewTelegram builds a notifier for the given bot token and chat. Extra
// options are passed through to the client (tests point it at a fake API
// server).
func NewTelegram(token string, chatID int64, opts ...telego.BotOption) (*Telegram, error) {
	opts = append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, message string) error {
	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), message)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
