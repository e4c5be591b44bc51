package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
}

// NewAPI builds a client whose requests are bounded by sendTimeout on top of the long-poll window.
func NewAPI(token string, sendTimeout time.Duration, pollTimeout int) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: sendTimeout + time.Duration(pollTimeout)*time.Second}
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout}
}

func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.HandleUpdate(ctx, b.api, update)
		}
	}
}

// Notifier delivers fired alerts as direct messages.
type Notifier struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
}

func NewNotifier(sender Sender, timeout time.Duration, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, timeout: timeout, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, telegramUserID int64, text string) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		_, err := n.sender.Send(tgbotapi.NewMessage(telegramUserID, text))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			n.logger.Warn("failed to notify", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
		}
		return err
	case <-ctx.Done():
		n.logger.Warn("notify timed out", zap.Int64("telegram_user_id", telegramUserID), zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
