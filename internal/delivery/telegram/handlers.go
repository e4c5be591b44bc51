package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/NasaVasa/cryptoalerts/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type UserService interface {
	StartOrGetUser(ctx context.Context, telegramUserID int64, username string) (*domain.User, error)
}

type AlertService interface {
	AddAlert(ctx context.Context, telegramUserID int64, input usecase.AlertInput) (*domain.Alert, error)
	ListAlerts(ctx context.Context, telegramUserID int64) ([]domain.Alert, error)
	EnableAlert(ctx context.Context, telegramUserID int64, seq int) error
	DisableAlert(ctx context.Context, telegramUserID int64, seq int) error
	DeleteAlert(ctx context.Context, telegramUserID int64, seq int) error
	Plan(ctx context.Context, telegramUserID int64) (domain.Plan, error)
}

type PriceService interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

type Handlers struct {
	userUC  UserService
	alertUC AlertService
	priceUC PriceService
	logger  *zap.Logger
	now     func() time.Time
}

func NewHandlers(userUC UserService, alertUC AlertService, priceUC PriceService, logger *zap.Logger) *Handlers {
	return &Handlers{
		userUC:  userUC,
		alertUC: alertUC,
		priceUC: priceUC,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handlers) HandleUpdate(ctx context.Context, api Sender, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.From == nil {
		return
	}
	if update.Message.IsCommand() {
		h.handleCommand(ctx, api, update)
		return
	}
}

func (h *Handlers) handleCommand(ctx context.Context, api Sender, update tgbotapi.Update) {
	command := update.Message.Command()
	args := update.Message.CommandArguments()
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	username := update.Message.From.UserName

	h.logger.Info(
		"telegram command received",
		zap.Int64("chat_id", chatID),
		zap.Int64("telegram_user_id", userID),
		zap.String("username", username),
		zap.String("command", command),
		zap.String("args", args),
	)

	switch command {
	case "start":
		_, err := h.userUC.StartOrGetUser(ctx, userID, username)
		if err != nil {
			h.logger.Warn("start command failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, "Failed to register. Please try again.")
			return
		}
		h.logger.Info("start command complete", zap.Int64("telegram_user_id", userID))
		h.reply(api, chatID, "Welcome to Crypto Alerts.\n\n"+HelpText)
	case "help":
		h.reply(api, chatID, HelpText)
	case "plan":
		plan, err := h.alertUC.Plan(ctx, userID)
		if err != nil {
			h.logger.Warn("plan failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.reply(api, chatID, formatPlan(plan))
	case "price":
		symbol, err := ParseSymbol(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /price <SYMBOL>")
			return
		}
		quote, err := h.priceUC.Quote(ctx, symbol)
		if err != nil {
			h.logger.Warn("price failed", zap.Int64("telegram_user_id", userID), zap.String("symbol", symbol), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.reply(api, chatID, formatQuote(quote))
	case "add_alert":
		input, err := ParseAddAlertArgs(args)
		if err != nil {
			h.logger.Warn("add_alert invalid args", zap.Int64("telegram_user_id", userID), zap.String("args", args))
			h.reply(api, chatID, "Usage: /add_alert <SYMBOL> <above|below> <value> [cooldown] [ttl]")
			return
		}
		alert, err := h.alertUC.AddAlert(ctx, userID, input)
		if err != nil {
			h.logger.Warn("add_alert failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.logger.Info("add_alert complete", zap.Int64("telegram_user_id", userID), zap.Uint("alert_id", alert.ID), zap.Int("user_seq", alert.UserSeq))
		h.reply(api, chatID, "Alert created: "+formatAlertLine(*alert, h.now()))
	case "alerts":
		alerts, err := h.alertUC.ListAlerts(ctx, userID)
		if err != nil {
			h.logger.Warn("alerts list failed", zap.Int64("telegram_user_id", userID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		if len(alerts) == 0 {
			h.reply(api, chatID, "No alerts yet. Use /add_alert to create one.")
			return
		}
		now := h.now()
		var builder strings.Builder
		builder.WriteString("Your alerts:\n")
		for _, alert := range alerts {
			builder.WriteString(formatAlertLine(alert, now))
			builder.WriteString("\n")
		}
		h.reply(api, chatID, builder.String())
	case "enable", "disable", "delete":
		h.handleAlertToggle(ctx, api, chatID, userID, command, args)
	default:
		h.logger.Warn("unknown command", zap.Int64("telegram_user_id", userID), zap.String("command", command))
		h.reply(api, chatID, "Unknown command.\n\n"+HelpText)
	}
}

func (h *Handlers) handleAlertToggle(ctx context.Context, api Sender, chatID, userID int64, command, args string) {
	seq, err := ParseAlertSeq(args)
	if err != nil {
		h.logger.Warn(command+" invalid args", zap.Int64("telegram_user_id", userID), zap.String("args", args))
		h.reply(api, chatID, fmt.Sprintf("Usage: /%s #<n>", command))
		return
	}

	var past string
	switch command {
	case "enable":
		err, past = h.alertUC.EnableAlert(ctx, userID, seq), "enabled"
	case "disable":
		err, past = h.alertUC.DisableAlert(ctx, userID, seq), "disabled"
	default:
		err, past = h.alertUC.DeleteAlert(ctx, userID, seq), "deleted"
	}
	if err != nil {
		h.logger.Warn(command+" failed", zap.Int64("telegram_user_id", userID), zap.Int("user_seq", seq), zap.Error(err))
		h.reply(api, chatID, h.alertErrorMessage(err))
		return
	}
	h.logger.Info(command+" complete", zap.Int64("telegram_user_id", userID), zap.Int("user_seq", seq))
	h.reply(api, chatID, fmt.Sprintf("Alert #%d %s.", seq, past))
}

func (h *Handlers) alertErrorMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrUserNotRegistered):
		return "Please /start to register first."
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "Cannot add another enabled alert (" + err.Error() + "). Disable or delete one, or upgrade to premium."
	case errors.Is(err, usecase.ErrInvalidSymbol):
		return "Invalid symbol. Use a Binance pair like BTCUSDT or an asset like BTC."
	case errors.Is(err, usecase.ErrInvalidRule):
		return "Invalid condition. Use above or below."
	case errors.Is(err, usecase.ErrInvalidThreshold):
		return "Invalid value. Use a positive decimal like 30000 or 0.25."
	case errors.Is(err, usecase.ErrInvalidCooldown):
		return "Invalid cooldown: " + err.Error() + "."
	case errors.Is(err, usecase.ErrInvalidTTL):
		return "Invalid ttl. Use a duration like 24h or 7d."
	case errors.Is(err, usecase.ErrAlertNotFound):
		return "Alert not found. Use /alerts to see your alert numbers."
	case errors.Is(err, domain.ErrSymbolNotFound):
		return "Symbol not found on Binance."
	case errors.Is(err, domain.ErrFeedUnavailable):
		return "Price feed is unavailable right now. Please try again."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func (h *Handlers) reply(api Sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := api.Send(msg); err != nil {
		h.logger.Warn("failed to send message", zap.Error(err))
	}
}
