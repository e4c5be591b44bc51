package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
)

var (
	ErrUserNotRegistered = errors.New("user not registered")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrInvalidThreshold  = errors.New("invalid threshold")
	ErrInvalidCooldown   = errors.New("invalid cooldown")
	ErrInvalidTTL        = errors.New("invalid ttl")
	ErrAlertNotFound     = errors.New("alert not found")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

type AlertInput struct {
	Symbol string
	Rule   string
	Value  string
	// Cooldown and TTL are optional; zero means the default cooldown and no expiry.
	Cooldown time.Duration
	TTL      time.Duration
}

type AlertUsecase struct {
	users           domain.UserRepository
	alerts          domain.AlertRepository
	quota           *QuotaGate
	defaultCooldown time.Duration
	minCooldown     time.Duration
	now             func() time.Time
}

func NewAlertUsecase(users domain.UserRepository, alerts domain.AlertRepository, quota *QuotaGate, defaultCooldown, minCooldown time.Duration) *AlertUsecase {
	if defaultCooldown <= 0 {
		defaultCooldown = domain.DefaultCooldown
	}
	return &AlertUsecase{
		users:           users,
		alerts:          alerts,
		quota:           quota,
		defaultCooldown: defaultCooldown,
		minCooldown:     minCooldown,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (u *AlertUsecase) AddAlert(ctx context.Context, telegramUserID int64, input AlertInput) (*domain.Alert, error) {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	alert, err := u.buildAlert(user.ID, input)
	if err != nil {
		return nil, err
	}

	maxEnabled, err := u.quota.MaxEnabled(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := u.alerts.Create(ctx, alert, maxEnabled); err != nil {
		return nil, u.quotaError(err, maxEnabled)
	}

	return alert, nil
}

func (u *AlertUsecase) ListAlerts(ctx context.Context, telegramUserID int64) ([]domain.Alert, error) {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	return u.alerts.ListByUser(ctx, user.ID)
}

func (u *AlertUsecase) EnableAlert(ctx context.Context, telegramUserID int64, seq int) error {
	return u.setEnabled(ctx, telegramUserID, seq, true)
}

func (u *AlertUsecase) DisableAlert(ctx context.Context, telegramUserID int64, seq int) error {
	return u.setEnabled(ctx, telegramUserID, seq, false)
}

func (u *AlertUsecase) DeleteAlert(ctx context.Context, telegramUserID int64, seq int) error {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return err
	}

	if err := u.alerts.DeleteBySeq(ctx, user.ID, seq); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}

	return nil
}

func (u *AlertUsecase) Plan(ctx context.Context, telegramUserID int64) (domain.Plan, error) {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return domain.Plan{}, err
	}
	return u.quota.Plan(ctx, user)
}

func (u *AlertUsecase) setEnabled(ctx context.Context, telegramUserID int64, seq int, enabled bool) error {
	user, err := u.user(ctx, telegramUserID)
	if err != nil {
		return err
	}

	maxEnabled := domain.Unlimited
	if enabled {
		if maxEnabled, err = u.quota.MaxEnabled(ctx, user); err != nil {
			return err
		}
	}

	if err := u.alerts.SetEnabled(ctx, user.ID, seq, enabled, maxEnabled); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return u.quotaError(err, maxEnabled)
	}

	return nil
}

func (u *AlertUsecase) user(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return user, nil
}

func (u *AlertUsecase) buildAlert(userID uint, input AlertInput) (*domain.Alert, error) {
	symbol := domain.NormalizeSymbol(input.Symbol)
	if !symbolPattern.MatchString(symbol) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, input.Symbol)
	}

	rule, err := domain.ParseRuleKind(input.Rule)
	if err != nil {
		return nil, ErrInvalidRule
	}

	threshold, err := domain.ParseThreshold(input.Value)
	if err != nil {
		return nil, ErrInvalidThreshold
	}

	cooldown := input.Cooldown
	if cooldown == 0 {
		cooldown = u.defaultCooldown
	}
	if cooldown < u.minCooldown || cooldown%time.Second != 0 {
		return nil, fmt.Errorf("%w: must be whole seconds and at least %s", ErrInvalidCooldown, u.minCooldown)
	}

	alert := &domain.Alert{
		UserID:          userID,
		Symbol:          symbol,
		Rule:            rule,
		Value:           threshold.String(),
		Enabled:         true,
		CooldownSeconds: int(cooldown / time.Second),
	}

	if input.TTL < 0 {
		return nil, ErrInvalidTTL
	}
	if input.TTL > 0 {
		expiresAt := u.now().Add(input.TTL)
		alert.ExpiresAt = &expiresAt
	}

	return alert, nil
}

func (u *AlertUsecase) quotaError(err error, maxEnabled int) error {
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return fmt.Errorf("%w: free plan allows %d enabled alerts", domain.ErrQuotaExceeded, maxEnabled)
	}
	return err
}
