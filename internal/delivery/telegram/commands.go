package telegram

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/NasaVasa/cryptoalerts/internal/usecase"
)

const HelpText = `Commands:
/start - register
/help - show this help
/plan - show your plan and alert usage
/price <SYMBOL> - current price
/add_alert <SYMBOL> <above|below> <value> [cooldown] [ttl]
/alerts - list your alerts
/enable #<n>
/disable #<n>
/delete #<n>

Notes:
- Symbols without a quote asset are paired with USDT (BTC means BTCUSDT).
- Alerts fire when the price is strictly above or below the value.
- Cooldown defaults to 15m; ttl (e.g. 24h or 7d) makes the alert expire.
Example:
/add_alert BTC above 70000 30m 7d
`

var ErrInvalidArguments = errors.New("invalid arguments")

func ParseAddAlertArgs(args string) (usecase.AlertInput, error) {
	parts := strings.Fields(args)
	if len(parts) < 3 || len(parts) > 5 {
		return usecase.AlertInput{}, ErrInvalidArguments
	}
	input := usecase.AlertInput{Symbol: parts[0], Rule: parts[1], Value: parts[2]}
	if len(parts) >= 4 {
		cooldown, err := ParseDuration(parts[3])
		if err != nil {
			return usecase.AlertInput{}, err
		}
		input.Cooldown = cooldown
	}
	if len(parts) == 5 {
		ttl, err := ParseDuration(parts[4])
		if err != nil {
			return usecase.AlertInput{}, err
		}
		input.TTL = ttl
	}
	return input, nil
}

// ParseDuration accepts Go durations, a day suffix ("7d") or bare seconds ("900").
// Values that do not fit in a time.Duration are rejected.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return 0, ErrInvalidArguments
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 || int64(seconds) > math.MaxInt64/int64(time.Second) {
			return 0, ErrInvalidArguments
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 || int64(n) > math.MaxInt64/int64(24*time.Hour) {
			return 0, ErrInvalidArguments
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, ErrInvalidArguments
	}
	return d, nil
}

// ParseAlertSeq reads the per-user alert number, with or without a leading '#'.
func ParseAlertSeq(args string) (int, error) {
	value := strings.TrimPrefix(strings.TrimSpace(args), "#")
	if value == "" {
		return 0, ErrInvalidArguments
	}
	seq, err := strconv.Atoi(value)
	if err != nil || seq <= 0 {
		return 0, ErrInvalidArguments
	}
	return seq, nil
}

func ParseSymbol(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) != 1 {
		return "", ErrInvalidArguments
	}
	return parts[0], nil
}

func formatAlertLine(alert domain.Alert, now time.Time) string {
	status := "disabled"
	switch {
	case alert.ExpiresAt != nil && !alert.ExpiresAt.After(now):
		status = "expired"
	case alert.Enabled:
		status = "enabled"
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "#%d [%s] %s %s %s, cooldown %s", alert.UserSeq, status, alert.Symbol, alert.Rule.Symbol(), alert.Value, formatDuration(alert.Cooldown()))
	if alert.LastFiredAt != nil {
		fmt.Fprintf(&builder, ", last fired %s", alert.LastFiredAt.UTC().Format(time.DateTime))
		if next := domain.NextEligibleAt(alert.LastFiredAt, alert.Cooldown()); next.After(now) {
			fmt.Fprintf(&builder, ", quiet until %s", next.UTC().Format(time.TimeOnly))
		}
	}
	if alert.ExpiresAt != nil && status != "expired" {
		fmt.Fprintf(&builder, ", expires %s", alert.ExpiresAt.UTC().Format(time.DateTime))
	}
	return builder.String()
}

func formatPlan(plan domain.Plan) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Plan: %s\n", plan.Tier)
	if plan.Unlimited() {
		fmt.Fprintf(&builder, "Enabled alerts: %d (unlimited)", plan.EnabledCount)
	} else {
		fmt.Fprintf(&builder, "Enabled alerts: %d/%d", plan.EnabledCount, plan.FreeLimit)
	}
	if plan.Tier == domain.TierPremium && plan.PeriodEnd != nil {
		fmt.Fprintf(&builder, "\nPremium until %s", plan.PeriodEnd.UTC().Format(time.DateOnly))
	}
	return builder.String()
}

func formatQuote(quote domain.Quote) string {
	return fmt.Sprintf("%s: %s (as of %s UTC)", quote.Symbol, quote.Price.String(), quote.ObservedAt.UTC().Format(time.TimeOnly))
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}
