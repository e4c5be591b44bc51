package domain

import "time"

const DefaultCooldown = 900 * time.Second

type Alert struct {
	ID              uint
	UserID          uint
	UserSeq         int
	Symbol          string
	Rule            RuleKind
	Value           string
	Enabled         bool
	CooldownSeconds int
	LastFiredAt     *time.Time
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

// Active reports whether the alert is evaluated by the scheduler at now.
func (a Alert) Active(now time.Time) bool {
	if !a.Enabled {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// DueAlert is an alert joined with the messaging identity of its owner.
type DueAlert struct {
	Alert
	TelegramUserID int64
}

type AlertStats struct {
	Users               int64
	PremiumUsers        int64
	ActiveAlerts        int64
	ActiveSubscriptions int64
}

// FiredEvent describes one recorded fire.
type FiredEvent struct {
	AlertID        uint      `json:"alert_id"`
	UserSeq        int       `json:"user_seq"`
	TelegramUserID int64     `json:"telegram_user_id"`
	Symbol         string    `json:"symbol"`
	Rule           RuleKind  `json:"rule"`
	Value          string    `json:"value"`
	Price          string    `json:"price"`
	FiredAt        time.Time `json:"fired_at"`
	Dispatched     bool      `json:"dispatched"`
}

// CycleReport summarises one evaluation cycle.
type CycleReport struct {
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Symbols        int           `json:"symbols"`
	PricedSymbols  int           `json:"priced_symbols"`
	Evaluated      int           `json:"evaluated"`
	Skipped        int           `json:"skipped"`
	Matched        int           `json:"matched"`
	Fired          int           `json:"fired"`
	DispatchFailed int           `json:"dispatch_failed"`
	Invalid        int           `json:"invalid"`
	Contended      int           `json:"contended"`
}
