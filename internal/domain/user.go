package domain

import "time"

type User struct {
	ID             uint
	TelegramUserID int64
	Username       string
	IsPremium      bool
	LastAlertSeq   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
