package domain

import "time"

func CooldownEligible(lastFiredAt *time.Time, cooldown time.Duration, now time.Time) bool {
	if lastFiredAt == nil {
		return true
	}
	return now.Sub(*lastFiredAt) >= cooldown
}

// NextEligibleAt returns the zero time when the alert may fire immediately.
func NextEligibleAt(lastFiredAt *time.Time, cooldown time.Duration) time.Time {
	if lastFiredAt == nil {
		return time.Time{}
	}
	return lastFiredAt.Add(cooldown)
}
