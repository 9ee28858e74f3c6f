// This file implements the allowance pay schedule as a tagged variant:
// a rolling 7-day window or a fixed weekday. Eligibility is computed per
// variant rather than by branching on a nullable weekday.
package core

import "time"

// PaySchedule decides whether an allowance payment is due. The two
// implementations are RollingWindow and FixedWeekday.
type PaySchedule interface {
	// Due reports whether a payment is due at now. When it is not, the
	// returned reason explains why ("already paid this week" or
	// "not the scheduled day").
	Due(now time.Time) (bool, string)
}

// RollingWindow pays whenever 7 or more days have passed since the last
// payment. A zero LastPaidAt counts as eligible.
type RollingWindow struct {
	LastPaidAt time.Time
}

func (s RollingWindow) Due(now time.Time) (bool, string) {
	if s.LastPaidAt.IsZero() {
		return true, ""
	}
	daysSince := now.Sub(s.LastPaidAt).Hours() / 24
	if daysSince >= 7 {
		return true, ""
	}
	return false, "already paid this week"
}

// FixedWeekday pays only on the configured weekday, at most once per week.
type FixedWeekday struct {
	Weekday    time.Weekday
	LastPaidAt time.Time
}

func (s FixedWeekday) Due(now time.Time) (bool, string) {
	if now.Weekday() != s.Weekday {
		return false, "not the scheduled day"
	}
	// Right day, but a payment in the last 6 days means this week is done.
	if !s.LastPaidAt.IsZero() && now.Sub(s.LastPaidAt) < 6*24*time.Hour {
		return false, "already paid this week"
	}
	return true, ""
}

// Schedule returns the account's pay schedule variant.
func (a *Account) Schedule() PaySchedule {
	if a.AllowanceWeekday != nil {
		return FixedWeekday{Weekday: *a.AllowanceWeekday, LastPaidAt: a.LastAllowancePaidAt}
	}
	return RollingWindow{LastPaidAt: a.LastAllowancePaidAt}
}
