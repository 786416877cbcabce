package domain

import (
	"errors"
	"strings"
	"time"
)

// Period is the granularity over which consumption accumulates before a reset.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	// PeriodBillingCycle behaves like monthly: the engine has no billing-cycle
	// anchor to align to, so the calendar-month approximation stands until one
	// is wired in.
	PeriodBillingCycle Period = "current_billing_cycle"
	PeriodLifetime     Period = "lifetime"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// ParsePeriod normalizes a raw period string.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodHourly:
		return PeriodHourly, nil
	case PeriodDaily:
		return PeriodDaily, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodYearly:
		return PeriodYearly, nil
	case PeriodBillingCycle:
		return PeriodBillingCycle, nil
	case PeriodLifetime:
		return PeriodLifetime, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// Advance returns the next period boundary after from. Calendar units clamp
// the day of month, so a monthly window opened on Jan 31 advances to Feb 28
// or 29 rather than skipping into March.
func (p Period) Advance(from time.Time) time.Time {
	from = from.UTC()
	switch p {
	case PeriodHourly:
		return from.Add(time.Hour)
	case PeriodDaily:
		return from.AddDate(0, 0, 1)
	case PeriodWeekly:
		return from.AddDate(0, 0, 7)
	case PeriodMonthly, PeriodBillingCycle:
		return addMonthsClamped(from, 1)
	case PeriodYearly:
		return addYearsClamped(from, 1)
	case PeriodLifetime:
		// Effectively never resets.
		return addYearsClamped(from, 100)
	default:
		return addMonthsClamped(from, 1)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()

	anchor := time.Date(year, month, 1, hour, minute, second, t.Nanosecond(), time.UTC).AddDate(0, months, 0)
	if last := daysInMonth(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, hour, minute, second, t.Nanosecond(), time.UTC)
}

func addYearsClamped(t time.Time, years int) time.Time {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()

	if last := daysInMonth(year+years, month); day > last {
		day = last
	}
	return time.Date(year+years, month, day, hour, minute, second, t.Nanosecond(), time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
