// Package models holds the plain data types shared by the billing
// aggregator, the database port, and the wire codec.
package models

import "time"

// Reading is a cumulative meter value observed at a point in time.
// Reading values are non-negative and, for a given client, must be
// monotonically non-decreasing.
type Reading struct {
	Reading float64   `json:"reading"`
	Time    time.Time `json:"time"`
}

// BillingPeriod is a half-open interval [Start, End) of calendar
// dates. End is Start advanced by one calendar month: same
// day-of-month, or the last day of the target month if it is shorter.
type BillingPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewBillingPeriod builds the billing period that starts on the date
// component of t.
func NewBillingPeriod(t time.Time) BillingPeriod {
	start := dateOnly(t)
	return BillingPeriod{Start: start, End: addCalendarMonth(start)}
}

// dateOnly truncates a time to midnight UTC of its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addCalendarMonth advances start by one calendar month, clamping to
// the last day of the target month when the source day-of-month does
// not exist there (e.g. Jan 31 -> Feb 28/29).
func addCalendarMonth(start time.Time) time.Time {
	y, m, d := start.Date()
	targetMonth := m + 1
	targetYear := y
	if targetMonth > time.December {
		targetMonth -= time.December
		targetYear++
	}
	lastDay := lastDayOfMonth(targetYear, targetMonth)
	if d > lastDay {
		d = lastDay
	}
	return time.Date(targetYear, targetMonth, d, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}

// Bill is an accreting summary over one billing period.
type Bill struct {
	UnitsStart          float64       `json:"units_start"`
	UnitsEnd            float64       `json:"units_end"`
	ActualUsage         float64       `json:"actual_usage"`
	StandingCharge      float64       `json:"standing_charge"`
	Total               float64       `json:"total"`
	PricePerUnit        float64       `json:"price_per_unit"`
	DailyStandingCharge float64       `json:"daily_standing_charge"`
	BillingPeriod       BillingPeriod `json:"billing_period"`
}

// DaysElapsed returns the inclusive day count between the billing
// period start and the date of r, per spec.md §3 (first day counts as 1).
func (b Bill) DaysElapsed(r Reading) int {
	start := dateOnly(b.BillingPeriod.Start)
	day := dateOnly(r.Time)
	return int(day.Sub(start).Hours()/24) + 1
}

// Client is the durable record the database port stores per meter.
type Client struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	Readings  []Reading `json:"readings,omitempty"`
	Bills     []Bill    `json:"bills,omitempty"`
}
