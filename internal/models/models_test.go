package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewBillingPeriodSameDayNextMonth(t *testing.T) {
	start := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	p := NewBillingPeriod(start)
	require.True(t, p.Start.Equal(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)))
	require.True(t, p.End.Equal(time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC)))
}

func TestNewBillingPeriodClampsShortMonth(t *testing.T) {
	start := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	p := NewBillingPeriod(start)
	require.True(t, p.End.Equal(time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)), "expected clamp to Feb 28, got %v", p.End)
}

func TestNewBillingPeriodLeapYear(t *testing.T) {
	start := time.Date(2028, time.January, 31, 0, 0, 0, 0, time.UTC)
	p := NewBillingPeriod(start)
	require.True(t, p.End.Equal(time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC)), "expected clamp to Feb 29 in leap year, got %v", p.End)
}

func TestBillDaysElapsedInclusive(t *testing.T) {
	b := Bill{BillingPeriod: BillingPeriod{Start: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)}}
	r := Reading{Time: time.Date(2026, time.June, 1, 23, 0, 0, 0, time.UTC)}
	require.Equal(t, 1, b.DaysElapsed(r), "expected 1 day elapsed on opening day")

	r.Time = time.Date(2026, time.June, 5, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 5, b.DaysElapsed(r), "expected 5 days elapsed")
}
