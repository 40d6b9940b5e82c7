// Package billing implements the per-connection billing aggregator:
// it accepts meter readings, maintains the current bill in memory,
// and flushes to the database port at hour boundaries and on
// graceful session close.
package billing

import (
	"context"
	"errors"
	"fmt"

	"frameworks/api_wattmeter/internal/database"
	"frameworks/api_wattmeter/internal/models"
)

// Errors returned by aggregator construction and AddReading.
var (
	// ErrMissingReading is returned when construction cannot find an
	// initial reading for the client.
	ErrMissingReading = errors.New("billing: client has no prior reading")
	// ErrBillNotFound is returned when construction cannot find an
	// initial bill for the client.
	ErrBillNotFound = errors.New("billing: client has no prior bill")
	// ErrInvalidReading is returned when a submitted reading is lower
	// than the current cumulative reading.
	ErrInvalidReading = errors.New("billing: reading is lower than the current reading")
)

// Aggregator owns one client's live billing state for the lifetime of
// a session. It is not safe for concurrent use: exactly one session
// goroutine owns it.
type Aggregator struct {
	clientID            string
	pricePerUnit        float64
	dailyStandingCharge float64
	db                  database.Port

	currentReading models.Reading
	currentBill    models.Bill
	// dirty is true when currentReading has not yet been persisted as
	// an hour/day-boundary flush.
	dirty bool
}

// New constructs an Aggregator for clientID, seeding state from the
// client's last persisted reading and bill.
func New(ctx context.Context, clientID string, pricePerUnit, dailyStandingCharge float64, db database.Port) (*Aggregator, error) {
	reading, err := db.LastReading(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("billing: loading last reading: %w", err)
	}
	if reading == nil {
		return nil, ErrMissingReading
	}
	bill, err := db.LastBill(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("billing: loading last bill: %w", err)
	}
	if bill == nil {
		return nil, ErrBillNotFound
	}
	return &Aggregator{
		clientID:            clientID,
		pricePerUnit:        pricePerUnit,
		dailyStandingCharge: dailyStandingCharge,
		db:                  db,
		currentReading:      *reading,
		currentBill:         *bill,
	}, nil
}

// CurrentReading returns the most recently accepted reading.
func (a *Aggregator) CurrentReading() models.Reading { return a.currentReading }

// CurrentBill returns the bill currently being accreted.
func (a *Aggregator) CurrentBill() models.Bill { return a.currentBill }

// crossesHourBoundary reports whether r falls in a different
// date+hour bucket than the aggregator's current reading.
func crossesHourBoundary(current, r models.Reading) bool {
	cy, cm, cd := current.Time.Date()
	ry, rm, rd := r.Time.Date()
	if cy != ry || cm != rm || cd != rd {
		return true
	}
	return current.Time.Hour() != r.Time.Hour()
}

// AddReading is the central aggregator operation: spec.md §4.B.
func (a *Aggregator) AddReading(ctx context.Context, r models.Reading) error {
	if r.Reading < a.currentReading.Reading {
		return ErrInvalidReading
	}

	if crossesHourBoundary(a.currentReading, r) {
		if err := a.db.AddReading(ctx, a.clientID, r); err != nil {
			return fmt.Errorf("billing: persisting reading: %w", err)
		}
		if err := a.rollover(ctx, r); err != nil {
			return err
		}
		a.dirty = false
	} else {
		a.currentBill = a.recompute(r)
		a.dirty = true
	}

	a.currentReading = r
	return nil
}

// rollover implements bill-update-or-rollover from spec.md §4.B.
func (a *Aggregator) rollover(ctx context.Context, r models.Reading) error {
	if r.Time.Before(a.currentBill.BillingPeriod.End) {
		updated := a.recompute(r)
		if err := a.db.UpdateLastBill(ctx, a.clientID, updated); err != nil {
			return fmt.Errorf("billing: updating bill: %w", err)
		}
		a.currentBill = updated
		return nil
	}

	fresh := a.createNewBill(r)
	if err := a.db.AddBill(ctx, a.clientID, fresh); err != nil {
		return fmt.Errorf("billing: persisting new bill: %w", err)
	}
	a.currentBill = fresh
	return nil
}

// recompute rebuilds the current bill's derived fields for reading r,
// per the invariants in spec.md §3.
func (a *Aggregator) recompute(r models.Reading) models.Bill {
	b := a.currentBill
	b.UnitsEnd = r.Reading
	b.PricePerUnit = a.pricePerUnit
	b.DailyStandingCharge = a.dailyStandingCharge
	b.ActualUsage = (b.UnitsEnd - b.UnitsStart) * a.pricePerUnit
	b.StandingCharge = float64(b.DaysElapsed(r)) * a.dailyStandingCharge
	b.Total = b.ActualUsage + b.StandingCharge
	return b
}

// createNewBill opens a fresh billing period at r. This preserves the
// reference implementation's first-bill formula exactly, including
// the quirk documented in spec.md §9 open question 1: actual_usage is
// computed from the opening reading value even though
// units_start == units_end would otherwise imply zero usage.
func (a *Aggregator) createNewBill(r models.Reading) models.Bill {
	period := models.NewBillingPeriod(r.Time)
	return models.Bill{
		UnitsStart:          r.Reading,
		UnitsEnd:            r.Reading,
		ActualUsage:         r.Reading * a.pricePerUnit,
		StandingCharge:      a.dailyStandingCharge,
		Total:               r.Reading*a.pricePerUnit + a.dailyStandingCharge,
		PricePerUnit:        a.pricePerUnit,
		DailyStandingCharge: a.dailyStandingCharge,
		BillingPeriod:       period,
	}
}

// Flush persists the last in-hour reading and its bill effect on
// graceful session close. It is a no-op if nothing is dirty.
func (a *Aggregator) Flush(ctx context.Context) error {
	if !a.dirty {
		return nil
	}
	if err := a.db.AddReading(ctx, a.clientID, a.currentReading); err != nil {
		return fmt.Errorf("billing: flushing reading: %w", err)
	}
	if err := a.rollover(ctx, a.currentReading); err != nil {
		return err
	}
	a.dirty = false
	return nil
}
