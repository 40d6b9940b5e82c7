package billing

import (
	"context"
	"testing"
	"time"

	"frameworks/api_wattmeter/internal/database"
	"frameworks/api_wattmeter/internal/models"

	"github.com/stretchr/testify/require"
)

// countingStore wraps an InMemoryStore to count AddReading/AddBill/
// UpdateLastBill calls, for the flush-idempotence and hour-boundary
// invariants in spec.md §8.
type countingStore struct {
	*database.InMemoryStore
	addReadingCalls int
	addBillCalls    int
	updateBillCalls int
}

func newCountingStore() *countingStore {
	return &countingStore{InMemoryStore: database.NewInMemoryStore()}
}

func (c *countingStore) AddReading(ctx context.Context, id string, r models.Reading) error {
	c.addReadingCalls++
	return c.InMemoryStore.AddReading(ctx, id, r)
}

func (c *countingStore) AddBill(ctx context.Context, id string, b models.Bill) error {
	c.addBillCalls++
	return c.InMemoryStore.AddBill(ctx, id, b)
}

func (c *countingStore) UpdateLastBill(ctx context.Context, id string, b models.Bill) error {
	c.updateBillCalls++
	return c.InMemoryStore.UpdateLastBill(ctx, id, b)
}

const clientID = "0"

func seedClient(t *testing.T, store database.Port, reading models.Reading, bill models.Bill) {
	t.Helper()
	ctx := context.Background()
	client := models.Client{ID: clientID, TokenHash: "x", Readings: []models.Reading{reading}, Bills: []models.Bill{bill}}
	require.NoError(t, store.AddClient(ctx, clientID, client))
}

func openingBill(start time.Time, pricePerUnit, dailyCharge float64) models.Bill {
	return models.Bill{
		UnitsStart:          0,
		UnitsEnd:            0,
		ActualUsage:         0,
		StandingCharge:      dailyCharge,
		Total:               dailyCharge,
		PricePerUnit:        pricePerUnit,
		DailyStandingCharge: dailyCharge,
		BillingPeriod:       models.NewBillingPeriod(start),
	}
}

func TestNewMissingReading(t *testing.T) {
	store := database.NewInMemoryStore()
	ctx := context.Background()
	bill := openingBill(time.Now(), 0.2, 0.4)
	require.NoError(t, store.AddClient(ctx, clientID, models.Client{ID: clientID, Bills: []models.Bill{bill}}))

	_, err := New(ctx, clientID, 0.2, 0.4, store)
	require.ErrorIs(t, err, ErrMissingReading)
}

func TestNewBillNotFound(t *testing.T) {
	store := database.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.AddClient(ctx, clientID, models.Client{ID: clientID, Readings: []models.Reading{{Reading: 0, Time: time.Now()}}}))

	_, err := New(ctx, clientID, 0.2, 0.4, store)
	require.ErrorIs(t, err, ErrBillNotFound)
}

// TestReadingRoundTrip is scenario S4 from spec.md §8.
func TestReadingRoundTrip(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
	store := database.NewInMemoryStore()
	seedClient(t, store, models.Reading{Reading: 0, Time: t0}, openingBill(t0, 0.2, 0.4))

	agg, err := New(ctx, clientID, 0.2, 0.4, store)
	require.NoError(t, err)

	r := models.Reading{Reading: 100.0, Time: t0.Add(10 * time.Minute)}
	require.NoError(t, agg.AddReading(ctx, r))

	bill := agg.CurrentBill()
	require.Equal(t, 20.0, bill.ActualUsage)
	require.Equal(t, 0.4, bill.StandingCharge)
	require.Equal(t, 20.4, bill.Total)
	require.Equal(t, 100.0, bill.UnitsEnd)
}

// TestRejectedBackwardsReading is scenario S5.
func TestRejectedBackwardsReading(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
	store := newCountingStore()
	seedClient(t, store, models.Reading{Reading: 10.0, Time: t0}, openingBill(t0, 0.2, 0.4))

	agg, err := New(ctx, clientID, 0.2, 0.4, store)
	require.NoError(t, err)

	err = agg.AddReading(ctx, models.Reading{Reading: 5.0, Time: t0.Add(time.Minute)})
	require.ErrorIs(t, err, ErrInvalidReading)
	require.Equal(t, 10.0, agg.CurrentReading().Reading, "current reading should remain 10.0")
	require.Zero(t, store.addReadingCalls, "expected no DB writes")
}

// TestHourBoundaryFlush is scenario S6: crossing an hour boundary
// persists exactly one reading and updates the bill in place (same
// billing period, no rollover).
func TestHourBoundaryFlush(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, time.July, 1, 10, 59, 0, 0, time.UTC)
	store := newCountingStore()
	seedClient(t, store, models.Reading{Reading: 10.0, Time: t0}, openingBill(t0, 0.2, 0.4))

	agg, err := New(ctx, clientID, 0.2, 0.4, store)
	require.NoError(t, err)

	next := models.Reading{Reading: 15.0, Time: time.Date(2026, time.July, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, agg.AddReading(ctx, next))

	require.Equal(t, 1, store.addReadingCalls, "expected exactly 1 AddReading call")
	require.Equal(t, 1, store.updateBillCalls, "expected exactly 1 UpdateLastBill call")
	require.Zero(t, store.addBillCalls, "expected no new bill (same billing period)")
}

// TestSameHourNoPersist covers invariant 5: two readings sharing
// date+hour do not trigger a second AddReading DB call.
func TestSameHourNoPersist(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)
	store := newCountingStore()
	seedClient(t, store, models.Reading{Reading: 10.0, Time: t0}, openingBill(t0, 0.2, 0.4))

	agg, err := New(ctx, clientID, 0.2, 0.4, store)
	require.NoError(t, err)
	require.NoError(t, agg.AddReading(ctx, models.Reading{Reading: 12.0, Time: t0.Add(30 * time.Minute)}))
	require.Zero(t, store.addReadingCalls, "same-hour reading should not persist")
}

// TestFlushIdempotence covers invariant 4.
func TestFlushIdempotence(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)
	store := newCountingStore()
	seedClient(t, store, models.Reading{Reading: 10.0, Time: t0}, openingBill(t0, 0.2, 0.4))

	agg, err := New(ctx, clientID, 0.2, 0.4, store)
	require.NoError(t, err)
	require.NoError(t, agg.AddReading(ctx, models.Reading{Reading: 12.0, Time: t0.Add(30 * time.Minute)}))

	require.NoError(t, agg.Flush(ctx), "first flush")
	require.NoError(t, agg.Flush(ctx), "second flush")
	require.Equal(t, 1, store.addReadingCalls, "expected exactly 1 AddReading call total across both flushes")
}

// TestRollover covers invariant 3: a reading past the billing period
// end opens a new bill and leaves the prior one untouched.
func TestRollover(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)
	store := newCountingStore()
	seedClient(t, store, models.Reading{Reading: 10.0, Time: t0}, openingBill(t0, 0.2, 0.4))

	agg, err := New(ctx, clientID, 0.2, 0.4, store)
	require.NoError(t, err)

	next := models.Reading{Reading: 20.0, Time: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, agg.AddReading(ctx, next))
	require.Equal(t, 1, store.addBillCalls, "expected a new bill to be persisted")
	require.Zero(t, store.updateBillCalls, "expected the prior bill to be left untouched")

	bill := agg.CurrentBill()
	require.Equal(t, 20.0, bill.UnitsStart)
	require.Equal(t, 20.0, bill.UnitsEnd)
}
