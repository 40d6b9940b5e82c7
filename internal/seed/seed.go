// Package seed preloads synthetic demo clients into the database
// port at startup. spec.md §1 treats demo seeding as an external
// boundary concern; it is kept minimal and confined to this package
// so production deployments can skip it entirely.
package seed

import (
	"context"
	"fmt"
	"time"

	"frameworks/api_wattmeter/internal/authsvc"
	"frameworks/api_wattmeter/internal/database"
	"frameworks/api_wattmeter/internal/models"
)

// Seed creates n synthetic clients with ids "0".."n-1", each
// authenticating with a token equal to its own decimal id (matching
// spec.md §8 scenario S1), an initial reading of 0 at now, and an
// opening bill for the billing period containing now.
func Seed(ctx context.Context, db database.Port, n int, pricePerUnit, dailyStandingCharge float64) error {
	now := time.Now()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", i)
		hash, err := authsvc.HashPassword(id)
		if err != nil {
			return fmt.Errorf("seed: hashing token for client %s: %w", id, err)
		}

		reading := models.Reading{Reading: 0, Time: now}
		period := models.NewBillingPeriod(now)
		bill := models.Bill{
			UnitsStart:          0,
			UnitsEnd:            0,
			ActualUsage:         0,
			StandingCharge:      dailyStandingCharge,
			Total:               dailyStandingCharge,
			PricePerUnit:        pricePerUnit,
			DailyStandingCharge: dailyStandingCharge,
			BillingPeriod:       period,
		}

		client := models.Client{
			ID:        id,
			TokenHash: hash,
			Readings:  []models.Reading{reading},
			Bills:     []models.Bill{bill},
		}
		if err := db.AddClient(ctx, id, client); err != nil {
			return fmt.Errorf("seed: adding client %s: %w", id, err)
		}
	}
	return nil
}
