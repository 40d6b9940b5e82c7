package seed

import (
	"context"
	"testing"

	"frameworks/api_wattmeter/internal/authsvc"
	"frameworks/api_wattmeter/internal/database"

	"github.com/stretchr/testify/require"
)

func TestSeedCreatesAuthenticableClients(t *testing.T) {
	ctx := context.Background()
	db := database.NewInMemoryStore()
	require.NoError(t, Seed(ctx, db, 3, 0.2, 0.4))

	for _, id := range []string{"0", "1", "2"} {
		hash, err := db.ClientExists(ctx, id)
		require.NoError(t, err)
		require.NotEmpty(t, hash, "expected client %s to exist", id)
		require.True(t, (authsvc.Bcrypt{}).Verify(id, hash), "expected client %s's own id to authenticate as its token", id)

		reading, err := db.LastReading(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, reading)
		require.Zero(t, reading.Reading, "expected opening reading of 0 for client %s", id)

		bill, err := db.LastBill(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, bill)
		require.Equal(t, 0.4, bill.Total, "expected opening bill total 0.4 for client %s", id)
	}
}

func TestSeedRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	db := database.NewInMemoryStore()
	require.NoError(t, Seed(ctx, db, 2, 0.2, 0.4))
	require.Error(t, Seed(ctx, db, 2, 0.2, 0.4), "expected conflict re-seeding the same ids")
}
