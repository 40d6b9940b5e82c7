// Package database defines the storage capability the billing
// aggregator and session engine depend on, plus an in-memory
// reference implementation and an optional Postgres-backed one.
package database

import (
	"context"
	"errors"

	"frameworks/api_wattmeter/internal/models"
)

// Sentinel errors returned by Port operations. Callers match on these
// with errors.Is; implementations may wrap them with additional
// context via fmt.Errorf("...: %w", ErrX).
var (
	ErrConflict = errors.New("database: client already exists")
	ErrNotFound = errors.New("database: client not found")
	ErrNoBill   = errors.New("database: client has no bill yet")
)

// Port is the abstract CRUD surface the billing aggregator and the
// session engine's auth phase consume. Implementations must make
// operations on a single client id linearizable with respect to each
// other, while operations on different client ids must not serialize.
type Port interface {
	AddClient(ctx context.Context, id string, client models.Client) error
	RemoveClient(ctx context.Context, id string) error
	AddReading(ctx context.Context, id string, r models.Reading) error
	AddBill(ctx context.Context, id string, b models.Bill) error
	UpdateLastBill(ctx context.Context, id string, b models.Bill) error
	LastBill(ctx context.Context, id string) (*models.Bill, error)
	LastReading(ctx context.Context, id string) (*models.Reading, error)
	// ClientExists returns the stored token hash for id, or ("", nil)
	// if no such client exists.
	ClientExists(ctx context.Context, id string) (string, error)
}
