package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"frameworks/api_wattmeter/internal/logging"
	"frameworks/api_wattmeter/internal/models"
)

// PostgresConfig mirrors the connection-pool tuning the rest of the
// monorepo applies to every Postgres-backed service.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig returns the monorepo's standard pool sizing.
func DefaultPostgresConfig(url string) PostgresConfig {
	return PostgresConfig{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresStore implements Port against a `clients`/`readings`/`bills`
// schema. No row locks are taken: each operation runs as plain
// statements on the pool, and the client-existence check that
// AddReading, AddBill, UpdateLastBill, LastBill and LastReading make
// is a separate statement from the write or read that follows it.
// Cross-id operations run on independent connections from the pool and
// never serialize against one another.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a Postgres connection pool.
func NewPostgresStore(cfg PostgresConfig, logger logging.Logger) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database: postgres URL is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("database: failed to open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: failed to ping postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if logger != nil {
		logger.WithFields(logging.Fields{
			"max_open_conns": cfg.MaxOpenConns,
			"max_idle_conns": cfg.MaxIdleConns,
		}).Info("connected to postgres")
	}
	return &PostgresStore{db: db}, nil
}

// Ping satisfies the health-check contract in internal/monitoring.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) AddClient(ctx context.Context, id string, client models.Client) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO clients (id, token_hash) VALUES ($1, $2)`,
		id, client.TokenHash)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (p *PostgresStore) RemoveClient(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) AddReading(ctx context.Context, id string, r models.Reading) error {
	tag, err := p.clientExistsRow(ctx, id)
	if err != nil {
		return err
	}
	if !tag {
		return ErrNotFound
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO readings (client_id, reading, observed_at) VALUES ($1, $2, $3)`,
		id, r.Reading, r.Time)
	return err
}

func (p *PostgresStore) AddBill(ctx context.Context, id string, b models.Bill) error {
	tag, err := p.clientExistsRow(ctx, id)
	if err != nil {
		return err
	}
	if !tag {
		return ErrNotFound
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO bills (client_id, payload, period_start, period_end) VALUES ($1, $2, $3, $4)`,
		id, payload, b.BillingPeriod.Start, b.BillingPeriod.End)
	return err
}

func (p *PostgresStore) UpdateLastBill(ctx context.Context, id string, b models.Bill) error {
	tag, err := p.clientExistsRow(ctx, id)
	if err != nil {
		return err
	}
	if !tag {
		return ErrNotFound
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE bills SET payload = $2, period_start = $3, period_end = $4
		WHERE id = (SELECT id FROM bills WHERE client_id = $1 ORDER BY id DESC LIMIT 1)`,
		id, payload, b.BillingPeriod.Start, b.BillingPeriod.End)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoBill
	}
	return nil
}

func (p *PostgresStore) LastBill(ctx context.Context, id string) (*models.Bill, error) {
	exists, err := p.clientExistsRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	var payload []byte
	err = p.db.QueryRowContext(ctx,
		`SELECT payload FROM bills WHERE client_id = $1 ORDER BY id DESC LIMIT 1`, id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b models.Bill
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) LastReading(ctx context.Context, id string) (*models.Reading, error) {
	exists, err := p.clientExistsRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	var r models.Reading
	err = p.db.QueryRowContext(ctx,
		`SELECT reading, observed_at FROM readings WHERE client_id = $1 ORDER BY id DESC LIMIT 1`, id,
	).Scan(&r.Reading, &r.Time)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) ClientExists(ctx context.Context, id string) (string, error) {
	var hash string
	err := p.db.QueryRowContext(ctx, `SELECT token_hash FROM clients WHERE id = $1`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (p *PostgresStore) clientExistsRow(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), e.g. a duplicate client id insert.
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
