package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// coinsRepo implements CoinStore for PostgreSQL.
type coinsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCoinsRepo creates a PostgreSQL coins repository.
func NewCoinsRepo(db *sqlx.DB, timeout time.Duration) persistence.CoinStore {
	return &coinsRepo{db: db, timeout: timeout}
}

// UpsertCoin inserts the coin or refreshes its name, returning the id.
// Coins are never deleted; is_active flips only through listing sync.
func (r *coinsRepo) UpsertCoin(ctx context.Context, symbol, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO coins (symbol, name, is_active)
		VALUES ($1, $2, true)
		ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, symbol, name).Scan(&id); err != nil {
		return 0, &models.StoreError{Op: "upsert coin", Err: err}
	}

	return id, nil
}

// exchangesRepo implements ExchangeStore for PostgreSQL.
type exchangesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewExchangesRepo creates a PostgreSQL exchanges repository.
func NewExchangesRepo(db *sqlx.DB, timeout time.Duration) persistence.ExchangeStore {
	return &exchangesRepo{db: db, timeout: timeout}
}

// ExchangeIDByName resolves a canonical exchange name to its id. The
// exchanges table is seeded, so a miss is a configuration problem.
func (r *exchangesRepo) ExchangeIDByName(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowxContext(ctx, `SELECT id FROM exchanges WHERE name = $1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, &models.StoreError{Op: "exchange id by name", Err: err}
	}

	return id, nil
}
