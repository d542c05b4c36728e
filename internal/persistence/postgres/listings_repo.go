package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// listingsRepo implements ListingStore for PostgreSQL.
type listingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewListingsRepo creates a PostgreSQL listings repository.
func NewListingsRepo(db *sqlx.DB, timeout time.Duration) persistence.ListingStore {
	return &listingsRepo{db: db, timeout: timeout}
}

// UpsertListing inserts or reactivates a venue-coin listing. The
// (exchange_id, coin_id) pair is unique; repeated syncs refresh the
// market symbol and flip is_active back on.
func (r *listingsRepo) UpsertListing(ctx context.Context, exchangeID, coinID int64, marketSymbol, base, quote string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO coin_listings (exchange_id, coin_id, market_symbol, base, quote, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		ON CONFLICT (exchange_id, coin_id) DO UPDATE SET
			market_symbol = EXCLUDED.market_symbol,
			base = EXCLUDED.base,
			quote = EXCLUDED.quote,
			is_active = true`

	if _, err := r.db.ExecContext(ctx, query, exchangeID, coinID, marketSymbol, base, quote); err != nil {
		return &models.StoreError{Op: "upsert listing", Err: err}
	}

	return nil
}

// DeactivateListingsExcept soft-deactivates the venue's active listings
// whose coin symbol is not in keep. An empty keep set is a no-op so a
// failed or empty upstream response never wipes a venue's catalog.
func (r *listingsRepo) DeactivateListingsExcept(ctx context.Context, exchangeID int64, keep []string) (int64, error) {
	if len(keep) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE coin_listings cl
		SET is_active = false
		FROM coins c
		WHERE c.id = cl.coin_id
		  AND cl.exchange_id = $1
		  AND cl.is_active = true
		  AND c.symbol <> ALL($2)`

	res, err := r.db.ExecContext(ctx, query, exchangeID, pq.Array(keep))
	if err != nil {
		return 0, &models.StoreError{Op: "deactivate listings", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, &models.StoreError{Op: "deactivate listings", Err: err}
	}

	return n, nil
}

// ActiveListedCoinIDs returns coin symbol -> coin id for the venue's
// active listings.
func (r *listingsRepo) ActiveListedCoinIDs(ctx context.Context, exchangeID int64) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT c.symbol, cl.coin_id
		FROM coin_listings cl
		JOIN coins c ON c.id = cl.coin_id
		WHERE cl.exchange_id = $1 AND cl.is_active = true`

	rows, err := r.db.QueryxContext(ctx, query, exchangeID)
	if err != nil {
		return nil, &models.StoreError{Op: "active listed coin ids", Err: err}
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var coinID int64
		if err := rows.Scan(&symbol, &coinID); err != nil {
			return nil, &models.StoreError{Op: "active listed coin ids", Err: err}
		}
		ids[symbol] = coinID
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "active listed coin ids", Err: err}
	}

	return ids, nil
}

// CountActiveListings returns the number of active listings on a venue.
func (r *listingsRepo) CountActiveListings(ctx context.Context, exchangeID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int
	err := r.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM coin_listings WHERE exchange_id = $1 AND is_active = true`,
		exchangeID).Scan(&n)
	if err != nil {
		return 0, &models.StoreError{Op: "count active listings", Err: err}
	}

	return n, nil
}

// CommonSymbols returns symbols active on both venues, ordered
// lexicographically. limit <= 0 means unlimited.
func (r *listingsRepo) CommonSymbols(ctx context.Context, fromExchange, toExchange string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT c.symbol
		FROM coins c
		JOIN coin_listings l1 ON l1.coin_id = c.id AND l1.is_active = true
		JOIN exchanges e1 ON e1.id = l1.exchange_id AND e1.name = $1
		JOIN coin_listings l2 ON l2.coin_id = c.id AND l2.is_active = true
		JOIN exchanges e2 ON e2.id = l2.exchange_id AND e2.name = $2
		ORDER BY c.symbol`

	args := []interface{}{fromExchange, toExchange}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "common symbols", Err: err}
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, &models.StoreError{Op: "common symbols", Err: err}
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "common symbols", Err: err}
	}

	return symbols, nil
}
