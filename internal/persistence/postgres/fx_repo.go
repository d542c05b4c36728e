package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// fxRepo implements FxStore for PostgreSQL.
type fxRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewFxRepo creates a PostgreSQL FX rates repository.
func NewFxRepo(db *sqlx.DB, timeout time.Duration) persistence.FxStore {
	return &fxRepo{db: db, timeout: timeout}
}

// InsertFxRate appends one rate observation. The table is append-only;
// reads always take the newest row.
func (r *fxRepo) InsertFxRate(ctx context.Context, currencyCode string, rate decimal.Decimal, ttb, tts decimal.NullDecimal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO exchange_rates (currency_code, rate, ttb_rate, tts_rate, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	if _, err := r.db.ExecContext(ctx, query, currencyCode, rate, ttb, tts); err != nil {
		return &models.StoreError{Op: "insert fx rate", Err: err}
	}

	return nil
}

// LatestFxRate returns the most recent persisted rate for a currency.
func (r *fxRepo) LatestFxRate(ctx context.Context, currencyCode string) (*models.FxRate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, currency_code, rate, ttb_rate, tts_rate, created_at
		FROM exchange_rates
		WHERE currency_code = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var rate models.FxRate
	err := r.db.QueryRowxContext(ctx, query, currencyCode).Scan(
		&rate.ID, &rate.CurrencyCode, &rate.Rate, &rate.TTBRate, &rate.TTSRate, &rate.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, &models.StoreError{Op: "latest fx rate", Err: err}
	}

	return &rate, nil
}
