package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")

	// ErrInvalidRate rejects non-positive rate samples at the write boundary.
	ErrInvalidRate = errors.New("storage: rate must be positive")
)

const (
	upsertRateSQL = `INSERT INTO currency_rates (
        from_currency,
        to_currency,
        rate,
        observed_at
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (from_currency, to_currency) DO UPDATE
    SET
        rate        = EXCLUDED.rate,
        observed_at = EXCLUDED.observed_at;`

	getLatestRateSQL = `SELECT
        from_currency,
        to_currency,
        rate,
        observed_at
    FROM currency_rates
    WHERE from_currency = $1
      AND to_currency = $2;`

	listRatesSQL = `SELECT
        from_currency,
        to_currency,
        rate,
        observed_at
    FROM currency_rates
    WHERE from_currency = $1
    ORDER BY to_currency;`

	countRatesSQL = `SELECT COUNT(*) FROM currency_rates;`

	listTransactionsBetweenSQL = `SELECT
        t.id,
        t.amount,
        t.currency,
        t.date,
        t.kind,
        t.category_id,
        COALESCE(c.name, ''),
        t.note
    FROM transactions t
    LEFT JOIN categories c ON c.id = t.category_id
    WHERE t.date >= $1
      AND t.date <= $2
    ORDER BY t.date, t.id;`
)

// RateStore defines persistence for the latest-per-pair rate samples. It
// answers exact ordered-pair lookups only; inversion and pivot chaining
// are resolution policy and live elsewhere.
type RateStore interface {
	GetLatestRate(ctx context.Context, from, to string) (RateSample, bool, error)
	UpsertRate(ctx context.Context, sample RateSample) error
	ListRates(ctx context.Context, from string) ([]RateSample, error)
}

// TransactionStore exposes read-only transaction listing by date range.
type TransactionStore interface {
	ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]Transaction, error)
}

// Store aggregates access to rate samples and transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertRate persists a rate sample, replacing any previous observation
// for the same ordered pair.
func (s *Store) UpsertRate(ctx context.Context, sample RateSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if !sample.Rate.IsPositive() {
		return fmt.Errorf("%w: %s/%s = %s", ErrInvalidRate, sample.FromCurrency, sample.ToCurrency, sample.Rate)
	}

	_, execErr := pool.Exec(ctx, upsertRateSQL,
		sample.FromCurrency,
		sample.ToCurrency,
		sample.Rate.String(),
		sample.ObservedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert rate: %w", execErr)
	}
	return nil
}

// GetLatestRate returns the stored sample for the exact ordered pair.
func (s *Store) GetLatestRate(ctx context.Context, from, to string) (RateSample, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return RateSample{}, false, err
	}

	row := pool.QueryRow(ctx, getLatestRateSQL, from, to)
	sample, scanErr := scanRateSample(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return RateSample{}, false, nil
		}
		return RateSample{}, false, scanErr
	}
	return sample, true, nil
}

// ListRates lists the stored samples for a base currency.
func (s *Store) ListRates(ctx context.Context, from string) ([]RateSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRatesSQL, from)
	if queryErr != nil {
		return nil, fmt.Errorf("list rates: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]RateSample, 0)
	for rows.Next() {
		sample, scanErr := scanRateSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountRates counts stored rate samples.
func (s *Store) CountRates(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRatesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count rates: %w", scanErr)
	}
	return count, nil
}

// ListTransactionsBetween lists transactions dated within [from, to],
// inclusive on both ends, joined with their category names.
func (s *Store) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTransactionsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list transactions between: %w", queryErr)
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		var (
			tx         Transaction
			amountStr  string
			categoryID sql.NullInt64
			note       sql.NullString
		)
		if err := rows.Scan(
			&tx.ID,
			&amountStr,
			&tx.Currency,
			&tx.Date,
			&tx.Kind,
			&categoryID,
			&tx.CategoryName,
			&note,
		); err != nil {
			return nil, err
		}

		amount, convErr := decimal.NewFromString(amountStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse amount: %w", convErr)
		}
		tx.Amount = amount

		if categoryID.Valid {
			id := categoryID.Int64
			tx.CategoryID = &id
		}
		if note.Valid {
			value := note.String
			tx.Note = &value
		}

		txs = append(txs, tx)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

func scanRateSample(row pgx.Row) (RateSample, error) {
	var (
		from       string
		to         string
		rateStr    string
		observedAt time.Time
	)

	if err := row.Scan(&from, &to, &rateStr, &observedAt); err != nil {
		return RateSample{}, err
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return RateSample{}, fmt.Errorf("parse rate: %w", err)
	}

	return RateSample{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		ObservedAt:   observedAt,
	}, nil
}
