package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds as persisted in the transactions table.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// RateSample is the latest observed conversion rate for an ordered
// currency pair. One row per pair; a newer observation replaces it.
type RateSample struct {
	FromCurrency string
	ToCurrency   string
	Rate         decimal.Decimal
	ObservedAt   time.Time
}

// Age reports how long ago the sample was observed.
func (s RateSample) Age(now time.Time) time.Duration {
	return now.Sub(s.ObservedAt)
}

// Transaction is a recorded income or expense entry. Amount is a
// non-negative magnitude; Kind carries the sign.
type Transaction struct {
	ID           int64
	Amount       decimal.Decimal
	Currency     string
	Date         time.Time
	Kind         string
	CategoryID   *int64
	CategoryName string
	Note         *string
}

// IsIncome reports whether the transaction adds to the balance.
func (t Transaction) IsIncome() bool {
	return t.Kind == KindIncome
}
