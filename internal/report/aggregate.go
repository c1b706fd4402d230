package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fintrack/internal/rates"
	"fintrack/internal/storage"
)

// UncategorizedBucket is the reserved category name for transactions
// without a category.
const UncategorizedBucket = "Uncategorized"

const bucketLabelLayout = "2006-01"

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Valid reports whether the window is well-formed.
func (w Window) Valid() bool {
	return !w.End.Before(w.Start)
}

// PeriodBucket holds un-netted income and expense sums for one calendar
// month, both in the target currency.
type PeriodBucket struct {
	Label   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Snapshot is the result of one aggregation pass. Built fresh per call,
// never mutated after construction.
type Snapshot struct {
	Window         Window
	TargetCurrency string
	TotalIncome    decimal.Decimal
	TotalExpense   decimal.Decimal
	Balance        decimal.Decimal
	CategoryTotals map[string]decimal.Decimal
	Buckets        []PeriodBucket
}

// AggregationError reports a pass aborted by an unresolvable pair.
// Partial aggregation is never returned.
type AggregationError struct {
	From string
	To   string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate: cannot convert %s to %s: %v", e.From, e.To, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Engine folds a transaction set into a Snapshot in one target currency.
type Engine struct {
	resolver rates.RateResolver
	logger   zerolog.Logger
}

// NewEngine wires a rate resolver into an aggregation engine.
func NewEngine(resolver rates.RateResolver, logger zerolog.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		logger:   logger.With().Str("component", "aggregation_engine").Logger(),
	}
}

// Aggregate filters transactions to the window, converts each into the
// target currency, and folds totals, category sums, and monthly buckets.
// A pass-scoped cache guarantees the resolver is hit at most once per
// distinct currency pair, so every transaction sharing a pair observes
// the same rate within the pass. Any resolution failure aborts the pass.
func (e *Engine) Aggregate(ctx context.Context, transactions []storage.Transaction, window Window, targetCurrency string) (Snapshot, error) {
	snapshot := Snapshot{
		Window:         window,
		TargetCurrency: targetCurrency,
		TotalIncome:    decimal.Zero,
		TotalExpense:   decimal.Zero,
		Balance:        decimal.Zero,
		CategoryTotals: make(map[string]decimal.Decimal),
	}

	// Discarded when the pass returns; a later pass re-resolves under
	// the resolver's own freshness policy.
	passRates := make(map[string]decimal.Decimal)

	type bucketSums struct {
		income  decimal.Decimal
		expense decimal.Decimal
	}
	buckets := make(map[string]*bucketSums)

	converted := 0
	for _, tx := range transactions {
		if !window.Contains(tx.Date) {
			continue
		}

		rate, ok := passRates[tx.Currency]
		if !ok {
			res, err := e.resolver.Resolve(ctx, tx.Currency, targetCurrency)
			if err != nil {
				return Snapshot{}, &AggregationError{From: tx.Currency, To: targetCurrency, Err: err}
			}
			rate = res.Rate
			passRates[tx.Currency] = rate
		}

		amount := tx.Amount.Mul(rate)

		category := tx.CategoryName
		if category == "" {
			category = UncategorizedBucket
		}

		label := tx.Date.Format(bucketLabelLayout)
		sums, ok := buckets[label]
		if !ok {
			sums = &bucketSums{income: decimal.Zero, expense: decimal.Zero}
			buckets[label] = sums
		}

		// Sign is applied after conversion so totals carry a
		// consistent target-currency sign convention.
		if tx.IsIncome() {
			snapshot.TotalIncome = snapshot.TotalIncome.Add(amount)
			snapshot.CategoryTotals[category] = categoryTotal(snapshot.CategoryTotals, category).Add(amount)
			sums.income = sums.income.Add(amount)
		} else {
			snapshot.TotalExpense = snapshot.TotalExpense.Add(amount)
			snapshot.CategoryTotals[category] = categoryTotal(snapshot.CategoryTotals, category).Sub(amount)
			sums.expense = sums.expense.Add(amount)
		}
		converted++
	}

	snapshot.Balance = snapshot.TotalIncome.Sub(snapshot.TotalExpense)

	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	snapshot.Buckets = make([]PeriodBucket, 0, len(labels))
	for _, label := range labels {
		snapshot.Buckets = append(snapshot.Buckets, PeriodBucket{
			Label:   label,
			Income:  buckets[label].income,
			Expense: buckets[label].expense,
		})
	}

	e.logger.Debug().
		Int("transactions", converted).
		Int("pairs", len(passRates)).
		Str("target", targetCurrency).
		Msg("aggregation pass complete")

	return snapshot, nil
}

func categoryTotal(totals map[string]decimal.Decimal, category string) decimal.Decimal {
	if total, ok := totals[category]; ok {
		return total
	}
	return decimal.Zero
}
