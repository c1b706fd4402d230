package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fintrack/internal/rates"
	"fintrack/internal/storage"
)

// stubResolver serves fixed pivot-relative rates and counts calls per pair.
type stubResolver struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	calls map[string]int
	err   error
}

func newStubResolver(pairs map[string]decimal.Decimal) *stubResolver {
	return &stubResolver{rates: pairs, calls: make(map[string]int)}
}

func (s *stubResolver) Resolve(ctx context.Context, from, to string) (rates.ConversionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := from + "/" + to
	s.calls[key]++
	if s.err != nil {
		return rates.ConversionResult{}, s.err
	}
	if from == to {
		return rates.ConversionResult{From: from, To: to, Rate: decimal.NewFromInt(1), Via: rates.RouteDirect}, nil
	}
	rate, ok := s.rates[key]
	if !ok {
		return rates.ConversionResult{}, &rates.RateNotFoundError{From: from, To: to}
	}
	return rates.ConversionResult{From: from, To: to, Rate: rate, Via: rates.RouteDirect}, nil
}

func (s *stubResolver) callCount(from, to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[from+"/"+to]
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func income(amount, currency, category string, date time.Time) storage.Transaction {
	return storage.Transaction{
		Amount:       decimal.RequireFromString(amount),
		Currency:     currency,
		Date:         date,
		Kind:         storage.KindIncome,
		CategoryName: category,
	}
}

func expense(amount, currency, category string, date time.Time) storage.Transaction {
	tx := income(amount, currency, category, date)
	tx.Kind = storage.KindExpense
	return tx
}

func testWindow() Window {
	return Window{Start: day(2025, time.January, 1), End: day(2025, time.February, 28)}
}

func TestAggregateMultiCurrencyScenario(t *testing.T) {
	// EUR→USD via the resolver; the inverse of a fresh USD→EUR 0.9.
	eurToUSD := decimal.NewFromInt(1).Div(decimal.RequireFromString("0.9"))
	resolver := newStubResolver(map[string]decimal.Decimal{"EUR/USD": eurToUSD})
	engine := NewEngine(resolver, zerolog.Nop())

	txs := []storage.Transaction{
		income("100", "USD", "Salary", day(2025, time.January, 1)),
		expense("40", "EUR", "Groceries", day(2025, time.January, 1)),
		income("50", "USD", "Salary", day(2025, time.February, 15)),
	}

	snap, err := engine.Aggregate(context.Background(), txs, testWindow(), "USD")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if !snap.TotalIncome.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total income 150, got %s", snap.TotalIncome)
	}

	wantExpense := decimal.RequireFromString("40").Mul(eurToUSD)
	if !snap.TotalExpense.Equal(wantExpense) {
		t.Fatalf("expected total expense %s, got %s", wantExpense, snap.TotalExpense)
	}
	if !snap.Balance.Equal(snap.TotalIncome.Sub(snap.TotalExpense)) {
		t.Fatalf("balance must equal income minus expense")
	}

	// ~44.44 and ~105.56 within rounding tolerance.
	if snap.TotalExpense.Sub(decimal.RequireFromString("44.44")).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
		t.Fatalf("expense out of tolerance: %s", snap.TotalExpense)
	}
	if snap.Balance.Sub(decimal.RequireFromString("105.56")).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
		t.Fatalf("balance out of tolerance: %s", snap.Balance)
	}

	if !snap.CategoryTotals["Salary"].Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected Salary +150, got %s", snap.CategoryTotals["Salary"])
	}
	if !snap.CategoryTotals["Groceries"].Equal(wantExpense.Neg()) {
		t.Fatalf("expected Groceries %s, got %s", wantExpense.Neg(), snap.CategoryTotals["Groceries"])
	}

	if len(snap.Buckets) != 2 {
		t.Fatalf("expected two monthly buckets, got %d", len(snap.Buckets))
	}
	if snap.Buckets[0].Label != "2025-01" || snap.Buckets[1].Label != "2025-02" {
		t.Fatalf("buckets out of order: %s, %s", snap.Buckets[0].Label, snap.Buckets[1].Label)
	}
	if !snap.Buckets[0].Expense.Equal(wantExpense) {
		t.Fatalf("january expense mismatch: %s", snap.Buckets[0].Expense)
	}
	if !snap.Buckets[1].Income.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("february income mismatch: %s", snap.Buckets[1].Income)
	}
}

func TestAggregateResolvesEachPairOnce(t *testing.T) {
	resolver := newStubResolver(map[string]decimal.Decimal{"EUR/USD": decimal.RequireFromString("1.1")})
	engine := NewEngine(resolver, zerolog.Nop())

	txs := []storage.Transaction{
		expense("10", "EUR", "A", day(2025, time.January, 2)),
		expense("20", "EUR", "B", day(2025, time.January, 3)),
		expense("30", "EUR", "C", day(2025, time.January, 4)),
		income("5", "USD", "D", day(2025, time.January, 5)),
		income("6", "USD", "E", day(2025, time.January, 6)),
	}

	if _, err := engine.Aggregate(context.Background(), txs, testWindow(), "USD"); err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if got := resolver.callCount("EUR", "USD"); got != 1 {
		t.Fatalf("EUR/USD must be resolved once per pass, got %d", got)
	}
	if got := resolver.callCount("USD", "USD"); got != 1 {
		t.Fatalf("USD/USD must be resolved once per pass, got %d", got)
	}
}

func TestAggregateWindowIsInclusive(t *testing.T) {
	resolver := newStubResolver(nil)
	engine := NewEngine(resolver, zerolog.Nop())

	window := Window{Start: day(2025, time.January, 10), End: day(2025, time.January, 20)}
	txs := []storage.Transaction{
		income("1", "USD", "", day(2025, time.January, 9)),
		income("2", "USD", "", day(2025, time.January, 10)),
		income("4", "USD", "", day(2025, time.January, 20)),
		income("8", "USD", "", day(2025, time.January, 21)),
	}

	snap, err := engine.Aggregate(context.Background(), txs, window, "USD")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !snap.TotalIncome.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("window bounds must be inclusive, got income %s", snap.TotalIncome)
	}
}

func TestAggregateUncategorizedBucket(t *testing.T) {
	resolver := newStubResolver(nil)
	engine := NewEngine(resolver, zerolog.Nop())

	txs := []storage.Transaction{
		expense("7", "USD", "", day(2025, time.January, 5)),
	}

	snap, err := engine.Aggregate(context.Background(), txs, testWindow(), "USD")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	total, ok := snap.CategoryTotals[UncategorizedBucket]
	if !ok {
		t.Fatalf("expected %s bucket, got %v", UncategorizedBucket, snap.CategoryTotals)
	}
	if !total.Equal(decimal.NewFromInt(-7)) {
		t.Fatalf("expected -7, got %s", total)
	}
}

func TestAggregateAdditivity(t *testing.T) {
	resolver := newStubResolver(map[string]decimal.Decimal{
		"EUR/USD": decimal.RequireFromString("1.1"),
		"KZT/USD": decimal.RequireFromString("0.002"),
	})
	engine := NewEngine(resolver, zerolog.Nop())

	txs := []storage.Transaction{
		income("100", "USD", "A", day(2025, time.January, 1)),
		expense("40", "EUR", "B", day(2025, time.January, 2)),
		income("5000", "KZT", "C", day(2025, time.January, 3)),
		expense("12.50", "USD", "D", day(2025, time.February, 4)),
	}

	full, err := engine.Aggregate(context.Background(), txs, testWindow(), "USD")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	for k := 1; k < len(txs); k++ {
		head, err := engine.Aggregate(context.Background(), txs[:k], testWindow(), "USD")
		if err != nil {
			t.Fatalf("aggregate head failed: %v", err)
		}
		tail, err := engine.Aggregate(context.Background(), txs[k:], testWindow(), "USD")
		if err != nil {
			t.Fatalf("aggregate tail failed: %v", err)
		}
		if !full.Balance.Equal(head.Balance.Add(tail.Balance)) {
			t.Fatalf("split at %d breaks additivity: %s != %s + %s", k, full.Balance, head.Balance, tail.Balance)
		}
	}
}

func TestAggregateFailurePropagation(t *testing.T) {
	resolver := newStubResolver(nil)
	engine := NewEngine(resolver, zerolog.Nop())

	txs := []storage.Transaction{
		income("1", "USD", "", day(2025, time.January, 2)),
		expense("40", "EUR", "", day(2025, time.January, 3)),
	}

	_, err := engine.Aggregate(context.Background(), txs, testWindow(), "USD")

	var aggErr *AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregationError, got %v", err)
	}
	if aggErr.From != "EUR" || aggErr.To != "USD" {
		t.Fatalf("error must carry the failing pair, got %s/%s", aggErr.From, aggErr.To)
	}

	var notFound *rates.RateNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("cause must be preserved: %v", err)
	}
}
