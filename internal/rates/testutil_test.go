package rates

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fintrack/internal/storage"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

// memStore is an in-memory storage.RateStore recording call counts.
type memStore struct {
	mu      sync.Mutex
	samples map[string]storage.RateSample
	lookups int
	upserts int
	notify  chan struct{}
}

func newMemStore() *memStore {
	return &memStore{samples: make(map[string]storage.RateSample)}
}

func pairKey(from, to string) string {
	return from + "/" + to
}

func (m *memStore) seed(from, to string, rate decimal.Decimal, observedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[pairKey(from, to)] = storage.RateSample{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		ObservedAt:   observedAt,
	}
}

func (m *memStore) GetLatestRate(ctx context.Context, from, to string) (storage.RateSample, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	sample, ok := m.samples[pairKey(from, to)]
	return sample, ok, nil
}

func (m *memStore) UpsertRate(ctx context.Context, sample storage.RateSample) error {
	m.mu.Lock()
	m.samples[pairKey(sample.FromCurrency, sample.ToCurrency)] = sample
	m.upserts++
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *memStore) ListRates(ctx context.Context, from string) ([]storage.RateSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.RateSample, 0)
	for _, sample := range m.samples {
		if sample.FromCurrency == from {
			out = append(out, sample)
		}
	}
	return out, nil
}

func (m *memStore) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

func (m *memStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

var _ storage.RateStore = (*memStore)(nil)

// fakeProvider delegates to a func, for simulating outcomes.
type fakeProvider struct {
	fetch func(ctx context.Context) (map[string]decimal.Decimal, error)
}

func (p *fakeProvider) FetchPivotRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	return p.fetch(ctx)
}

// fakeFreshener counts EnsureFresh calls and delegates to a func.
type fakeFreshener struct {
	mu    sync.Mutex
	calls int
	run   func(ctx context.Context) error
}

func (f *fakeFreshener) EnsureFresh(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx)
	}
	return nil
}

func (f *fakeFreshener) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
