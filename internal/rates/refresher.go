package rates

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/provider"
	"fintrack/internal/storage"
)

const refreshKey = "pivot-refresh"

// Freshener triggers a refresh of the pivot-relative rate cache.
type Freshener interface {
	EnsureFresh(ctx context.Context) error
}

// RefresherOptions parameterise the refresher.
type RefresherOptions struct {
	PivotCurrency string
	// FetchTimeout bounds the shared provider call so a hang cannot
	// wedge the in-flight slot.
	FetchTimeout time.Duration
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Refresher fetches pivot-relative rates and upserts them into the
// store. Concurrent EnsureFresh callers share one provider fetch.
type Refresher struct {
	provider provider.RateProvider
	store    storage.RateStore
	opts     RefresherOptions
	logger   zerolog.Logger
	group    singleflight.Group
}

// NewRefresher wires a provider and a rate store into a Refresher.
func NewRefresher(p provider.RateProvider, store storage.RateStore, opts RefresherOptions, logger zerolog.Logger) *Refresher {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.PivotCurrency = strings.ToUpper(opts.PivotCurrency)

	return &Refresher{
		provider: p,
		store:    store,
		opts:     opts,
		logger:   logger.With().Str("component", "rate_refresher").Logger(),
	}
}

// EnsureFresh performs one fetch-and-store cycle, collapsing concurrent
// callers onto a single in-flight refresh. All collapsed callers observe
// the same outcome. A caller whose context is cancelled stops waiting,
// but the shared flight keeps running for the others.
func (r *Refresher) EnsureFresh(ctx context.Context) error {
	ch := r.group.DoChan(refreshKey, func() (interface{}, error) {
		return nil, r.refresh()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// refresh runs on a context detached from any single caller: one
// caller's cancellation must not abort a fetch other callers await.
// The configured timeout guarantees the flight terminates.
func (r *Refresher) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.FetchTimeout)
	defer cancel()

	fetched, err := r.provider.FetchPivotRates(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("provider fetch failed")
		return &RefreshError{Err: err}
	}

	now := r.opts.Now().UTC()
	stored := 0
	for code, rate := range fetched {
		if !rate.IsPositive() {
			r.logger.Warn().Str("currency", code).Str("rate", rate.String()).Msg("skipping non-positive rate")
			continue
		}

		sample := storage.RateSample{
			FromCurrency: r.opts.PivotCurrency,
			ToCurrency:   code,
			Rate:         rate,
			ObservedAt:   now,
		}
		// Upserts are per-sample and individually atomic; a failure
		// here stops further writes without touching earlier ones.
		if err := r.store.UpsertRate(ctx, sample); err != nil {
			r.logger.Error().Err(err).Str("currency", code).Msg("failed to upsert rate sample")
			return &RefreshError{Err: err}
		}
		stored++
	}

	r.logger.Info().Int("stored", stored).Str("pivot", r.opts.PivotCurrency).Msg("rates refreshed")
	return nil
}

var _ Freshener = (*Refresher)(nil)
