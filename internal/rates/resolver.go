package rates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fintrack/internal/storage"
)

// Route identifies how a conversion rate was obtained.
type Route string

const (
	RouteDirect    Route = "direct"
	RouteInverted  Route = "inverted"
	RouteChained   Route = "chained"
	RouteRefreshed Route = "refreshed"
)

// ConversionResult carries a resolved rate and its provenance. Transient,
// never persisted.
type ConversionResult struct {
	From string
	To   string
	Rate decimal.Decimal
	Via  Route
}

// RateResolver produces a usable rate for an ordered currency pair.
type RateResolver interface {
	Resolve(ctx context.Context, from, to string) (ConversionResult, error)
}

// ResolverOptions parameterise resolution policy.
type ResolverOptions struct {
	PivotCurrency string
	// MaxSampleAge is the freshness threshold; samples at or past this
	// age are ignored.
	MaxSampleAge time.Duration
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Resolver answers rate lookups from cached samples, falling back to a
// single refresh attempt. Lookup order: identity, direct sample,
// inverted reverse sample, two-hop chain through the pivot.
type Resolver struct {
	store     storage.RateStore
	refresher Freshener
	opts      ResolverOptions
	logger    zerolog.Logger
	one       decimal.Decimal
}

// NewResolver wires a rate store and a refresher into a Resolver.
func NewResolver(store storage.RateStore, refresher Freshener, opts ResolverOptions, logger zerolog.Logger) *Resolver {
	if opts.MaxSampleAge <= 0 {
		opts.MaxSampleAge = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.PivotCurrency = strings.ToUpper(opts.PivotCurrency)

	return &Resolver{
		store:     store,
		refresher: refresher,
		opts:      opts,
		logger:    logger.With().Str("component", "rate_resolver").Logger(),
		one:       decimal.NewFromInt(1),
	}
}

// Resolve returns a usable rate for (from, to). Cached fresh samples are
// consulted first; if none satisfies the pair, exactly one refresh is
// triggered and the lookup re-run. An unresolvable pair fails with
// *RateNotFoundError; no synthetic default rate is substituted.
func (r *Resolver) Resolve(ctx context.Context, from, to string) (ConversionResult, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return ConversionResult{}, errors.New("resolve: both currency codes are required")
	}

	if from == to {
		return ConversionResult{From: from, To: to, Rate: r.one, Via: RouteDirect}, nil
	}

	res, ok, err := r.lookup(ctx, from, to)
	if err != nil {
		return ConversionResult{}, err
	}
	if ok {
		return res, nil
	}

	if err := r.refresher.EnsureFresh(ctx); err != nil {
		return ConversionResult{}, &RateNotFoundError{From: from, To: to, Err: err}
	}

	res, ok, err = r.lookup(ctx, from, to)
	if err != nil {
		return ConversionResult{}, err
	}
	if ok {
		res.Via = RouteRefreshed
		r.logger.Debug().Str("from", from).Str("to", to).Str("rate", res.Rate.String()).Msg("resolved after refresh")
		return res, nil
	}

	return ConversionResult{}, &RateNotFoundError{From: from, To: to}
}

// lookup consults cached samples only. Chaining multiplies two one-hop
// resolutions against the pivot, so depth is structurally capped at two.
func (r *Resolver) lookup(ctx context.Context, from, to string) (ConversionResult, bool, error) {
	rate, via, ok, err := r.oneHop(ctx, from, to)
	if err != nil {
		return ConversionResult{}, false, err
	}
	if ok {
		return ConversionResult{From: from, To: to, Rate: rate, Via: via}, true, nil
	}

	pivot := r.opts.PivotCurrency
	if from == pivot || to == pivot {
		// One hop from the pivot is all there is; chaining would only
		// revisit the same samples.
		return ConversionResult{}, false, nil
	}

	toPivot, _, okA, err := r.oneHop(ctx, from, pivot)
	if err != nil {
		return ConversionResult{}, false, err
	}
	fromPivot, _, okB, err := r.oneHop(ctx, pivot, to)
	if err != nil {
		return ConversionResult{}, false, err
	}
	if okA && okB {
		return ConversionResult{From: from, To: to, Rate: toPivot.Mul(fromPivot), Via: RouteChained}, true, nil
	}

	return ConversionResult{}, false, nil
}

// oneHop tries the direct sample, then the invertible reverse sample.
// A zero-rate reverse sample cannot be inverted and counts as absent.
func (r *Resolver) oneHop(ctx context.Context, from, to string) (decimal.Decimal, Route, bool, error) {
	sample, found, err := r.store.GetLatestRate(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, "", false, err
	}
	if found && r.isFresh(sample) {
		return sample.Rate, RouteDirect, true, nil
	}

	reverse, found, err := r.store.GetLatestRate(ctx, to, from)
	if err != nil {
		return decimal.Decimal{}, "", false, err
	}
	if found && r.isFresh(reverse) && !reverse.Rate.IsZero() {
		return r.one.Div(reverse.Rate), RouteInverted, true, nil
	}

	return decimal.Decimal{}, "", false, nil
}

func (r *Resolver) isFresh(sample storage.RateSample) bool {
	return sample.Age(r.opts.Now()) < r.opts.MaxSampleAge
}

var _ RateResolver = (*Resolver)(nil)
