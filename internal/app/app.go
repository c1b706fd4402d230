package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fintrack/internal/config"
	"fintrack/internal/provider"
	"fintrack/internal/rates"
	"fintrack/internal/report"
	"fintrack/internal/scheduler"
	"fintrack/internal/service"
	"fintrack/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newProvider() *provider.Client {
	return provider.NewClient(provider.Options{
		BaseURL:       a.Config.Provider.BaseURL,
		APIKey:        a.Config.Provider.APIKey,
		PivotCurrency: a.Config.Rates.PivotCurrency,
		Timeout:       a.Config.Provider.RequestTimeout,
		UserAgent:     a.Config.Provider.UserAgent,
	}, a.Logger)
}

func (a *App) newRefresher(store storage.RateStore) *rates.Refresher {
	return rates.NewRefresher(a.newProvider(), store, rates.RefresherOptions{
		PivotCurrency: a.Config.Rates.PivotCurrency,
		FetchTimeout:  a.Config.Provider.RequestTimeout,
	}, a.Logger)
}

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) *service.Service {
	refresher := a.newRefresher(store)
	resolver := rates.NewResolver(store, refresher, rates.ResolverOptions{
		PivotCurrency: a.Config.Rates.PivotCurrency,
		MaxSampleAge:  a.Config.Rates.MaxSampleAge,
	}, a.Logger)
	engine := report.NewEngine(resolver, a.Logger)

	return service.New(sched, refresher, engine, store, a.Logger)
}

// Run executes the long-running refresh daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Refresher.Interval,
		AlignToStart: a.Config.Refresher.AlignToBucket,
		StartupDelay: a.Config.Refresher.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Msg("starting rate refresh daemon")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("rate refresh daemon stopped")
	return nil
}

// Refresh performs a one-shot rate refresh.
func (a *App) Refresh(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := a.newRefresher(store).EnsureFresh(ctx); err != nil {
		return err
	}

	count, err := store.CountRates(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("samples", count).Msg("rates refreshed")
	return nil
}

// ReportOptions hold parameters for generating a report.
type ReportOptions struct {
	From     time.Time
	To       time.Time
	Currency string
	Notes    string
	CSVPath  string
	PNGPath  string
}

// RatesOptions configure the rates listing command.
type RatesOptions struct {
	Base string
}
