package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fintrack/internal/rates"
	"fintrack/internal/report"
	"fintrack/internal/scheduler"
	"fintrack/internal/storage"
)

// Service is the consumer-facing surface: report generation on demand
// and the periodic rate refresh loop.
type Service struct {
	scheduler *scheduler.Scheduler
	refresher rates.Freshener
	engine    *report.Engine
	txStore   storage.TransactionStore
	logger    zerolog.Logger
}

// New constructs the service.
func New(sched *scheduler.Scheduler, refresher rates.Freshener, engine *report.Engine, txStore storage.TransactionStore, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		refresher: refresher,
		engine:    engine,
		txStore:   txStore,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the periodic refresh loop, keeping pivot rates warm so
// report generation rarely blocks on the provider.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.refresher.EnsureFresh)
}

// RefreshNow performs a one-shot rate refresh.
func (s *Service) RefreshNow(ctx context.Context) error {
	return s.refresher.EnsureFresh(ctx)
}

// GenerateReport loads transactions in the window, aggregates them into
// the target currency, and assembles an immutable report.
func (s *Service) GenerateReport(ctx context.Context, window report.Window, targetCurrency, notes string) (report.Report, error) {
	if !window.Valid() {
		return report.Report{}, report.ErrInvalidRange
	}

	transactions, err := s.txStore.ListTransactionsBetween(ctx, window.Start, window.End)
	if err != nil {
		return report.Report{}, fmt.Errorf("list transactions: %w", err)
	}

	snapshot, err := s.engine.Aggregate(ctx, transactions, window, targetCurrency)
	if err != nil {
		return report.Report{}, err
	}

	rep, err := report.NewBuilder().
		WithWindow(window).
		WithSnapshot(snapshot).
		WithNotes(notes).
		Build()
	if err != nil {
		return report.Report{}, err
	}

	s.logger.Info().
		Time("from", window.Start).
		Time("to", window.End).
		Str("target", targetCurrency).
		Int("transactions", len(transactions)).
		Str("balance", snapshot.Balance.String()).
		Msg("report generated")

	return rep, nil
}
