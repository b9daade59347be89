package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Source exposes the ERP record sets a snapshot is built from.
type Source interface {
	Authenticate(ctx context.Context) error
	Items(ctx context.Context) ([]ItemRecord, error)
	OrderLines(ctx context.Context) ([]OrderLineRecord, error)
	ARTransactions(ctx context.Context) ([]ARTransactionRecord, error)
	LedgerPostings(ctx context.Context, filter LedgerFilter) ([]LedgerRecord, error)
}

// Service coordinates record fetching with snapshot assembly.
type Service struct {
	source  Source
	builder *Builder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires a Source with a Builder. The builder logs through the
// service's logger; the caller's builder is left untouched.
func NewService(source Source, builder *Builder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if builder != nil {
		b := *builder
		b.logger = logger
		builder = &b
	}
	return &Service{source: source, builder: builder, logger: logger, now: time.Now}
}

// Fetch pulls the four record sets one after another. Any failure aborts.
func (s *Service) Fetch(ctx context.Context, asOf time.Time) (Dataset, error) {
	var data Dataset
	if err := s.source.Authenticate(ctx); err != nil {
		return data, err
	}
	s.logger.Info("connected to ERP")

	var err error
	if data.Items, err = s.source.Items(ctx); err != nil {
		return data, err
	}
	s.logger.Info("fetched item master", slog.Int("records", len(data.Items)))

	if data.OrderLines, err = s.source.OrderLines(ctx); err != nil {
		return data, err
	}
	s.logger.Info("fetched order lines", slog.Int("records", len(data.OrderLines)))

	if data.ARTransactions, err = s.source.ARTransactions(ctx); err != nil {
		return data, err
	}
	s.logger.Info("fetched AR transactions", slog.Int("records", len(data.ARTransactions)))

	policy := s.builder.Policy()
	filter := LedgerFilter{Accounts: policy.Accounts.All(), FromYear: asOf.Year()}
	if data.Ledger, err = s.source.LedgerPostings(ctx, filter); err != nil {
		return data, err
	}
	s.logger.Info("fetched ledger postings", slog.Int("records", len(data.Ledger)))
	return data, nil
}

// Generate fetches every record set and assembles a snapshot.
func (s *Service) Generate(ctx context.Context) (Snapshot, error) {
	now := s.now()
	data, err := s.Fetch(ctx, now.In(s.builder.loc))
	if err != nil {
		return Snapshot{}, err
	}
	snapshot, err := s.builder.Build(now, data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("analytics: generate: %w", err)
	}
	s.logger.Info("snapshot assembled",
		slog.String("latest_data_date", snapshot.LatestDataDate),
		slog.Int("open_invoices", snapshot.OpenInvoiceCount()),
		slog.Int("forecast_weeks", len(snapshot.CashFlowPrediction)),
	)
	return snapshot, nil
}
