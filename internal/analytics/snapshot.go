package analytics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/execdash/internal/shared"
)

// GeneratedAtLayout formats Snapshot.GeneratedAt.
const GeneratedAtLayout = "2006-01-02 15:04:05"

// TopCustomers holds the customer rankings per window.
type TopCustomers struct {
	Yesterday []TopCustomer `json:"Yesterday"`
	MTD       []TopCustomer `json:"MTD"`
}

// TopProducts holds the product rankings per window.
type TopProducts struct {
	Yesterday []TopProduct `json:"Yesterday"`
	MTD       []TopProduct `json:"MTD"`
}

// Snapshot is the complete dashboard payload. Field names are part of the
// contract with the page script and must not change.
type Snapshot struct {
	RunID              string                  `json:"RunID,omitempty"`
	GeneratedAt        string                  `json:"GeneratedAt"`
	DataSource         string                  `json:"DataSource"`
	LatestDataDate     string                  `json:"LatestDataDate"`
	Period             Period                  `json:"Period"`
	Summary            SalesSummary            `json:"Summary"`
	ARaging            AgingSnapshot           `json:"ARaging"`
	ARInvoices         ARInvoices              `json:"ARInvoices"`
	CashFlowPrediction []CashFlowWeek          `json:"CashFlowPrediction"`
	TopCustomers       TopCustomers            `json:"TopCustomers"`
	TopProducts        TopProducts             `json:"TopProducts"`
	DailyTrend         []DailyTrendPoint       `json:"DailyTrend"`
	InvoicesByDate     map[string][]DayInvoice `json:"InvoicesByDate"`
}

// OpenInvoiceCount is the number of invoices across every aging bucket.
func (s Snapshot) OpenInvoiceCount() int {
	return s.ARInvoices.Count()
}

// Builder assembles snapshots from fetched record sets.
type Builder struct {
	policy   Policy
	loc      *time.Location
	forecast *Forecaster
	logger   *slog.Logger
}

// NewBuilder validates the policy once so Build never has to.
func NewBuilder(policy Policy, loc *time.Location) (*Builder, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Builder{policy: policy, loc: loc, forecast: NewForecaster(policy), logger: slog.Default()}, nil
}

// Policy returns the tables the builder was created with.
func (b *Builder) Policy() Policy {
	return b.policy
}

// Build runs every aggregation stage against data as of now.
func (b *Builder) Build(now time.Time, data Dataset) (Snapshot, error) {
	today := shared.CivilDate(now, b.loc)

	index := BuildReferenceIndex(b.policy, data.Items, data.OrderLines)
	b.logger.Info("reference index built", slog.Int("items", index.Items()), slog.Int("orders", index.Orders()))
	ar := ResolveAR(data.ARTransactions)
	open := ar.OpenInvoices(today, b.policy.OpenBalanceThreshold, index)
	b.logger.Info("open invoices resolved", slog.Int("invoices", ar.Len()), slog.Int("open", len(open)))
	aging, buckets := AgeInvoices(open)

	aggregator, err := NewSalesAggregator(b.policy, index, ar)
	if err != nil {
		return Snapshot{}, fmt.Errorf("analytics: build snapshot: %w", err)
	}
	sales := aggregator.Aggregate(data.Ledger)
	dates := ResolveDates(today, sales)
	summary, period := sales.Summarize(dates, b.policy.InvoiceCaps)

	return Snapshot{
		GeneratedAt:        now.UTC().Format(GeneratedAtLayout),
		DataSource:         b.policy.DataSource,
		LatestDataDate:     shared.DateKey(dates.Latest),
		Period:             period,
		Summary:            summary,
		ARaging:            aging.rounded(),
		ARInvoices:         buckets,
		CashFlowPrediction: b.forecast.Forecast(dates.Latest, aging, sales),
		TopCustomers: TopCustomers{
			Yesterday: sales.TopCustomers(dates.Yesterday, dates.Yesterday, b.policy.TopN),
			MTD:       sales.TopCustomers(dates.MonthStart, dates.Latest, b.policy.TopN),
		},
		TopProducts: TopProducts{
			Yesterday: sales.TopProducts(dates.Yesterday, dates.Yesterday, b.policy.TopN),
			MTD:       sales.TopProducts(dates.MonthStart, dates.Latest, b.policy.TopN),
		},
		DailyTrend:     sales.DailyTrend(dates.Latest, b.policy.TrendDays),
		InvoicesByDate: sales.InvoicesByDate(),
	}, nil
}
