package analytics

import (
	"sort"
	"time"

	"github.com/odyssey-erp/execdash/internal/shared"
)

// ReportingDates anchors every window of a snapshot.
type ReportingDates struct {
	Today      time.Time
	Latest     time.Time
	Yesterday  time.Time
	MonthStart time.Time
	YearStart  time.Time
}

// ResolveDates derives the reporting anchors from today's calendar date and
// the dates present in the ledger. Latest falls back to today when the ledger
// is empty. Yesterday is the previous weekday, or the latest data date when
// that weekday has no postings and the data lags behind today.
func ResolveDates(today time.Time, sales *SalesLedger) ReportingDates {
	latest, ok := sales.LatestDate()
	if !ok {
		latest = today
	}
	yesterday := today.AddDate(0, 0, -1)
	for shared.IsWeekend(yesterday) {
		yesterday = yesterday.AddDate(0, 0, -1)
	}
	if !sales.HasData(shared.DateKey(yesterday)) && latest.Before(today) {
		yesterday = latest
	}
	return ReportingDates{
		Today:      today,
		Latest:     latest,
		Yesterday:  yesterday,
		MonthStart: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC),
		YearStart:  time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// BusinessDays counts weekdays in the inclusive range [from, to].
func BusinessDays(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !shared.IsWeekend(d) {
			n++
		}
	}
	return n
}

// Period is the window metadata published with the snapshot.
type Period struct {
	Yesterday       string `json:"Yesterday"`
	MonthStart      string `json:"MonthStart"`
	YearStart       string `json:"YearStart"`
	MTDBusinessDays int    `json:"MTDBusinessDays"`
	YTDBusinessDays int    `json:"YTDBusinessDays"`
}

// SalesRollup is a category total over a window plus its largest invoices.
// InvoiceCount counts every invoice in the window, before Invoices is capped.
type SalesRollup struct {
	DailySales
	InvoiceCount int          `json:"InvoiceCount"`
	Invoices     []DayInvoice `json:"Invoices"`
}

// SalesSummary groups the yesterday, month-to-date and year-to-date rollups.
type SalesSummary struct {
	Yesterday       SalesRollup `json:"Yesterday"`
	MTD             SalesRollup `json:"MTD"`
	YTD             SalesRollup `json:"YTD"`
	MTDDailyAverage float64     `json:"MTDDailyAverage"`
	YTDDailyAverage float64     `json:"YTDDailyAverage"`
}

// Rollup sums every date in [from, to] and keeps at most limit invoices,
// largest first. A non-positive limit keeps them all.
func (l *SalesLedger) Rollup(from, to time.Time, limit int) SalesRollup {
	var total DailySales
	invoices := make([]DayInvoice, 0)
	if l != nil {
		for _, key := range l.sortedDays() {
			date, ok := shared.ParseDateKey(key)
			if !ok || date.Before(from) || date.After(to) {
				continue
			}
			total.add(*l.days[key])
			for _, inv := range l.InvoicesOn(key) {
				inv.Date = key
				invoices = append(invoices, inv)
			}
		}
	}
	sort.SliceStable(invoices, func(i, j int) bool { return invoices[i].Amount > invoices[j].Amount })
	count := len(invoices)
	if limit > 0 && count > limit {
		invoices = invoices[:limit]
	}
	return SalesRollup{DailySales: total.rounded(), InvoiceCount: count, Invoices: invoices}
}

func (l *SalesLedger) sortedDays() []string {
	keys := make([]string, 0, len(l.days))
	for k := range l.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summarize builds the three sales rollups and the daily averages.
func (l *SalesLedger) Summarize(dates ReportingDates, caps InvoiceCaps) (SalesSummary, Period) {
	mtdDays := BusinessDays(dates.MonthStart, dates.Latest)
	ytdDays := BusinessDays(dates.YearStart, dates.Latest)

	summary := SalesSummary{
		Yesterday: l.Rollup(dates.Yesterday, dates.Yesterday, caps.Yesterday),
		MTD:       l.Rollup(dates.MonthStart, dates.Latest, caps.MTD),
		YTD:       l.Rollup(dates.YearStart, dates.Latest, caps.YTD),
	}
	if mtdDays > 0 {
		summary.MTDDailyAverage = round2(summary.MTD.Total / float64(mtdDays))
	}
	if ytdDays > 0 {
		summary.YTDDailyAverage = round2(summary.YTD.Total / float64(ytdDays))
	}

	period := Period{
		Yesterday:       shared.DateKey(dates.Yesterday),
		MonthStart:      shared.DateKey(dates.MonthStart),
		YearStart:       shared.DateKey(dates.YearStart),
		MTDBusinessDays: mtdDays,
		YTDBusinessDays: ytdDays,
	}
	return summary, period
}

// TopCustomer is a customer's invoiced revenue over a window.
type TopCustomer struct {
	Name     string            `json:"Name"`
	Amount   float64           `json:"Amount"`
	Invoices []CustomerInvoice `json:"Invoices"`
}

// TopProduct is an item's attributed revenue over a window.
type TopProduct struct {
	Item        string  `json:"Item"`
	Description string  `json:"Description"`
	Amount      float64 `json:"Amount"`
	Category    string  `json:"Category"`
}

// TopCustomers ranks customers by invoices first seen within [from, to].
func (l *SalesLedger) TopCustomers(from, to time.Time, n int) []TopCustomer {
	out := make([]TopCustomer, 0)
	if l == nil {
		return out
	}
	for name, c := range l.customers {
		if c.total <= 0 {
			continue
		}
		var sum float64
		invoices := make([]CustomerInvoice, 0)
		for _, inv := range c.invoices {
			date, ok := shared.ParseDateKey(inv.Date)
			if !ok || date.Before(from) || date.After(to) {
				continue
			}
			sum += inv.Amount
			inv.Amount = round2(inv.Amount)
			invoices = append(invoices, inv)
		}
		amount := round2(sum)
		if amount <= 0 {
			continue
		}
		out = append(out, TopCustomer{Name: name, Amount: amount, Invoices: invoices})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopProducts ranks items by revenue attributed within [from, to].
func (l *SalesLedger) TopProducts(from, to time.Time, n int) []TopProduct {
	out := make([]TopProduct, 0)
	if l == nil {
		return out
	}
	for item, p := range l.products {
		var sum float64
		for key, amount := range p.byDate {
			date, ok := shared.ParseDateKey(key)
			if !ok || date.Before(from) || date.After(to) {
				continue
			}
			sum += amount
		}
		amount := round2(sum)
		if amount <= 0 {
			continue
		}
		out = append(out, TopProduct{Item: item, Description: p.description, Amount: amount, Category: p.category})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Item < out[j].Item
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
