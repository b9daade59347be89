package jobs

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

var summaryPrinter = message.NewPrinter(language.AmericanEnglish)

// SummaryLines renders the end-of-run digest. Amounts are whole dollars with
// thousands separators; invoice counts are taken before the snapshot caps.
func SummaryLines(snap analytics.Snapshot) []string {
	p := summaryPrinter
	lines := []string{
		p.Sprintf("Latest data: %s", snap.LatestDataDate),
		p.Sprintf("Yesterday (%s): $%.0f (%d invoices)", snap.Period.Yesterday, snap.Summary.Yesterday.Total, snap.Summary.Yesterday.InvoiceCount),
		p.Sprintf("MTD: $%.0f (%d invoices)", snap.Summary.MTD.Total, snap.Summary.MTD.InvoiceCount),
		p.Sprintf("YTD: $%.0f (%d invoices)", snap.Summary.YTD.Total, snap.Summary.YTD.InvoiceCount),
		p.Sprintf("AR Total: $%.0f (%d open invoices)", snap.ARaging.Total, snap.OpenInvoiceCount()),
	}
	if len(snap.CashFlowPrediction) > 0 {
		lines = append(lines, p.Sprintf("%d-Week Cash Flow Forecast:", len(snap.CashFlowPrediction)))
		for _, w := range snap.CashFlowPrediction {
			lines = append(lines, p.Sprintf("  %s: $%.0f (%d%% confidence)", w.Week, w.Total, w.Confidence))
		}
	}
	return lines
}
