package analytics

import (
	"time"

	"github.com/odyssey-erp/execdash/internal/shared"
)

// DailyTrendPoint is one business day on the trailing sales chart.
type DailyTrendPoint struct {
	Date      string `json:"Date"`
	DayOfWeek string `json:"DayOfWeek"`
	DailySales
	Invoices []DayInvoice `json:"Invoices"`
}

// DailyTrend walks the calendar days from latest-days to latest, skipping
// weekends. Dates without postings appear with zero totals.
func (l *SalesLedger) DailyTrend(latest time.Time, days int) []DailyTrendPoint {
	points := make([]DailyTrendPoint, 0, days)
	for i := days; i >= 0; i-- {
		date := latest.AddDate(0, 0, -i)
		if shared.IsWeekend(date) {
			continue
		}
		key := shared.DateKey(date)
		points = append(points, DailyTrendPoint{
			Date:       key,
			DayOfWeek:  date.Weekday().String(),
			DailySales: l.Day(key).rounded(),
			Invoices:   l.InvoicesOn(key),
		})
	}
	return points
}
