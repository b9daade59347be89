package analytics

import (
	"math"
	"time"

	"github.com/odyssey-erp/execdash/internal/shared"
)

// Forecast day types.
const (
	DayActual    = "Actual"
	DayPredicted = "Predicted"
)

// ForecastDay is one weekday inside a forecast week.
type ForecastDay struct {
	Date      string       `json:"Date"`
	DayOfWeek string       `json:"DayOfWeek"`
	Type      string       `json:"Type"`
	Amount    float64      `json:"Amount"`
	Invoices  []DayInvoice `json:"Invoices"`
}

// CashFlowWeek is one Monday-to-Friday forecast window.
type CashFlowWeek struct {
	Week                string        `json:"Week"`
	WeekNum             int           `json:"WeekNum"`
	StartDate           string        `json:"StartDate"`
	EndDate             string        `json:"EndDate"`
	Actual              float64       `json:"Actual"`
	Predicted           float64       `json:"Predicted"`
	Total               float64       `json:"Total"`
	ExpectedCollections float64       `json:"ExpectedCollections"`
	Confidence          int           `json:"Confidence"`
	DayBreakdown        []ForecastDay `json:"DayBreakdown"`
}

// Forecaster projects weekly cash receipts from the AR aging profile, using
// actual ledger totals for days that already have data.
type Forecaster struct {
	policy   Policy
	holidays map[string]struct{}
}

// NewForecaster captures the policy tables used by every forecast.
func NewForecaster(policy Policy) *Forecaster {
	holidays := make(map[string]struct{}, len(policy.Holidays))
	for _, h := range policy.Holidays {
		holidays[h] = struct{}{}
	}
	return &Forecaster{policy: policy, holidays: holidays}
}

// Forecast runs the week-by-week projection starting at the Monday of the
// week containing latest. The aging snapshot is copied, never mutated.
func (f *Forecaster) Forecast(latest time.Time, aging AgingSnapshot, sales *SalesLedger) []CashFlowWeek {
	start := shared.WeekStart(latest)
	rolling := aging
	weeks := make([]CashFlowWeek, 0, f.policy.ForecastWeeks)

	for w := 0; w < f.policy.ForecastWeeks; w++ {
		weekStart := start.AddDate(0, 0, 7*w)
		weekEnd := weekStart.AddDate(0, 0, 4)
		expected := f.expectedCollections(rolling)
		weekExpected := expected.Total

		var actual, predicted float64
		days := make([]ForecastDay, 0, 5)
		for d := 0; d < 5; d++ {
			day := weekStart.AddDate(0, 0, d)
			key := shared.DateKey(day)
			if sales.HasData(key) {
				amount := sales.Day(key).Total
				actual += amount
				days = append(days, ForecastDay{
					Date:      key,
					DayOfWeek: day.Weekday().String(),
					Type:      DayActual,
					Amount:    round2(amount),
					Invoices:  sales.InvoicesOn(key),
				})
				continue
			}
			amount := weekExpected * f.policy.weekdayWeight(day.Weekday()) * f.holidayFactor(key)
			predicted += amount
			days = append(days, ForecastDay{
				Date:      key,
				DayOfWeek: day.Weekday().String(),
				Type:      DayPredicted,
				Amount:    round2(amount),
				Invoices:  []DayInvoice{},
			})
		}

		rolling = f.age(rolling, expected)

		weeks = append(weeks, CashFlowWeek{
			Week:                "Week of " + weekStart.Format("Jan 2"),
			WeekNum:             w + 1,
			StartDate:           shared.DateKey(weekStart),
			EndDate:             shared.DateKey(weekEnd),
			Actual:              round2(actual),
			Predicted:           round2(predicted),
			Total:               round2(actual + predicted),
			ExpectedCollections: round2(weekExpected),
			Confidence:          f.policy.confidence(w),
			DayBreakdown:        days,
		})
	}
	return weeks
}

// expectedCollections returns, per bucket, the amount expected to be
// collected this week. Total carries the weekly sum.
func (f *Forecaster) expectedCollections(ar AgingSnapshot) AgingSnapshot {
	rates := f.policy.CollectionRates
	var out AgingSnapshot
	out.add(BucketCurrent, ar.Current*rates.Current)
	out.add(Bucket1To30, ar.Days1To30*rates.Days1To30)
	out.add(Bucket31To60, ar.Days31To60*rates.Days31To60)
	out.add(Bucket61To90, ar.Days61To90*rates.Days61To90)
	out.add(Bucket90Plus, ar.Days90Plus*rates.Days90Plus)
	return out
}

// age moves the rolling snapshot forward one week. Every bucket is computed
// from the pre-update values; 90+ does not decay, only loses its collection.
func (f *Forecaster) age(ar, expected AgingSnapshot) AgingSnapshot {
	keep := f.policy.AgingRetention
	inflow := f.policy.AgingInflow
	next := AgingSnapshot{
		Days90Plus: math.Max(0, ar.Days90Plus-expected.Days90Plus+ar.Days61To90*inflow),
		Days61To90: math.Max(0, ar.Days61To90*keep-expected.Days61To90+ar.Days31To60*inflow),
		Days31To60: math.Max(0, ar.Days31To60*keep-expected.Days31To60+ar.Days1To30*inflow),
		Days1To30:  math.Max(0, ar.Days1To30*keep-expected.Days1To30+ar.Current*inflow),
		Current:    math.Max(0, ar.Current*keep-expected.Current),
	}
	next.Total = next.Current + next.Days1To30 + next.Days31To60 + next.Days61To90 + next.Days90Plus
	return next
}

func (f *Forecaster) holidayFactor(key string) float64 {
	if _, ok := f.holidays[key]; ok {
		return f.policy.HolidayFactor
	}
	return 1.0
}
