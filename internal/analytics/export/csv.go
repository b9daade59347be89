package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

// WriteTrendCSV emits the trailing daily sales trend as CSV.
func WriteTrendCSV(w io.Writer, points []analytics.DailyTrendPoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Date", "Day", "Product", "Service", "Freight", "Miscellaneous", "Total", "Invoices"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Date,
			point.DayOfWeek,
			formatFloat(point.Product),
			formatFloat(point.Service),
			formatFloat(point.Freight),
			formatFloat(point.Miscellaneous),
			formatFloat(point.Total),
			strconv.Itoa(len(point.Invoices)),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteARInvoicesCSV prints every open invoice with its aging bucket.
func WriteARInvoicesCSV(w io.Writer, invoices analytics.ARInvoices) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Bucket", "Invoice", "Customer", "Order", "Due Date", "Days Overdue", "Amount"}); err != nil {
		return err
	}
	for _, bucket := range analytics.Buckets {
		for _, inv := range invoices.In(bucket) {
			if err := writer.Write([]string{
				bucket.String(),
				inv.InvNum,
				inv.Customer,
				inv.CoNum,
				inv.DueDate,
				strconv.Itoa(inv.DaysOverdue),
				formatFloat(inv.Amount),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteForecastCSV emits one row per forecast day.
func WriteForecastCSV(w io.Writer, weeks []analytics.CashFlowWeek) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Week", "Confidence", "Expected Collections", "Date", "Day", "Type", "Amount"}); err != nil {
		return err
	}
	for _, week := range weeks {
		for _, day := range week.DayBreakdown {
			if err := writer.Write([]string{
				week.Week,
				strconv.Itoa(week.Confidence),
				formatFloat(week.ExpectedCollections),
				day.Date,
				day.DayOfWeek,
				day.Type,
				formatFloat(day.Amount),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// MappingRow documents where one dashboard component's numbers come from.
type MappingRow struct {
	Component   string
	Source      string
	Fields      []string
	Calculation string
}

// DataMapping describes every dashboard component against the ERP record
// sets and the policy in effect.
func DataMapping(policy analytics.Policy) []MappingRow {
	accounts := strings.Join(policy.Accounts.All(), ", ")
	revenue := strings.Join(policy.Accounts.Revenue, ", ")
	return []MappingRow{
		{
			Component:   "Item classification",
			Source:      "SLItems",
			Fields:      []string{"Item", "ProductCode", "itmuf_cti_product_category"},
			Calculation: "Service when ProductCode is one of " + strings.Join(policy.ServiceProductCodes, ", ") + " or category is " + policy.ServiceCategory + "; otherwise Product",
		},
		{
			Component:   "Order breakdown",
			Source:      "SLCoItems",
			Fields:      []string{"CoNum", "CoLine", "Item", "ItDescription", "DerExtInvoicedPrice", "QtyInvoiced", "Price"},
			Calculation: "Absolute extended invoiced price summed per order into Service and Product",
		},
		{
			Component:   "Daily sales by category",
			Source:      "SLLedgers",
			Fields:      []string{"Acct", "DomAmount", "TransDate", "Ref"},
			Calculation: "Accounts " + accounts + "; freight " + policy.Accounts.Freight + ", miscellaneous " + policy.Accounts.Miscellaneous + ", revenue " + revenue + " split by the order's service ratio",
		},
		{
			Component:   "Invoice resolution",
			Source:      "SLLedgers, SLArTrans",
			Fields:      []string{"Ref", "InvNum", "CoNum", "CadName"},
			Calculation: "Invoice number matched from Ref with " + policy.InvoiceRefPattern + " and joined to its AR invoice",
		},
		{
			Component:   "AR aging",
			Source:      "SLArTrans",
			Fields:      []string{"InvNum", "Type", "Amount", "ApplyToInvNum", "DueDate"},
			Calculation: "Invoices less applied payments and credits; open above " + formatFloat(policy.OpenBalanceThreshold) + " and bucketed by days past due",
		},
		{
			Component: "Cash flow forecast",
			Source:    "SLArTrans, SLLedgers",
			Fields:    []string{"AR aging buckets", "TransDate", "DomAmount"},
			Calculation: "Weekly expected collections " + formatFloat(policy.CollectionRates.Current) + "/" +
				formatFloat(policy.CollectionRates.Days1To30) + "/" + formatFloat(policy.CollectionRates.Days31To60) + "/" +
				formatFloat(policy.CollectionRates.Days61To90) + "/" + formatFloat(policy.CollectionRates.Days90Plus) +
				" spread by weekday weight; actual ledger totals where posted",
		},
		{
			Component:   "Top customers",
			Source:      "SLLedgers, SLArTrans",
			Fields:      []string{"CadName", "DomAmount"},
			Calculation: "Revenue postings per resolved customer, top " + strconv.Itoa(policy.TopN),
		},
		{
			Component:   "Top products",
			Source:      "SLLedgers, SLCoItems",
			Fields:      []string{"Item", "ItDescription", "DerExtInvoicedPrice"},
			Calculation: "Revenue postings spread over order lines by extended price share, top " + strconv.Itoa(policy.TopN),
		},
	}
}

// WriteMappingCSV writes the data mapping sheet.
func WriteMappingCSV(w io.Writer, rows []MappingRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Component", "IDO", "Fields", "Calculation"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Component, row.Source, strings.Join(row.Fields, "; "), row.Calculation}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
