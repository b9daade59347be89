package analytics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/execdash/internal/shared"
)

// DailySales is the per-category total for one calendar date. Total is
// accumulated alongside the categories, not derived from them.
type DailySales struct {
	Product       float64 `json:"Product"`
	Service       float64 `json:"Service"`
	Freight       float64 `json:"Freight"`
	Miscellaneous float64 `json:"Miscellaneous"`
	Total         float64 `json:"Total"`
}

func (d *DailySales) add(other DailySales) {
	d.Product += other.Product
	d.Service += other.Service
	d.Freight += other.Freight
	d.Miscellaneous += other.Miscellaneous
	d.Total += other.Total
}

func (d DailySales) rounded() DailySales {
	return DailySales{
		Product:       round2(d.Product),
		Service:       round2(d.Service),
		Freight:       round2(d.Freight),
		Miscellaneous: round2(d.Miscellaneous),
		Total:         round2(d.Total),
	}
}

// DayInvoice is an invoice's contribution to one date and category.
type DayInvoice struct {
	InvNum    string     `json:"InvNum"`
	Customer  string     `json:"Customer"`
	Amount    float64    `json:"Amount"`
	Category  string     `json:"Category"`
	CoNum     string     `json:"CoNum"`
	LineItems []LineItem `json:"LineItems"`
	Date      string     `json:"Date,omitempty"`
}

// CustomerInvoice is an invoice billed to a customer, first seen on Date.
type CustomerInvoice struct {
	InvNum string  `json:"InvNum"`
	Date   string  `json:"Date"`
	Amount float64 `json:"Amount"`
	CoNum  string  `json:"CoNum"`
}

type customerSales struct {
	total    float64
	invoices []CustomerInvoice
	position map[string]int
}

type productSales struct {
	description string
	category    string
	total       float64
	byDate      map[string]float64
}

// SalesLedger is the result of one aggregation pass over ledger postings.
type SalesLedger struct {
	days      map[string]*DailySales
	invoices  map[string][]DayInvoice
	dataDates map[string]struct{}
	customers map[string]*customerSales
	products  map[string]*productSales
}

func newSalesLedger() *SalesLedger {
	return &SalesLedger{
		days:      make(map[string]*DailySales),
		invoices:  make(map[string][]DayInvoice),
		dataDates: make(map[string]struct{}),
		customers: make(map[string]*customerSales),
		products:  make(map[string]*productSales),
	}
}

// Day returns the unrounded totals for a date key.
func (l *SalesLedger) Day(key string) DailySales {
	if l == nil {
		return DailySales{}
	}
	if d, ok := l.days[key]; ok {
		return *d
	}
	return DailySales{}
}

// HasData reports whether any posting carried the given date.
func (l *SalesLedger) HasData(key string) bool {
	if l == nil {
		return false
	}
	_, ok := l.dataDates[key]
	return ok
}

// DataDates returns every date with ledger data, ascending.
func (l *SalesLedger) DataDates() []string {
	if l == nil {
		return nil
	}
	keys := make([]string, 0, len(l.dataDates))
	for k := range l.dataDates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LatestDate is the most recent date with ledger data.
func (l *SalesLedger) LatestDate() (time.Time, bool) {
	keys := l.DataDates()
	if len(keys) == 0 {
		return time.Time{}, false
	}
	return shared.ParseDateKey(keys[len(keys)-1])
}

// InvoicesOn returns a copy of the invoice contributions for a date with
// amounts rounded, never nil.
func (l *SalesLedger) InvoicesOn(key string) []DayInvoice {
	if l == nil {
		return []DayInvoice{}
	}
	src := l.invoices[key]
	out := make([]DayInvoice, len(src))
	for i, inv := range src {
		inv.Amount = round2(inv.Amount)
		out[i] = inv
	}
	return out
}

// InvoicesByDate returns every date's invoice contributions, rounded.
func (l *SalesLedger) InvoicesByDate() map[string][]DayInvoice {
	out := make(map[string][]DayInvoice)
	if l == nil {
		return out
	}
	for key := range l.days {
		out[key] = l.InvoicesOn(key)
	}
	return out
}

// SalesAggregator classifies ledger postings into daily category totals.
type SalesAggregator struct {
	policy     Policy
	index      *ReferenceIndex
	ar         *ARLedger
	invoiceRef *regexp.Regexp
}

// NewSalesAggregator wires the lookup structures built earlier in the run.
func NewSalesAggregator(policy Policy, index *ReferenceIndex, ar *ARLedger) (*SalesAggregator, error) {
	re, err := policy.invoiceMatcher()
	if err != nil {
		return nil, fmt.Errorf("analytics: invoice reference pattern: %w", err)
	}
	return &SalesAggregator{policy: policy, index: index, ar: ar, invoiceRef: re}, nil
}

// Aggregate walks every posting once.
func (a *SalesAggregator) Aggregate(postings []LedgerRecord) *SalesLedger {
	ledger := newSalesLedger()
	for _, posting := range postings {
		a.post(ledger, posting)
	}
	return ledger
}

func (a *SalesAggregator) post(ledger *SalesLedger, posting LedgerRecord) {
	date, ok := shared.ParseDate(posting.TransDate)
	if !ok {
		return
	}
	key := shared.DateKey(date)
	ledger.dataDates[key] = struct{}{}
	if posting.Amount == 0 {
		return
	}
	amount := math.Abs(posting.Amount)
	acct := strings.TrimSpace(posting.Account)

	var (
		delta    DailySales
		category string
		revenue  bool
	)
	switch {
	case acct == "":
		return
	case acct == a.policy.Accounts.Freight:
		delta = DailySales{Freight: amount, Total: amount}
		category = CategoryFreight
	case acct == a.policy.Accounts.Miscellaneous:
		delta = DailySales{Miscellaneous: amount, Total: amount}
		category = CategoryMiscellaneous
	case a.policy.isRevenueAccount(acct):
		revenue = true
	default:
		return
	}

	invNum, orderNum, customer := a.resolveReference(posting.Ref)

	if revenue {
		category = CategoryProduct
		delta = DailySales{Product: amount, Total: amount}
		if breakdown, found := a.index.Order(orderNum); found {
			if serviceRatio, productRatio, ok := breakdown.Ratios(); ok {
				delta = DailySales{Service: amount * serviceRatio, Product: amount * productRatio, Total: amount}
				if serviceRatio > 0.5 {
					category = CategoryService
				}
			}
		}
		ledger.trackCustomer(customer, invNum, orderNum, key, amount)
		ledger.trackProducts(a.index, orderNum, key, amount)
	}

	day := ledger.days[key]
	if day == nil {
		day = &DailySales{}
		ledger.days[key] = day
	}
	day.add(delta)

	if invNum != "" {
		ledger.trackInvoice(key, DayInvoice{
			InvNum:    invNum,
			Customer:  customer,
			Amount:    amount,
			Category:  category,
			CoNum:     orderNum,
			LineItems: a.index.LineItems(orderNum),
		})
	}
}

// resolveReference extracts the AR invoice number from a posting reference
// and looks up its order and customer.
func (a *SalesAggregator) resolveReference(ref string) (invNum, orderNum, customer string) {
	customer = unknownCustomer
	match := a.invoiceRef.FindStringSubmatch(ref)
	if len(match) < 2 {
		return "", "", customer
	}
	invNum = strings.TrimSpace(match[1])
	if inv, ok := a.ar.Invoice(invNum); ok {
		orderNum = inv.OrderNum
		if strings.TrimSpace(inv.Customer) != "" {
			customer = inv.Customer
		}
	}
	return invNum, orderNum, customer
}

func (l *SalesLedger) trackInvoice(key string, inv DayInvoice) {
	list := l.invoices[key]
	for i := range list {
		if list[i].InvNum == inv.InvNum && list[i].Category == inv.Category {
			list[i].Amount += inv.Amount
			return
		}
	}
	l.invoices[key] = append(list, inv)
}

func (l *SalesLedger) trackCustomer(customer, invNum, orderNum, key string, amount float64) {
	if customer == "" || customer == unknownCustomer {
		return
	}
	c := l.customers[customer]
	if c == nil {
		c = &customerSales{position: make(map[string]int)}
		l.customers[customer] = c
	}
	c.total += amount
	if invNum == "" {
		return
	}
	if pos, ok := c.position[invNum]; ok {
		c.invoices[pos].Amount += amount
		return
	}
	c.position[invNum] = len(c.invoices)
	c.invoices = append(c.invoices, CustomerInvoice{InvNum: invNum, Date: key, Amount: amount, CoNum: orderNum})
}

func (l *SalesLedger) trackProducts(index *ReferenceIndex, orderNum, key string, amount float64) {
	breakdown, ok := index.Order(orderNum)
	if !ok {
		return
	}
	for _, line := range breakdown.Lines {
		denominator := breakdown.Total
		if denominator <= 0 {
			denominator = line.Extended
		}
		if denominator <= 0 {
			continue
		}
		share := amount * line.Extended / denominator
		p := l.products[line.Item]
		if p == nil {
			p = &productSales{description: line.Description, category: line.Category, byDate: make(map[string]float64)}
			l.products[line.Item] = p
		}
		p.total += share
		p.byDate[key] += share
	}
}
