package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/execdash/internal/shared"
)

// Bucket identifies a days-past-due range.
type Bucket int

const (
	BucketCurrent Bucket = iota
	Bucket1To30
	Bucket31To60
	Bucket61To90
	Bucket90Plus
)

// Buckets lists every aging bucket from youngest to oldest.
var Buckets = []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, Bucket90Plus}

func (b Bucket) String() string {
	switch b {
	case BucketCurrent:
		return "Current"
	case Bucket1To30:
		return "Days1_30"
	case Bucket31To60:
		return "Days31_60"
	case Bucket61To90:
		return "Days61_90"
	case Bucket90Plus:
		return "Days90Plus"
	default:
		return "Unknown"
	}
}

// BucketFor maps days overdue onto its aging bucket.
func BucketFor(daysOverdue int) Bucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}

// AgingSnapshot holds the open balance per bucket.
type AgingSnapshot struct {
	Current    float64 `json:"Current"`
	Days1To30  float64 `json:"Days1_30"`
	Days31To60 float64 `json:"Days31_60"`
	Days61To90 float64 `json:"Days61_90"`
	Days90Plus float64 `json:"Days90Plus"`
	Total      float64 `json:"Total"`
}

// Get returns the balance held in bucket b.
func (a AgingSnapshot) Get(b Bucket) float64 {
	switch b {
	case BucketCurrent:
		return a.Current
	case Bucket1To30:
		return a.Days1To30
	case Bucket31To60:
		return a.Days31To60
	case Bucket61To90:
		return a.Days61To90
	case Bucket90Plus:
		return a.Days90Plus
	}
	return 0
}

func (a *AgingSnapshot) add(b Bucket, amount float64) {
	switch b {
	case BucketCurrent:
		a.Current += amount
	case Bucket1To30:
		a.Days1To30 += amount
	case Bucket31To60:
		a.Days31To60 += amount
	case Bucket61To90:
		a.Days61To90 += amount
	case Bucket90Plus:
		a.Days90Plus += amount
	}
	a.Total += amount
}

func (a AgingSnapshot) rounded() AgingSnapshot {
	return AgingSnapshot{
		Current:    round2(a.Current),
		Days1To30:  round2(a.Days1To30),
		Days31To60: round2(a.Days31To60),
		Days61To90: round2(a.Days61To90),
		Days90Plus: round2(a.Days90Plus),
		Total:      round2(a.Total),
	}
}

// InvoiceBalance accumulates one invoice's postings and applications.
type InvoiceBalance struct {
	InvNum         string
	Customer       string
	InvDate        string
	DueDate        string
	OrderNum       string
	OriginalAmount float64
	AppliedAmount  float64
}

// Balance is the amount still owed.
func (b InvoiceBalance) Balance() float64 {
	return b.OriginalAmount - b.AppliedAmount
}

// OpenInvoice is an invoice with an outstanding balance as of the run date.
type OpenInvoice struct {
	InvNum      string     `json:"InvNum"`
	Customer    string     `json:"Customer"`
	Amount      float64    `json:"Amount"`
	DueDate     string     `json:"DueDate"`
	DaysOverdue int        `json:"DaysOverdue"`
	CoNum       string     `json:"CoNum"`
	LineItems   []LineItem `json:"LineItems"`
}

// ARInvoices lists open invoices per bucket.
type ARInvoices struct {
	Current    []OpenInvoice `json:"Current"`
	Days1To30  []OpenInvoice `json:"Days1_30"`
	Days31To60 []OpenInvoice `json:"Days31_60"`
	Days61To90 []OpenInvoice `json:"Days61_90"`
	Days90Plus []OpenInvoice `json:"Days90Plus"`
}

func (r *ARInvoices) slot(b Bucket) *[]OpenInvoice {
	switch b {
	case Bucket1To30:
		return &r.Days1To30
	case Bucket31To60:
		return &r.Days31To60
	case Bucket61To90:
		return &r.Days61To90
	case Bucket90Plus:
		return &r.Days90Plus
	default:
		return &r.Current
	}
}

// In returns the invoices held in bucket b.
func (r ARInvoices) In(b Bucket) []OpenInvoice {
	return *r.slot(b)
}

// Count is the number of open invoices across all buckets.
func (r ARInvoices) Count() int {
	n := 0
	for _, b := range Buckets {
		n += len(r.In(b))
	}
	return n
}

// ARLedger is the invoice ownership map rebuilt from AR transactions.
type ARLedger struct {
	invoices map[string]*InvoiceBalance
}

// ResolveAR performs the two-pass reduction: invoice postings first, then
// payments and credits applied to the invoice they target. Adjustments whose
// target is unknown are ignored.
func ResolveAR(txns []ARTransactionRecord) *ARLedger {
	ledger := &ARLedger{invoices: make(map[string]*InvoiceBalance)}
	for _, tx := range txns {
		if strings.TrimSpace(tx.Type) != ARTypeInvoice {
			continue
		}
		invNum := strings.TrimSpace(tx.InvNum)
		if invNum == "" {
			continue
		}
		inv := ledger.invoices[invNum]
		if inv == nil {
			inv = &InvoiceBalance{InvNum: invNum}
			ledger.invoices[invNum] = inv
		}
		fillEmpty(&inv.Customer, tx.Customer)
		fillEmpty(&inv.InvDate, tx.InvDate)
		fillEmpty(&inv.DueDate, tx.DueDate)
		fillEmpty(&inv.OrderNum, strings.TrimSpace(tx.OrderNum))
		inv.OriginalAmount += tx.Amount
	}

	for _, tx := range txns {
		kind := strings.TrimSpace(tx.Type)
		if kind != ARTypePayment && kind != ARTypeCredit {
			continue
		}
		if tx.Amount == 0 {
			continue
		}
		target := strings.TrimSpace(tx.ApplyToInvNum)
		if target == "" {
			target = strings.TrimSpace(tx.InvNum)
		}
		if inv, ok := ledger.invoices[target]; ok {
			inv.AppliedAmount += tx.Amount
		}
	}
	return ledger
}

func fillEmpty(dst *string, v string) {
	if *dst == "" && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Invoice returns the accumulated balance for an invoice number.
func (l *ARLedger) Invoice(invNum string) (InvoiceBalance, bool) {
	if l == nil {
		return InvoiceBalance{}, false
	}
	inv, ok := l.invoices[strings.TrimSpace(invNum)]
	if !ok {
		return InvoiceBalance{}, false
	}
	return *inv, true
}

// Len reports how many invoices were seen.
func (l *ARLedger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.invoices)
}

// OpenInvoices derives every invoice whose balance exceeds threshold and
// whose due date parses, ordered by invoice number.
func (l *ARLedger) OpenInvoices(asOf time.Time, threshold float64, index *ReferenceIndex) []OpenInvoice {
	if l == nil {
		return nil
	}
	nums := make([]string, 0, len(l.invoices))
	for num := range l.invoices {
		nums = append(nums, num)
	}
	sort.Strings(nums)

	open := make([]OpenInvoice, 0)
	for _, num := range nums {
		inv := l.invoices[num]
		balance := inv.Balance()
		if balance <= threshold {
			continue
		}
		due, ok := shared.ParseDate(inv.DueDate)
		if !ok {
			continue
		}
		customer := inv.Customer
		if strings.TrimSpace(customer) == "" {
			customer = unknownCustomer
		}
		open = append(open, OpenInvoice{
			InvNum:      num,
			Customer:    customer,
			Amount:      round2(balance),
			DueDate:     shared.DateKey(due),
			DaysOverdue: shared.DaysBetween(due, asOf),
			CoNum:       inv.OrderNum,
			LineItems:   index.LineItems(inv.OrderNum),
		})
	}
	return open
}

// AgeInvoices places every open invoice in exactly one bucket and totals the
// buckets. Each bucket's list is sorted by amount, largest first.
func AgeInvoices(open []OpenInvoice) (AgingSnapshot, ARInvoices) {
	var snapshot AgingSnapshot
	lists := ARInvoices{
		Current:    []OpenInvoice{},
		Days1To30:  []OpenInvoice{},
		Days31To60: []OpenInvoice{},
		Days61To90: []OpenInvoice{},
		Days90Plus: []OpenInvoice{},
	}
	for _, inv := range open {
		bucket := BucketFor(inv.DaysOverdue)
		snapshot.add(bucket, inv.Amount)
		slot := lists.slot(bucket)
		*slot = append(*slot, inv)
	}
	for _, b := range Buckets {
		slot := lists.slot(b)
		sort.SliceStable(*slot, func(i, j int) bool { return (*slot)[i].Amount > (*slot)[j].Amount })
	}
	return snapshot, lists
}

const unknownCustomer = "Unknown"
