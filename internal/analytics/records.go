package analytics

// Category labels used in snapshots and on the dashboard.
const (
	CategoryProduct       = "Product"
	CategoryService       = "Service"
	CategoryFreight       = "Freight"
	CategoryMiscellaneous = "Miscellaneous"
)

// AR transaction types as emitted by the ERP.
const (
	ARTypeInvoice = "I"
	ARTypePayment = "P"
	ARTypeCredit  = "C"
)

// ItemRecord is one row of the item master.
type ItemRecord struct {
	Item        string
	ProductCode string
	Category    string
}

// OrderLineRecord is one invoiced customer-order line.
type OrderLineRecord struct {
	OrderNum      string
	OrderLine     string
	Item          string
	Description   string
	ExtendedPrice float64
	QtyInvoiced   float64
	Price         float64
}

// ARTransactionRecord is one accounts-receivable posting. Date fields are kept
// raw and read through shared.ParseDate.
type ARTransactionRecord struct {
	InvNum        string
	OrderNum      string
	Customer      string
	InvDate       string
	DueDate       string
	Amount        float64
	Type          string
	ApplyToInvNum string
}

// LedgerRecord is one general-ledger posting.
type LedgerRecord struct {
	Account   string
	Amount    float64
	TransDate string
	Ref       string
}

// LedgerFilter scopes the ledger fetch.
type LedgerFilter struct {
	Accounts []string
	FromYear int
}

// Dataset groups the four record sets a snapshot is built from.
type Dataset struct {
	Items          []ItemRecord
	OrderLines     []OrderLineRecord
	ARTransactions []ARTransactionRecord
	Ledger         []LedgerRecord
}
