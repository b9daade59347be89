package syteline

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

// IDO names and the properties read from each.
const (
	IDOItems   = "SLItems"
	IDOCoItems = "SLCoItems"
	IDOArTrans = "SLArTrans"
	IDOLedgers = "SLLedgers"
)

var (
	itemProperties   = []string{"Item", "ProductCode", "itmuf_cti_product_category"}
	coItemProperties = []string{"CoNum", "CoLine", "Item", "ItDescription", "DerExtInvoicedPrice", "QtyInvoiced", "Price"}
	arProperties     = []string{"InvNum", "CoNum", "CadName", "InvDate", "DueDate", "Amount", "Type", "ApplyToInvNum"}
	ledgerProperties = []string{"Acct", "DomAmount", "TransDate", "Ref"}
)

// RecordCaps bounds the rows requested from each IDO.
type RecordCaps struct {
	Items          int
	OrderLines     int
	ARTransactions int
	Ledger         int
}

// DefaultRecordCaps mirrors the volumes the dashboard has been sized for.
func DefaultRecordCaps() RecordCaps {
	return RecordCaps{Items: 15000, OrderLines: 20000, ARTransactions: 20000, Ledger: 20000}
}

// Loader is the subset of Client used by Source.
type Loader interface {
	Authenticate(ctx context.Context) error
	Load(ctx context.Context, q Query) ([]Record, error)
}

// Source maps IDO rows onto analytics records.
type Source struct {
	loader Loader
	caps   RecordCaps
}

// NewSource wraps a loader with the configured record caps.
func NewSource(loader Loader, caps RecordCaps) *Source {
	return &Source{loader: loader, caps: caps}
}

// Authenticate obtains a session token.
func (s *Source) Authenticate(ctx context.Context) error {
	return s.loader.Authenticate(ctx)
}

// Items loads the item master.
func (s *Source) Items(ctx context.Context) ([]analytics.ItemRecord, error) {
	rows, err := s.loader.Load(ctx, Query{IDO: IDOItems, Properties: itemProperties, RecordCap: s.caps.Items})
	if err != nil {
		return nil, err
	}
	out := make([]analytics.ItemRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.ItemRecord{
			Item:        row.String("Item"),
			ProductCode: row.String("ProductCode"),
			Category:    row.String("itmuf_cti_product_category"),
		})
	}
	return out, nil
}

// OrderLines loads customer order lines with invoiced values.
func (s *Source) OrderLines(ctx context.Context) ([]analytics.OrderLineRecord, error) {
	rows, err := s.loader.Load(ctx, Query{IDO: IDOCoItems, Properties: coItemProperties, RecordCap: s.caps.OrderLines})
	if err != nil {
		return nil, err
	}
	out := make([]analytics.OrderLineRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.OrderLineRecord{
			OrderNum:      row.String("CoNum"),
			OrderLine:     row.String("CoLine"),
			Item:          row.String("Item"),
			Description:   row.String("ItDescription"),
			ExtendedPrice: row.Float("DerExtInvoicedPrice"),
			QtyInvoiced:   row.Float("QtyInvoiced"),
			Price:         row.Float("Price"),
		})
	}
	return out, nil
}

// ARTransactions loads invoice, payment and credit postings.
func (s *Source) ARTransactions(ctx context.Context) ([]analytics.ARTransactionRecord, error) {
	rows, err := s.loader.Load(ctx, Query{IDO: IDOArTrans, Properties: arProperties, RecordCap: s.caps.ARTransactions})
	if err != nil {
		return nil, err
	}
	out := make([]analytics.ARTransactionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.ARTransactionRecord{
			InvNum:        row.String("InvNum"),
			OrderNum:      row.String("CoNum"),
			Customer:      row.String("CadName"),
			InvDate:       row.String("InvDate"),
			DueDate:       row.String("DueDate"),
			Amount:        row.Float("Amount"),
			Type:          row.String("Type"),
			ApplyToInvNum: row.String("ApplyToInvNum"),
		})
	}
	return out, nil
}

// LedgerPostings loads general ledger rows for the filtered accounts.
func (s *Source) LedgerPostings(ctx context.Context, filter analytics.LedgerFilter) ([]analytics.LedgerRecord, error) {
	rows, err := s.loader.Load(ctx, Query{
		IDO:        IDOLedgers,
		Properties: ledgerProperties,
		Filter:     LedgerFilterExpr(filter),
		RecordCap:  s.caps.Ledger,
	})
	if err != nil {
		return nil, err
	}
	out := make([]analytics.LedgerRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, analytics.LedgerRecord{
			Account:   row.String("Acct"),
			Amount:    row.Float("DomAmount"),
			TransDate: row.String("TransDate"),
			Ref:       row.String("Ref"),
		})
	}
	return out, nil
}

// LedgerFilterExpr renders the IDO filter for a ledger query, for example
// (Acct = '401000' OR Acct = '402000') AND ControlYear >= 2026.
func LedgerFilterExpr(filter analytics.LedgerFilter) string {
	clauses := make([]string, 0, len(filter.Accounts))
	for _, acct := range filter.Accounts {
		clauses = append(clauses, fmt.Sprintf("Acct = '%s'", strings.ReplaceAll(acct, "'", "''")))
	}
	var parts []string
	if len(clauses) > 0 {
		parts = append(parts, "("+strings.Join(clauses, " OR ")+")")
	}
	if filter.FromYear > 0 {
		parts = append(parts, fmt.Sprintf("ControlYear >= %d", filter.FromYear))
	}
	return strings.Join(parts, " AND ")
}

var _ analytics.Source = (*Source)(nil)
