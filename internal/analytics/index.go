package analytics

import (
	"math"
	"strings"
)

// LineItem is the drill-down detail retained for every counted order line.
type LineItem struct {
	Item        string  `json:"Item"`
	Description string  `json:"Description"`
	Qty         float64 `json:"Qty"`
	Price       float64 `json:"Price"`
	Extended    float64 `json:"Extended"`
	Category    string  `json:"Category"`
}

// OrderBreakdown accumulates an order's invoiced value by classification.
type OrderBreakdown struct {
	Service float64
	Product float64
	Total   float64
	Lines   []LineItem
}

// Ratios returns the service and product shares of the order. ok is false
// when the order has no positive total and must not be divided.
func (b OrderBreakdown) Ratios() (service, product float64, ok bool) {
	if b.Total <= 0 {
		return 0, 0, false
	}
	return b.Service / b.Total, b.Product / b.Total, true
}

// ReferenceIndex resolves item classifications and order breakdowns.
type ReferenceIndex struct {
	policy  Policy
	classes map[string]string
	orders  map[string]*OrderBreakdown
}

// BuildReferenceIndex classifies every item and folds order lines into
// per-order breakdowns.
func BuildReferenceIndex(policy Policy, items []ItemRecord, lines []OrderLineRecord) *ReferenceIndex {
	idx := &ReferenceIndex{
		policy:  policy,
		classes: make(map[string]string, len(items)),
		orders:  make(map[string]*OrderBreakdown),
	}
	for _, item := range items {
		code := strings.TrimSpace(item.Item)
		if code == "" {
			continue
		}
		class := CategoryProduct
		if policy.isServiceCode(strings.TrimSpace(item.ProductCode)) || strings.TrimSpace(item.Category) == policy.ServiceCategory {
			class = CategoryService
		}
		idx.classes[code] = class
	}

	for _, line := range lines {
		orderNum := strings.TrimSpace(line.OrderNum)
		if orderNum == "" {
			continue
		}
		amount := math.Abs(line.ExtendedPrice)
		if amount <= 0 {
			continue
		}
		itemKey := strings.TrimSpace(line.Item)
		class := idx.Classify(itemKey)

		breakdown := idx.orders[orderNum]
		if breakdown == nil {
			breakdown = &OrderBreakdown{}
			idx.orders[orderNum] = breakdown
		}
		if class == CategoryService {
			breakdown.Service += amount
		} else {
			breakdown.Product += amount
		}
		breakdown.Total += amount
		breakdown.Lines = append(breakdown.Lines, LineItem{
			Item:        itemKey,
			Description: line.Description,
			Qty:         line.QtyInvoiced,
			Price:       line.Price,
			Extended:    round2(amount),
			Category:    class,
		})
	}
	return idx
}

// Classify returns Service or Product for an item code. Unknown items are
// products.
func (x *ReferenceIndex) Classify(item string) string {
	if x == nil {
		return CategoryProduct
	}
	if class, ok := x.classes[strings.TrimSpace(item)]; ok {
		return class
	}
	return CategoryProduct
}

// Order returns the breakdown for an order number.
func (x *ReferenceIndex) Order(orderNum string) (OrderBreakdown, bool) {
	if x == nil || orderNum == "" {
		return OrderBreakdown{}, false
	}
	b, ok := x.orders[strings.TrimSpace(orderNum)]
	if !ok {
		return OrderBreakdown{}, false
	}
	return *b, true
}

// LineItems returns the retained line detail for an order, never nil.
func (x *ReferenceIndex) LineItems(orderNum string) []LineItem {
	b, ok := x.Order(orderNum)
	if !ok || len(b.Lines) == 0 {
		return []LineItem{}
	}
	return b.Lines
}

// Orders reports how many orders carry a breakdown.
func (x *ReferenceIndex) Orders() int {
	if x == nil {
		return 0
	}
	return len(x.orders)
}

// Items reports how many items were classified.
func (x *ReferenceIndex) Items() int {
	if x == nil {
		return 0
	}
	return len(x.classes)
}
