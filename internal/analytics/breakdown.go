package analytics

import "github.com/odyssey-erp/costlens/internal/orders"

// CostType names one of the four cost components of an order.
type CostType string

const (
	CostPickup        CostType = "pickup"
	CostShipping      CostType = "shipping"
	CostManufacturing CostType = "manufacturing"
	CostDelivery      CostType = "delivery"
)

// CostTypes lists the components in display order.
func CostTypes() []CostType {
	return []CostType{CostPickup, CostShipping, CostManufacturing, CostDelivery}
}

// Label returns the short display label of the component.
func (c CostType) Label() string {
	switch c {
	case CostPickup:
		return "PU Cost"
	case CostShipping:
		return "Ship Cost"
	case CostManufacturing:
		return "Man Cost"
	case CostDelivery:
		return "Del Cost"
	}
	return string(c)
}

// Amount extracts the component from a set of amounts.
func (c CostType) Amount(a orders.Amounts) float64 {
	switch c {
	case CostPickup:
		return a.Pickup
	case CostShipping:
		return a.Shipping
	case CostManufacturing:
		return a.Manufacturing
	case CostDelivery:
		return a.Delivery
	}
	return 0
}

// CostComponent is one slice of the cost breakdown.
type CostComponent struct {
	Type   CostType `json:"type"`
	Label  string   `json:"label"`
	Amount float64  `json:"amount"`
	// Share is the percentage of the component total, nil when that total is zero.
	Share *float64 `json:"share"`
	// Present counts records with a positive amount for the component.
	Present int `json:"present"`
}

// Breakdown splits cost across the four components.
type Breakdown struct {
	Components []CostComponent `json:"components"`
	Total      float64         `json:"total"`
}

// ComputeBreakdown sums each component independently.
func ComputeBreakdown(records []orders.Record) Breakdown {
	types := CostTypes()
	comps := make([]CostComponent, len(types))
	for i, t := range types {
		comps[i] = CostComponent{Type: t, Label: t.Label()}
	}
	for _, rec := range records {
		for i, t := range types {
			amount := t.Amount(rec.Reporting)
			comps[i].Amount += amount
			if amount > 0 {
				comps[i].Present++
			}
		}
	}
	var total float64
	for _, c := range comps {
		total += c.Amount
	}
	for i := range comps {
		comps[i].Share = percentOf(comps[i].Amount, total)
	}
	return Breakdown{Components: comps, Total: total}
}

// percentOf returns part/whole*100, or nil when whole is zero.
func percentOf(part, whole float64) *float64 {
	if whole == 0 {
		return nil
	}
	pct := part / whole * 100
	return &pct
}
