package analytics

import (
	"github.com/odyssey-erp/costlens/internal/orders"
)

// Totals contains the headline indicators of a record set.
type Totals struct {
	Orders         int            `json:"orders"`
	Sums           orders.Amounts `json:"sums"`
	AverageCost    float64        `json:"average_cost"`
	Difference     float64        `json:"difference"`
	UniqueAccounts int            `json:"unique_accounts"`
	ActiveAccounts int            `json:"active_accounts"`
}

// ComputeTotals sums every reporting field. AverageCost is zero for an empty
// set. Active accounts are accounts with a positive total cost record.
func ComputeTotals(records []orders.Record) Totals {
	var totals Totals
	unique := make(map[string]struct{})
	active := make(map[string]struct{})
	for _, rec := range records {
		totals.Orders++
		totals.Sums = totals.Sums.Add(rec.Reporting)
		if rec.AccountID == "" {
			continue
		}
		unique[rec.AccountID] = struct{}{}
		if rec.Reporting.Total > 0 {
			active[rec.AccountID] = struct{}{}
		}
	}
	if totals.Orders > 0 {
		totals.AverageCost = totals.Sums.Total / float64(totals.Orders)
	}
	totals.Difference = totals.Sums.Net - totals.Sums.Total
	totals.UniqueAccounts = len(unique)
	totals.ActiveAccounts = len(active)
	return totals
}
