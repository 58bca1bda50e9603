package analytics

import (
	"math"
	"sort"
)

// ParetoThreshold is the cumulative cost share, in percent, that Within80
// counts up to.
const ParetoThreshold = 80.0

// ParetoEntry is one account in cumulative cost order.
type ParetoEntry struct {
	AccountID     string   `json:"account_id"`
	AccountName   string   `json:"account_name"`
	TotalCost     float64  `json:"total_cost"`
	Cumulative    float64  `json:"cumulative"`
	CumulativePct *float64 `json:"cumulative_pct"`
}

// Pareto is the cumulative cost analysis of account aggregates.
type Pareto struct {
	Entries    []ParetoEntry `json:"entries"`
	GrandTotal float64       `json:"grand_total"`
	// Within80 is the number of leading accounts whose cumulative share is
	// at most ParetoThreshold. An account crossing the threshold is excluded.
	Within80 int `json:"within_80"`
}

// ComputePareto sorts accounts by total cost descending and accumulates
// their share of the grand total. Accounts with a negative total keep it in
// TotalCost but contribute zero to the running sum, so shares never decrease
// and end at 100%. Shares stay nil when the grand total is zero.
func ComputePareto(aggs []AccountAggregate) Pareto {
	sorted := make([]AccountAggregate, len(aggs))
	copy(sorted, aggs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sums.Total > sorted[j].Sums.Total
	})

	entries := make([]ParetoEntry, len(sorted))
	var running float64
	for i, agg := range sorted {
		running += math.Max(agg.Sums.Total, 0)
		entries[i] = ParetoEntry{
			AccountID:   agg.AccountID,
			AccountName: agg.AccountName,
			TotalCost:   agg.Sums.Total,
			Cumulative:  running,
		}
	}
	grand := running

	result := Pareto{Entries: entries, GrandTotal: grand}
	if grand == 0 {
		return result
	}
	counting := true
	for i := range entries {
		entries[i].CumulativePct = percentOf(entries[i].Cumulative, grand)
		if counting && *entries[i].CumulativePct <= ParetoThreshold {
			result.Within80++
		} else {
			counting = false
		}
	}
	return result
}
