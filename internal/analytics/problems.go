package analytics

import "sort"

// ComponentShare is a cost component's share of an account's total cost.
type ComponentShare struct {
	Type   CostType `json:"type"`
	Label  string   `json:"label"`
	Amount float64  `json:"amount"`
	Pct    *float64 `json:"pct"`
}

// ProblemAccount is an account losing money or billing nothing for its cost.
type ProblemAccount struct {
	AccountAggregate
	CostOnly bool             `json:"cost_only"`
	Shares   []ComponentShare `json:"shares"`
}

// ProblemReport lists problem accounts, most negative margin first.
type ProblemReport struct {
	Accounts      []ProblemAccount `json:"accounts"`
	Count         int              `json:"count"`
	TotalAccounts int              `json:"total_accounts"`
	// TotalLoss is the summed margin of the problem accounts.
	TotalLoss float64 `json:"total_loss"`
	TotalCost float64 `json:"total_cost"`
}

// ComputeProblems selects accounts whose margin is below floor, or whose
// cost is positive while net is zero.
func ComputeProblems(aggs []AccountAggregate, floor float64) ProblemReport {
	report := ProblemReport{Accounts: []ProblemAccount{}, TotalAccounts: len(aggs)}
	for _, agg := range aggs {
		costOnly := agg.Sums.Total > 0 && agg.Sums.Net == 0
		if agg.Margin >= floor && !costOnly {
			continue
		}
		report.Accounts = append(report.Accounts, ProblemAccount{
			AccountAggregate: agg,
			CostOnly:         costOnly,
			Shares:           componentShares(agg),
		})
		report.TotalLoss += agg.Margin
		report.TotalCost += agg.Sums.Total
	}
	sort.SliceStable(report.Accounts, func(i, j int) bool {
		return report.Accounts[i].Margin < report.Accounts[j].Margin
	})
	report.Count = len(report.Accounts)
	return report
}

func componentShares(agg AccountAggregate) []ComponentShare {
	shares := make([]ComponentShare, 0, 4)
	for _, t := range CostTypes() {
		amount := t.Amount(agg.Sums)
		if amount <= 0 {
			continue
		}
		shares = append(shares, ComponentShare{
			Type:   t,
			Label:  t.Label(),
			Amount: amount,
			Pct:    percentOf(amount, agg.Sums.Total),
		})
	}
	return shares
}
