package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/odyssey-erp/costlens/internal/orders"
)

// AccountAggregate sums the reporting amounts of one account.
type AccountAggregate struct {
	AccountID   string         `json:"account_id"`
	AccountName string         `json:"account_name"`
	Orders      int            `json:"orders"`
	Sums        orders.Amounts `json:"sums"`
	// Margin is net minus total cost.
	Margin float64 `json:"margin"`
	// MarginPct is Margin over total cost in percent, nil when cost is zero.
	MarginPct *float64 `json:"margin_pct"`
}

// Metric selects the ranking key of account aggregates.
type Metric string

const (
	MetricTotalCost Metric = "total_cost"
	MetricMargin    Metric = "margin"
	MetricMarginPct Metric = "margin_pct"
	MetricAbsMargin Metric = "abs_margin"
)

// ParseMetric converts user input into a Metric.
func ParseMetric(value string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return MetricTotalCost, nil
	case MetricTotalCost, MetricMargin, MetricMarginPct, MetricAbsMargin:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidOptions, value)
}

// GroupByAccount partitions records by (account id, account name). The
// result keeps first-encountered order.
func GroupByAccount(records []orders.Record) []AccountAggregate {
	type key struct{ id, name string }
	index := make(map[key]int)
	aggs := make([]AccountAggregate, 0)
	for _, rec := range records {
		k := key{rec.AccountID, rec.AccountName}
		pos, ok := index[k]
		if !ok {
			pos = len(aggs)
			index[k] = pos
			aggs = append(aggs, AccountAggregate{AccountID: rec.AccountID, AccountName: rec.AccountName})
		}
		aggs[pos].Orders++
		aggs[pos].Sums = aggs[pos].Sums.Add(rec.Reporting)
	}
	for i := range aggs {
		aggs[i].Margin = aggs[i].Sums.Net - aggs[i].Sums.Total
		aggs[i].MarginPct = percentOf(aggs[i].Margin, aggs[i].Sums.Total)
	}
	return aggs
}

// Rank sorts a copy of aggs descending by metric and keeps the first n
// (all when n <= 0). Equal values keep their input order. Accounts without a
// margin percentage are excluded from MetricMarginPct rankings.
func Rank(aggs []AccountAggregate, metric Metric, n int) []AccountAggregate {
	ranked := make([]AccountAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if metric == MetricMarginPct && agg.MarginPct == nil {
			continue
		}
		ranked = append(ranked, agg)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return metricValue(ranked[i], metric) > metricValue(ranked[j], metric)
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func metricValue(agg AccountAggregate, metric Metric) float64 {
	switch metric {
	case MetricMargin:
		return agg.Margin
	case MetricMarginPct:
		if agg.MarginPct == nil {
			return math.Inf(-1)
		}
		return *agg.MarginPct
	case MetricAbsMargin:
		return math.Abs(agg.Margin)
	default:
		return agg.Sums.Total
	}
}
