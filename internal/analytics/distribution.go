package analytics

import (
	"sort"

	"github.com/odyssey-erp/costlens/internal/orders"
)

// CountryTotal is the reporting cost of one pickup country.
type CountryTotal struct {
	Country string  `json:"country"`
	Cost    float64 `json:"cost"`
	Orders  int     `json:"orders"`
}

// StatusCount is the number of orders carrying a status code.
type StatusCount struct {
	Status string `json:"status"`
	Orders int    `json:"orders"`
}

// ComputeCountries ranks pickup countries by total cost and keeps the first
// n (all when n <= 0). Records without a country fall into "Unknown".
func ComputeCountries(records []orders.Record, n int) []CountryTotal {
	index := make(map[string]int)
	out := make([]CountryTotal, 0)
	for _, rec := range records {
		country := rec.Country()
		pos, ok := index[country]
		if !ok {
			pos = len(out)
			index[country] = pos
			out = append(out, CountryTotal{Country: country})
		}
		out[pos].Cost += rec.Reporting.Total
		out[pos].Orders++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cost > out[j].Cost
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ComputeStatuses counts orders per status, most frequent first, keeping
// the first n. Blank statuses are skipped.
func ComputeStatuses(records []orders.Record, n int) []StatusCount {
	index := make(map[string]int)
	out := make([]StatusCount, 0)
	for _, rec := range records {
		if rec.Status == "" {
			continue
		}
		pos, ok := index[rec.Status]
		if !ok {
			pos = len(out)
			index[rec.Status] = pos
			out = append(out, StatusCount{Status: rec.Status})
		}
		out[pos].Orders++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Orders > out[j].Orders
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
