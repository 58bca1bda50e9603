package analytics

import (
	"sort"

	"github.com/odyssey-erp/costlens/internal/orders"
)

// MonthlyPoint conveys cost and order volume for one month bucket.
type MonthlyPoint struct {
	Period string  `json:"period"`
	Cost   float64 `json:"cost"`
	Net    float64 `json:"net"`
	Orders int     `json:"orders"`
}

// ComputeMonthly groups records by month key. Periods are ascending with
// the Unknown bucket last.
func ComputeMonthly(records []orders.Record) []MonthlyPoint {
	index := make(map[string]int)
	points := make([]MonthlyPoint, 0)
	for _, rec := range records {
		period := rec.Month
		if period == "" {
			period = orders.UnknownMonth
		}
		pos, ok := index[period]
		if !ok {
			pos = len(points)
			index[period] = pos
			points = append(points, MonthlyPoint{Period: period})
		}
		points[pos].Cost += rec.Reporting.Total
		points[pos].Net += rec.Reporting.Net
		points[pos].Orders++
	}
	sort.Slice(points, func(i, j int) bool {
		a, b := points[i].Period, points[j].Period
		if a == orders.UnknownMonth || b == orders.UnknownMonth {
			return b == orders.UnknownMonth && a != orders.UnknownMonth
		}
		return a < b
	})
	return points
}
