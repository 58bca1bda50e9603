package fx

import (
	"sort"
)

// Gap is a currency observed in the data that the rate table cannot convert.
type Gap struct {
	Code string `json:"code"`
	Rows int    `json:"rows"`
}

// Result summarises a coverage check of a rate table.
type Result struct {
	Reporting string             `json:"reporting"`
	Checked   int                `json:"checked"`
	Gaps      []Gap              `json:"gaps"`
	Available map[string]float64 `json:"available"`
}

// Validate reports which of the observed currency codes have no configured
// rate. observed maps a code to the number of rows using it; blank codes
// are ignored.
func Validate(table *RateTable, observed map[string]int) Result {
	res := Result{
		Reporting: table.Reporting(),
		Gaps:      []Gap{},
		Available: map[string]float64{},
	}
	codes := make([]string, 0, len(observed))
	counts := make(map[string]int, len(observed))
	for code, rows := range observed {
		normalized := NormalizeCode(code)
		if normalized == "" {
			continue
		}
		if _, seen := counts[normalized]; !seen {
			codes = append(codes, normalized)
		}
		counts[normalized] += rows
	}
	sort.Strings(codes)
	for _, code := range codes {
		res.Checked++
		factor, ok := table.Lookup(code)
		if !ok {
			res.Gaps = append(res.Gaps, Gap{Code: code, Rows: counts[code]})
			continue
		}
		res.Available[code] = factor
	}
	return res
}
