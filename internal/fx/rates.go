// Package fx converts order amounts into the reporting currency through a
// static rate table configured at startup.
package fx

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultReportingCurrency is the currency every amount is normalized into.
const DefaultReportingCurrency = "EUR"

// ErrInvalidRate indicates a rate that cannot be used as a conversion factor.
var ErrInvalidRate = errors.New("fx: invalid rate")

// RateTable maps currency codes to a multiplicative factor into the
// reporting currency. A RateTable is immutable once built.
type RateTable struct {
	reporting string
	rates     map[string]float64
}

// DefaultRates returns the built-in EUR rate table.
func DefaultRates() *RateTable {
	table, _ := NewRateTable(DefaultReportingCurrency, map[string]float64{
		"EUR": 1.0,
		"GBP": 1.17,
		"USD": 0.92,
		"KRW": 0.00069,
		"AUD": 0.60,
		"SGD": 0.68,
	})
	return table
}

// NewRateTable validates and copies the provided rates. The reporting
// currency is added with factor 1.0 when missing.
func NewRateTable(reporting string, rates map[string]float64) (*RateTable, error) {
	reporting = NormalizeCode(reporting)
	if reporting == "" {
		reporting = DefaultReportingCurrency
	}
	table := &RateTable{reporting: reporting, rates: make(map[string]float64, len(rates)+1)}
	for code, factor := range rates {
		normalized := NormalizeCode(code)
		if normalized == "" {
			return nil, fmt.Errorf("%w: empty currency code", ErrInvalidRate)
		}
		if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidRate, normalized, factor)
		}
		table.rates[normalized] = factor
	}
	if factor, ok := table.rates[reporting]; ok && factor != 1.0 {
		return nil, fmt.Errorf("%w: reporting currency %s must map to 1.0, got %v", ErrInvalidRate, reporting, factor)
	}
	table.rates[reporting] = 1.0
	return table, nil
}

// NormalizeCode trims and upper-cases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Reporting returns the reporting currency code.
func (t *RateTable) Reporting() string {
	if t == nil {
		return DefaultReportingCurrency
	}
	return t.reporting
}

// Lookup returns the factor for a currency code.
func (t *RateTable) Lookup(code string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	factor, ok := t.rates[NormalizeCode(code)]
	return factor, ok
}

// Convert multiplies amount by the factor of code. Zero amounts convert to
// zero without consulting the table. Unknown codes return the amount
// unchanged with known=false.
func (t *RateTable) Convert(amount float64, code string) (value float64, known bool) {
	if amount == 0 {
		return 0, true
	}
	factor, ok := t.Lookup(code)
	if !ok {
		return amount, false
	}
	return amount * factor, true
}

// Codes returns the configured currency codes sorted alphabetically.
func (t *RateTable) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Rates returns a copy of the underlying mapping.
func (t *RateTable) Rates() map[string]float64 {
	out := make(map[string]float64)
	if t == nil {
		return out
	}
	for code, factor := range t.rates {
		out[code] = factor
	}
	return out
}
