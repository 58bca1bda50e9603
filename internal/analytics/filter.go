package analytics

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/costlens/internal/orders"
)

// Filter restricts the record set. An empty slice means no restriction.
// Accounts match the account name.
type Filter struct {
	Accounts  []string `json:"accounts,omitempty"`
	Countries []string `json:"countries,omitempty"`
	Statuses  []string `json:"statuses,omitempty"`
}

// FilterChoices lists the distinct values a filter can select.
type FilterChoices struct {
	Accounts  []string `json:"accounts"`
	Countries []string `json:"countries"`
	Statuses  []string `json:"statuses"`
}

// Normalize trims, de-duplicates and sorts every filter set.
func (f Filter) Normalize() Filter {
	return Filter{
		Accounts:  normalizeSet(f.Accounts),
		Countries: normalizeSet(f.Countries),
		Statuses:  normalizeSet(f.Statuses),
	}
}

// IsEmpty reports whether the filter keeps every record.
func (f Filter) IsEmpty() bool {
	return len(f.Accounts) == 0 && len(f.Countries) == 0 && len(f.Statuses) == 0
}

// Token renders a canonical representation usable in cache keys: a digest
// of the normalized filter, so values containing separators cannot collide.
func (f Filter) Token() string {
	n := f.Normalize()
	if n.IsEmpty() {
		return "all"
	}
	// Marshalling a struct of string slices cannot fail.
	raw, _ := json.Marshal(n)
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// Apply returns the records matching the filter, preserving order. Countries
// match the grouped country, so Unknown selects blank pickup countries.
func Apply(records []orders.Record, filter Filter) []orders.Record {
	if filter.IsEmpty() {
		return records
	}
	accounts := toSet(filter.Accounts)
	countries := toSet(filter.Countries)
	statuses := toSet(filter.Statuses)
	out := make([]orders.Record, 0, len(records))
	for _, rec := range records {
		if !matches(accounts, rec.AccountName) {
			continue
		}
		if !matches(countries, rec.Country()) {
			continue
		}
		if !matches(statuses, rec.Status) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Choices returns the sorted distinct account names, countries and statuses.
func Choices(records []orders.Record) FilterChoices {
	accounts := make(map[string]struct{})
	countries := make(map[string]struct{})
	statuses := make(map[string]struct{})
	for _, rec := range records {
		addNonEmpty(accounts, rec.AccountName)
		addNonEmpty(countries, rec.Country())
		addNonEmpty(statuses, rec.Status)
	}
	return FilterChoices{
		Accounts:  sortedKeys(accounts),
		Countries: sortedKeys(countries),
		Statuses:  sortedKeys(statuses),
	}
}

func matches(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}

func toSet(values []string) map[string]struct{} {
	values = normalizeSet(values)
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		addNonEmpty(seen, strings.TrimSpace(v))
	}
	return sortedKeys(seen)
}

func addNonEmpty(set map[string]struct{}, value string) {
	if value == "" {
		return
	}
	set[value] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
