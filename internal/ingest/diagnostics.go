package ingest

import "fmt"

// NoticeKind classifies a row-level or column-level defect.
type NoticeKind string

const (
	NoticeUnknownCurrency NoticeKind = "unknown_currency"
	NoticeMissingCurrency NoticeKind = "missing_currency"
	NoticeCoercedAmount   NoticeKind = "coerced_amount"
	NoticeUnparseableDate NoticeKind = "unparseable_date"
	NoticeMissingColumn   NoticeKind = "missing_column"
)

// Notice is an informational message raised during ingestion.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Row     int        `json:"row,omitempty"`
	Column  string     `json:"column,omitempty"`
	Value   string     `json:"value,omitempty"`
	Message string     `json:"message"`
}

// Diagnostics collects defects observed during one ingestion pass. Unknown
// currency codes and missing columns produce a notice once each; the other
// row-level defects are counted.
type Diagnostics struct {
	RowsRead            int      `json:"rows_read"`
	RowsRetained        int      `json:"rows_retained"`
	RowsDroppedByStatus int      `json:"rows_dropped_by_status"`
	CoercedAmounts      int      `json:"coerced_amounts"`
	UnparseableDates    int      `json:"unparseable_dates"`
	MissingCurrencyRows int      `json:"missing_currency_rows"`
	UnknownCurrencies   []string `json:"unknown_currencies"`
	MissingColumns      []string `json:"missing_columns"`
	Notices             []Notice `json:"notices"`

	seen map[string]struct{}
	sink func(Notice)
}

// NewDiagnostics returns an empty collector. sink, when set, receives every
// notice as it is recorded.
func NewDiagnostics(sink func(Notice)) *Diagnostics {
	return &Diagnostics{
		UnknownCurrencies: []string{},
		MissingColumns:    []string{},
		Notices:           []Notice{},
		seen:              make(map[string]struct{}),
		sink:              sink,
	}
}

// Counts returns the number of defects per kind.
func (d *Diagnostics) Counts() map[NoticeKind]int {
	if d == nil {
		return map[NoticeKind]int{}
	}
	return map[NoticeKind]int{
		NoticeUnknownCurrency: len(d.UnknownCurrencies),
		NoticeMissingCurrency: d.MissingCurrencyRows,
		NoticeCoercedAmount:   d.CoercedAmounts,
		NoticeUnparseableDate: d.UnparseableDates,
		NoticeMissingColumn:   len(d.MissingColumns),
	}
}

func (d *Diagnostics) unknownCurrency(code string, row int) {
	if !d.once("currency:" + code) {
		return
	}
	d.UnknownCurrencies = append(d.UnknownCurrencies, code)
	d.emit(Notice{
		Kind:    NoticeUnknownCurrency,
		Row:     row,
		Column:  "CURR",
		Value:   code,
		Message: fmt.Sprintf("unknown currency %q, amounts kept unconverted", code),
	})
}

func (d *Diagnostics) missingColumn(column string) {
	if !d.once("column:" + column) {
		return
	}
	d.MissingColumns = append(d.MissingColumns, column)
	d.emit(Notice{
		Kind:    NoticeMissingColumn,
		Column:  column,
		Message: fmt.Sprintf("column %q not present, derived values default to zero", column),
	})
}

func (d *Diagnostics) missingCurrency() {
	d.MissingCurrencyRows++
}

func (d *Diagnostics) coercedAmount() {
	d.CoercedAmounts++
}

func (d *Diagnostics) unparseableDate() {
	d.UnparseableDates++
}

func (d *Diagnostics) once(key string) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

func (d *Diagnostics) emit(n Notice) {
	d.Notices = append(d.Notices, n)
	if d.sink != nil {
		d.sink(n)
	}
}
