// Package ingest reads a spreadsheet of orders into normalized records with
// amounts converted into the reporting currency.
package ingest

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/orders"
)

const ctxCheckEvery = 1024

// Options configures a normalization pass.
type Options struct {
	// StatusFilter keeps only billed orders.
	StatusFilter bool
	Rates        *fx.RateTable
}

// Recorder receives ingestion metrics.
type Recorder interface {
	ObserveIngest(outcome string, rows int, elapsed time.Duration)
	AddNotices(kind string, count int)
}

// Source is one tabular file handed to the ingester.
type Source struct {
	Name   string
	Format Format
	Reader io.Reader
}

// CurrencyCount is the number of retained rows per currency code.
type CurrencyCount struct {
	Code  string  `json:"code"`
	Rows  int     `json:"rows"`
	Rate  float64 `json:"rate"`
	Known bool    `json:"known"`
}

// Dataset is the immutable result of a successful ingestion.
type Dataset struct {
	ID             string          `json:"id"`
	Source         string          `json:"source"`
	Format         Format          `json:"format"`
	Fingerprint    string          `json:"fingerprint"`
	IngestedAt     time.Time       `json:"ingested_at"`
	StatusFiltered bool            `json:"status_filtered"`
	Records        []orders.Record `json:"-"`
	Diagnostics    *Diagnostics    `json:"diagnostics"`
	Currencies     []CurrencyCount `json:"currencies"`
}

// Ingester turns sources into datasets.
type Ingester struct {
	opts    Options
	logger  *slog.Logger
	metrics Recorder
	now     func() time.Time
}

// NewIngester wires an ingester. Rates default to fx.DefaultRates.
func NewIngester(opts Options, logger *slog.Logger, metrics Recorder) *Ingester {
	if opts.Rates == nil {
		opts.Rates = fx.DefaultRates()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{opts: opts, logger: logger, metrics: metrics, now: time.Now}
}

// WithNow overrides the ingester clock for testing.
func (i *Ingester) WithNow(fn func() time.Time) {
	if fn != nil {
		i.now = fn
	}
}

// Options returns the configuration in use.
func (i *Ingester) Options() Options {
	return i.opts
}

// Ingest reads, normalizes and fingerprints a source. It returns either a
// complete dataset or a single error.
func (i *Ingester) Ingest(ctx context.Context, src Source) (*Dataset, error) {
	start := i.now()
	ds, err := i.ingest(ctx, src)
	if i.metrics != nil {
		outcome, rows := "success", 0
		if err != nil {
			outcome = "failure"
		} else {
			rows = len(ds.Records)
			for kind, count := range ds.Diagnostics.Counts() {
				i.metrics.AddNotices(string(kind), count)
			}
		}
		i.metrics.ObserveIngest(outcome, rows, i.now().Sub(start))
	}
	if err != nil {
		i.logger.Error("ingest source", slog.String("source", src.Name), slog.Any("error", err))
		return nil, err
	}
	i.logger.Info("ingested source",
		slog.String("source", src.Name),
		slog.String("dataset_id", ds.ID),
		slog.Int("rows_read", ds.Diagnostics.RowsRead),
		slog.Int("rows_retained", ds.Diagnostics.RowsRetained),
		slog.Int("coerced_amounts", ds.Diagnostics.CoercedAmounts),
		slog.Int("unparseable_dates", ds.Diagnostics.UnparseableDates),
	)
	return ds, nil
}

func (i *Ingester) ingest(ctx context.Context, src Source) (*Dataset, error) {
	if src.Reader == nil {
		return nil, ErrEmptySource
	}
	data, err := io.ReadAll(src.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptySource
	}
	format, err := ResolveFormat(src.Name, src.Format, data)
	if err != nil {
		return nil, err
	}
	table, err := ReadTable(bytes.NewReader(data), format)
	if err != nil {
		return nil, err
	}
	ds, err := i.Normalize(ctx, table)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(data)
	ds.ID = uuid.NewString()
	ds.Source = src.Name
	ds.Format = format
	ds.Fingerprint = hex.EncodeToString(sum[:])
	ds.IngestedAt = i.now().UTC()
	return ds, nil
}

// Normalize converts a table into records. The returned dataset carries no
// identity fields; Ingest fills them.
func (i *Ingester) Normalize(ctx context.Context, table Table) (*Dataset, error) {
	cols := resolveColumns(table.Header)
	if _, ok := cols[orders.ColCurrency]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, orders.ColCurrency)
	}
	if _, ok := cols[orders.ColStatus]; !ok && i.opts.StatusFilter {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, orders.ColStatus)
	}

	diag := NewDiagnostics(i.logNotice)
	for _, col := range orders.Columns() {
		if _, ok := cols[col]; !ok {
			diag.missingColumn(col)
		}
	}

	amountCols := make([]string, 0, len(orders.AmountColumns()))
	for _, col := range orders.AmountColumns() {
		if _, ok := cols[col]; ok {
			amountCols = append(amountCols, col)
		}
	}

	records := make([]orders.Record, 0, len(table.Rows))
	currencyRows := make(map[string]int)
	currencyOrder := make([]string, 0)
	for idx, row := range table.Rows {
		if idx%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if blankRow(row) {
			continue
		}
		diag.RowsRead++
		get := func(col string) any {
			pos, ok := cols[col]
			if !ok || pos >= len(row) {
				return nil
			}
			return row[pos]
		}

		status := cellText(get(orders.ColStatus))
		if i.opts.StatusFilter && status != orders.StatusBilled {
			diag.RowsDroppedByStatus++
			continue
		}

		rec := orders.Record{
			Row:           table.HeaderRow + idx + 2,
			AccountID:     cellText(get(orders.ColAccountID)),
			AccountName:   cellText(get(orders.ColAccountName)),
			Office:        cellText(get(orders.ColOffice)),
			OrderNumber:   cellText(get(orders.ColOrderNumber)),
			InvoiceNumber: cellText(get(orders.ColInvoiceNumber)),
			Status:        status,
			PickupCountry: cellText(get(orders.ColPickupCountry)),
		}
		if date, ok := ParseOrderDate(get(orders.ColOrderDate)); ok {
			rec.OrderDate = date
			rec.DateValid = true
		} else if _, present := cols[orders.ColOrderDate]; present {
			diag.unparseableDate()
		}
		rec.Month = orders.MonthKey(rec.OrderDate, rec.DateValid)

		currency := fx.NormalizeCode(cellText(get(orders.ColCurrency)))
		if currency == "NAN" {
			currency = ""
		}
		if currency == "" {
			diag.missingCurrency()
		}
		rec.Currency = currency

		for _, col := range amountCols {
			raw, ok := CleanAmount(get(col))
			if !ok {
				diag.coercedAmount()
			}
			rec.Raw.Set(col, raw)
			converted, known := i.opts.Rates.Convert(raw, currency)
			if !known && currency != "" {
				diag.unknownCurrency(currency, rec.Row)
			}
			rec.Reporting.Set(col, converted)
		}

		if currency != "" {
			if _, ok := currencyRows[currency]; !ok {
				currencyOrder = append(currencyOrder, currency)
			}
			currencyRows[currency]++
		}
		records = append(records, rec)
	}
	diag.RowsRetained = len(records)

	return &Dataset{
		StatusFiltered: i.opts.StatusFilter,
		Records:        records,
		Diagnostics:    diag,
		Currencies:     i.currencyCounts(currencyOrder, currencyRows),
	}, nil
}

func (i *Ingester) currencyCounts(order []string, rows map[string]int) []CurrencyCount {
	out := make([]CurrencyCount, 0, len(order))
	for _, code := range order {
		rate, known := i.opts.Rates.Lookup(code)
		if !known {
			rate = 1.0
		}
		out = append(out, CurrencyCount{Code: code, Rows: rows[code], Rate: rate, Known: known})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Rows > out[b].Rows
	})
	return out
}

func (i *Ingester) logNotice(n Notice) {
	i.logger.Warn(n.Message,
		slog.String("kind", string(n.Kind)),
		slog.String("column", n.Column),
		slog.String("value", n.Value),
		slog.Int("row", n.Row),
	)
}

// resolveColumns maps expected headers to their position. Exact matches win
// over case-insensitive ones; the first occurrence of a header is used.
func resolveColumns(header []string) map[string]int {
	exact := make(map[string]int, len(header))
	folded := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := exact[name]; !ok {
			exact[name] = i
		}
		key := strings.ToLower(name)
		if _, ok := folded[key]; !ok {
			folded[key] = i
		}
	}
	cols := make(map[string]int, len(orders.Columns()))
	for _, col := range orders.Columns() {
		if pos, ok := exact[col]; ok {
			cols[col] = pos
			continue
		}
		if pos, ok := folded[strings.ToLower(col)]; ok {
			cols[col] = pos
		}
	}
	return cols
}

func blankRow(row []any) bool {
	for _, cell := range row {
		if !blankCell(cell) {
			return false
		}
	}
	return true
}
