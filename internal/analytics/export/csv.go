// Package export serialises records and views to CSV downloads.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/costlens/internal/analytics"
	"github.com/odyssey-erp/costlens/internal/orders"
)

const (
	reportingSuffix = "_EUR"
	dateLayout      = "2006-01-02"
)

// AccountSummaryHeader is the header row of the account summary export.
var AccountSummaryHeader = []string{
	"Account", "Account Name", "Total Cost (EUR)", "NET (EUR)", "Orders", "Difference (EUR)", "Diff %",
}

// RecordsHeader returns the header of the record export: the source columns,
// one reporting column per amount, then the month bucket.
func RecordsHeader() []string {
	header := orders.Columns()
	for _, col := range orders.AmountColumns() {
		header = append(header, col+reportingSuffix)
	}
	return append(header, "Month")
}

// WriteRecordsCSV emits the record set with raw and reporting amounts.
func WriteRecordsCSV(w io.Writer, records []orders.Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(RecordsHeader()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(recordRow(rec)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func recordRow(rec orders.Record) []string {
	cols := orders.AmountColumns()
	raw := make(map[string]string, len(cols))
	for i, v := range rec.Raw.Values() {
		raw[cols[i]] = formatFloat(v)
	}
	date := ""
	if rec.DateValid {
		date = rec.OrderDate.Format(dateLayout)
	}
	text := map[string]string{
		orders.ColOrderDate:     date,
		orders.ColAccountID:     rec.AccountID,
		orders.ColAccountName:   rec.AccountName,
		orders.ColOffice:        rec.Office,
		orders.ColOrderNumber:   rec.OrderNumber,
		orders.ColCurrency:      rec.Currency,
		orders.ColInvoiceNumber: rec.InvoiceNumber,
		orders.ColStatus:        rec.Status,
		orders.ColPickupCountry: rec.PickupCountry,
	}
	row := make([]string, 0, len(orders.Columns())+8)
	for _, col := range orders.Columns() {
		if v, ok := raw[col]; ok {
			row = append(row, v)
			continue
		}
		row = append(row, text[col])
	}
	for _, v := range rec.Reporting.Values() {
		row = append(row, formatFloat(v))
	}
	return append(row, rec.Month)
}

// WriteAccountSummaryCSV prints the difference table. Callers pass
// aggregates already ranked by absolute difference.
func WriteAccountSummaryCSV(w io.Writer, aggs []analytics.AccountAggregate) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(AccountSummaryHeader); err != nil {
		return err
	}
	for _, agg := range aggs {
		if err := writer.Write([]string{
			agg.AccountID,
			agg.AccountName,
			FormatMoney(agg.Sums.Total),
			FormatMoney(agg.Sums.Net),
			strconv.Itoa(agg.Orders),
			FormatMoney(agg.Margin),
			FormatPercent(agg.MarginPct),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTotalsCSV serialises the headline indicators.
func WriteTotalsCSV(w io.Writer, totals analytics.Totals) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Orders", strconv.Itoa(totals.Orders)},
		{"Total Cost (EUR)", formatFloat(totals.Sums.Total)},
		{"NET (EUR)", formatFloat(totals.Sums.Net)},
		{"Average Cost (EUR)", formatFloat(totals.AverageCost)},
		{"Difference (EUR)", formatFloat(totals.Difference)},
		{"Unique Accounts", strconv.Itoa(totals.UniqueAccounts)},
		{"Active Accounts", strconv.Itoa(totals.ActiveAccounts)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMonthlyCSV emits the monthly cost trend.
func WriteMonthlyCSV(w io.Writer, points []analytics.MonthlyPoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Month", "Total Cost (EUR)", "NET (EUR)", "Orders"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Period,
			formatFloat(point.Cost),
			formatFloat(point.Net),
			strconv.Itoa(point.Orders),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteProblemAccountsCSV prints loss-making accounts with their component
// shares.
func WriteProblemAccountsCSV(w io.Writer, report analytics.ProblemReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	header := append([]string{}, AccountSummaryHeader...)
	for _, t := range analytics.CostTypes() {
		header = append(header, t.Label()+" %")
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, acct := range report.Accounts {
		shares := make(map[analytics.CostType]*float64, len(acct.Shares))
		for _, share := range acct.Shares {
			shares[share.Type] = share.Pct
		}
		row := []string{
			acct.AccountID,
			acct.AccountName,
			FormatMoney(acct.Sums.Total),
			FormatMoney(acct.Sums.Net),
			strconv.Itoa(acct.Orders),
			FormatMoney(acct.Margin),
			FormatPercent(acct.MarginPct),
		}
		for _, t := range analytics.CostTypes() {
			row = append(row, FormatPercent(shares[t]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
