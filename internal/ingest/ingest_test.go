package ingest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/orders"
)

const header = "ORD DT,ACCT,ACCT NM,OFC,ORD#,PU COST,SHIP COST,MAN COST,DEL COST,Total cost,NET,CURR,INV#,TOTAL$,STATUS,PU CTRY\n"

type fakeRecorder struct {
	outcomes []string
	rows     int
	notices  map[string]int
}

func (f *fakeRecorder) ObserveIngest(outcome string, rows int, elapsed time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
	f.rows += rows
}

func (f *fakeRecorder) AddNotices(kind string, count int) {
	if f.notices == nil {
		f.notices = map[string]int{}
	}
	f.notices[kind] += count
}

func testRates(t *testing.T) *fx.RateTable {
	t.Helper()
	table, err := fx.NewRateTable("EUR", map[string]float64{"EUR": 1.0, "GBP": 1.17, "USD": 0.92})
	require.NoError(t, err)
	return table
}

func newTestIngester(t *testing.T, statusFilter bool, rec Recorder) *Ingester {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIngester(Options{StatusFilter: statusFilter, Rates: testRates(t)}, logger, rec)
}

func csvSource(body string) Source {
	return Source{Name: "orders.csv", Reader: strings.NewReader(header + body)}
}

func TestIngestEndToEndScenario(t *testing.T) {
	body := "2025-01-10,A,Acme,LON,1,0,0,0,0,100,120,EUR,INV1,120,440-BILLED,GB\n" +
		"2025-01-11,A,Acme,LON,2,0,0,0,0,50,0,GBP,INV2,0,440-BILLED,GB\n" +
		"2025-02-01,B,Beta,NYC,3,0,0,0,0,10,5,USD,INV3,5,440-BILLED,US\n"
	ds, err := newTestIngester(t, false, nil).Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)

	var costA, netA, costB, netB, grand float64
	for _, rec := range ds.Records {
		grand += rec.Reporting.Total
		switch rec.AccountID {
		case "A":
			costA += rec.Reporting.Total
			netA += rec.Reporting.Net
		case "B":
			costB += rec.Reporting.Total
			netB += rec.Reporting.Net
		}
	}
	assert.InDelta(t, 158.50, costA, 1e-9)
	assert.InDelta(t, 120.0, netA, 1e-9)
	assert.InDelta(t, -38.50, netA-costA, 1e-9)
	assert.InDelta(t, 9.20, costB, 1e-9)
	assert.InDelta(t, 4.60, netB, 1e-9)
	assert.InDelta(t, -4.60, netB-costB, 1e-9)
	assert.InDelta(t, 167.70, grand, 1e-9)

	assert.Equal(t, "2025-01", ds.Records[0].Month)
	assert.Equal(t, 50.0, ds.Records[1].Raw.Total)
	assert.NotEmpty(t, ds.ID)
	assert.Len(t, ds.Fingerprint, 64)
	assert.Equal(t, FormatCSV, ds.Format)
	assert.Empty(t, ds.Diagnostics.UnknownCurrencies)
}

func TestIngestStatusFilter(t *testing.T) {
	body := "2025-01-10,A,Acme,LON,1,0,0,0,0,100,120,EUR,,,440-BILLED,GB\n" +
		"2025-01-11,A,Acme,LON,2,0,0,0,0,50,0,EUR,,,300-PENDING,GB\n" +
		"2025-01-12,B,Beta,LON,3,0,0,0,0,10,5,EUR,,, 440-BILLED ,GB\n"

	filtered, err := newTestIngester(t, true, nil).Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)
	assert.Len(t, filtered.Records, 2)
	assert.Equal(t, 1, filtered.Diagnostics.RowsDroppedByStatus)
	assert.Equal(t, 3, filtered.Diagnostics.RowsRead)
	assert.True(t, filtered.StatusFiltered)
	for _, rec := range filtered.Records {
		assert.Equal(t, orders.StatusBilled, rec.Status)
	}

	all, err := newTestIngester(t, false, nil).Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)
	assert.Len(t, all.Records, 3)
}

func TestIngestUnknownCurrencyNoticedOncePerCode(t *testing.T) {
	body := "2025-01-10,A,Acme,,1,0,0,0,0,100,0,CHF,,,440-BILLED,CH\n" +
		"2025-01-11,A,Acme,,2,0,0,0,0,40,0,chf,,,440-BILLED,CH\n" +
		"2025-01-12,B,Beta,,3,0,0,0,0,7,0,JPY,,,440-BILLED,JP\n" +
		"2025-01-13,C,Core,,4,0,0,0,0,0,0,SEK,,,440-BILLED,SE\n" +
		"2025-01-14,D,Dyna,,5,0,0,0,0,9,0,,,,440-BILLED,DE\n" +
		"2025-01-15,E,Epsi,,6,0,0,0,0,3,0,nan,,,440-BILLED,DE\n"
	rec := &fakeRecorder{}
	ds, err := newTestIngester(t, false, rec).Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"CHF", "JPY"}, ds.Diagnostics.UnknownCurrencies)
	assert.Equal(t, 2, ds.Diagnostics.MissingCurrencyRows)
	assert.Equal(t, 100.0, ds.Records[0].Reporting.Total)
	assert.Equal(t, 40.0, ds.Records[1].Reporting.Total)
	assert.Equal(t, 7.0, ds.Records[2].Reporting.Total)
	assert.Equal(t, 9.0, ds.Records[4].Reporting.Total)

	unknown := 0
	for _, n := range ds.Diagnostics.Notices {
		if n.Kind == NoticeUnknownCurrency {
			unknown++
		}
	}
	assert.Equal(t, 2, unknown)
	assert.Equal(t, []string{"success"}, rec.outcomes)
	assert.Equal(t, 6, rec.rows)
	assert.Equal(t, 2, rec.notices[string(NoticeUnknownCurrency)])

	var chf *CurrencyCount
	for i := range ds.Currencies {
		if ds.Currencies[i].Code == "CHF" {
			chf = &ds.Currencies[i]
		}
	}
	require.NotNil(t, chf)
	assert.Equal(t, 2, chf.Rows)
	assert.False(t, chf.Known)
	assert.Equal(t, 1.0, chf.Rate)
}

func TestIngestRowDefectsDegrade(t *testing.T) {
	body := "not a date,A,Acme,,1,\"1,000\",abc,,,\"1,000.50\",x,EUR,,,440-BILLED,\n"
	ds, err := newTestIngester(t, false, nil).Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)

	rec := ds.Records[0]
	assert.Equal(t, orders.UnknownMonth, rec.Month)
	assert.False(t, rec.DateValid)
	assert.Equal(t, 1000.0, rec.Reporting.Pickup)
	assert.Equal(t, 0.0, rec.Reporting.Shipping)
	assert.Equal(t, 1000.50, rec.Reporting.Total)
	assert.Equal(t, 0.0, rec.Reporting.Net)
	assert.Equal(t, 1, ds.Diagnostics.UnparseableDates)
	assert.Equal(t, 2, ds.Diagnostics.CoercedAmounts)
	assert.Equal(t, orders.UnknownCountry, rec.Country())
}

func TestIngestColumnResolution(t *testing.T) {
	src := Source{Name: "orders.csv", Reader: strings.NewReader(
		"  ORD DT ,acct, ACCT NM ,Total cost ,NET,curr\n2025-04-02,A,Acme,10,12,GBP\n",
	)}
	ds, err := newTestIngester(t, false, nil).Ingest(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	rec := ds.Records[0]
	assert.Equal(t, "A", rec.AccountID)
	assert.Equal(t, "Acme", rec.AccountName)
	assert.InDelta(t, 11.7, rec.Reporting.Total, 1e-9)
	assert.Equal(t, "2025-04", rec.Month)
	assert.Contains(t, ds.Diagnostics.MissingColumns, orders.ColManufacturing)
	assert.Contains(t, ds.Diagnostics.MissingColumns, orders.ColStatus)
	assert.Equal(t, 0.0, rec.Reporting.Manufacturing)
}

func TestIngestRequiredColumns(t *testing.T) {
	noCurrency := Source{Name: "orders.csv", Reader: strings.NewReader("ACCT,Total cost,STATUS\nA,1,440-BILLED\n")}
	_, err := newTestIngester(t, false, nil).Ingest(context.Background(), noCurrency)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "CURR")
	assert.True(t, IsSourceError(err))

	noStatus := Source{Name: "orders.csv", Reader: strings.NewReader("ACCT,Total cost,CURR\nA,1,EUR\n")}
	rec := &fakeRecorder{}
	_, err = newTestIngester(t, true, rec).Ingest(context.Background(), noStatus)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Equal(t, []string{"failure"}, rec.outcomes)

	noStatus.Reader = strings.NewReader("ACCT,Total cost,CURR\nA,1,EUR\n")
	ds, err := newTestIngester(t, false, nil).Ingest(context.Background(), noStatus)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)
}

func TestIngestSourceFailures(t *testing.T) {
	ing := newTestIngester(t, false, nil)

	_, err := ing.Ingest(context.Background(), Source{Name: "orders.csv", Reader: strings.NewReader("  \n")})
	require.ErrorIs(t, err, ErrEmptySource)

	_, err = ing.Ingest(context.Background(), Source{Name: "orders.xls", Reader: strings.NewReader("whatever")})
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ing.Ingest(context.Background(), Source{Name: "orders.xlsx", Reader: strings.NewReader("not a zip")})
	require.ErrorIs(t, err, ErrUnreadableSource)

	_, err = ing.Ingest(context.Background(), Source{Name: "orders.csv", Reader: strings.NewReader(",,\n,,\n")})
	require.ErrorIs(t, err, ErrMissingHeader)

	_, err = ing.Ingest(context.Background(), Source{Name: "orders.csv"})
	require.ErrorIs(t, err, ErrEmptySource)
}

func TestIngestHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestIngester(t, false, nil).Ingest(ctx, csvSource("2025-01-10,A,Acme,,1,0,0,0,0,1,1,EUR,,,440-BILLED,GB\n"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestIngestWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{
		"ORD DT", "ACCT", "ACCT NM", "PU COST", "Total cost", "NET", "CURR", "STATUS", "PU CTRY",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{
		time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), 1001, "Acme", "1,250.00", 1250.0, 1300.0, "usd", "440-BILLED", "US",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{
		"2025-04-01", 1002, "Beta", 0, 80.0, 100.0, "EUR", "300-PENDING", "DE",
	}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ing := newTestIngester(t, true, nil)
	fixed := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
	ing.WithNow(func() time.Time { return fixed })
	ds, err := ing.Ingest(context.Background(), Source{Name: "upload", Reader: bytes.NewReader(buf.Bytes())})
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, ds.Format)
	assert.Equal(t, fixed, ds.IngestedAt)
	require.Len(t, ds.Records, 1)
	rec := ds.Records[0]
	assert.Equal(t, "1001", rec.AccountID)
	assert.Equal(t, "2025-03", rec.Month)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, 2, rec.Row)
	assert.InDelta(t, 1150.0, rec.Reporting.Pickup, 1e-9)
	assert.InDelta(t, 1150.0, rec.Reporting.Total, 1e-9)
	assert.InDelta(t, 1196.0, rec.Reporting.Net, 1e-9)
}

func TestIngestFingerprintStable(t *testing.T) {
	body := "2025-01-10,A,Acme,,1,0,0,0,0,1,1,EUR,,,440-BILLED,GB\n"
	ing := newTestIngester(t, false, nil)
	first, err := ing.Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)
	second, err := ing.Ingest(context.Background(), csvSource(body))
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestIngestSemicolonCSV(t *testing.T) {
	src := Source{Name: "orders.csv", Reader: strings.NewReader("ACCT;Total cost;CURR\nA;\"1,500\";GBP\n")}
	ds, err := newTestIngester(t, false, nil).Ingest(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.InDelta(t, 1755.0, ds.Records[0].Reporting.Total, 1e-9)
}

func TestStoreReplace(t *testing.T) {
	store := NewStore()
	_, err := store.Current()
	require.ErrorIs(t, err, ErrNoDataset)

	first := &Dataset{ID: "one"}
	assert.Nil(t, store.Replace(first))
	second := &Dataset{ID: "two"}
	assert.Same(t, first, store.Replace(second))

	current, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "two", current.ID)
}
