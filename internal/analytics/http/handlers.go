package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/costlens/internal/analytics"
	"github.com/odyssey-erp/costlens/internal/analytics/export"
	"github.com/odyssey-erp/costlens/internal/ingest"
	"github.com/odyssey-erp/costlens/internal/orders"
	"github.com/odyssey-erp/costlens/internal/platform/httpx"
)

const (
	requestTimeout = 2 * time.Second
	ingestTimeout  = time.Minute
	maxViewN       = 1000
	// DefaultMaxUpload bounds request bodies of dataset uploads.
	DefaultMaxUpload int64 = 32 << 20
)

// AnalyticsService defines the view contract used by the handler.
type AnalyticsService interface {
	Activate(ctx context.Context, ds *ingest.Dataset) error
	Dataset(ctx context.Context) (*ingest.Dataset, error)
	Records(ctx context.Context, filter analytics.Filter) ([]orders.Record, error)
	Totals(ctx context.Context, filter analytics.Filter) (analytics.Totals, error)
	Breakdown(ctx context.Context, filter analytics.Filter) (analytics.Breakdown, error)
	Accounts(ctx context.Context, filter analytics.Filter) ([]analytics.AccountAggregate, error)
	Ranking(ctx context.Context, filter analytics.Filter, metric analytics.Metric, n int) ([]analytics.AccountAggregate, error)
	DifferenceTable(ctx context.Context, filter analytics.Filter) ([]analytics.AccountAggregate, error)
	Pareto(ctx context.Context, filter analytics.Filter) (analytics.Pareto, error)
	Monthly(ctx context.Context, filter analytics.Filter) ([]analytics.MonthlyPoint, error)
	Countries(ctx context.Context, filter analytics.Filter) ([]analytics.CountryTotal, error)
	Statuses(ctx context.Context, filter analytics.Filter) ([]analytics.StatusCount, error)
	Problems(ctx context.Context, filter analytics.Filter) (analytics.ProblemReport, error)
	Choices(ctx context.Context) (analytics.FilterChoices, error)
	Currencies(ctx context.Context) ([]ingest.CurrencyCount, error)
}

// DatasetIngester turns an uploaded file into a dataset.
type DatasetIngester interface {
	Ingest(ctx context.Context, src ingest.Source) (*ingest.Dataset, error)
}

// Handler coordinates HTTP requests for dataset uploads, views and exports.
type Handler struct {
	logger    *slog.Logger
	service   AnalyticsService
	ingester  DatasetIngester
	maxUpload int64
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the analytics HTTP handler. maxUpload <= 0 selects
// DefaultMaxUpload.
func NewHandler(logger *slog.Logger, service AnalyticsService, ingester DatasetIngester, maxUpload int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		ingester:  ingester,
		maxUpload: maxUpload,
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// datasetSummary is the JSON shape of a dataset without its records.
type datasetSummary struct {
	*ingest.Dataset
	Records int `json:"records"`
}

func summarize(ds *ingest.Dataset) datasetSummary {
	return datasetSummary{Dataset: ds, Records: len(ds.Records)}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = strings.TrimSpace(r.Header.Get("X-Filename"))
	}
	format := ingest.Format(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))

	body := http.MaxBytesReader(w, r.Body, h.maxUpload)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, fmt.Errorf("%w: limit is %d bytes", httpx.ErrTooLarge, tooLarge.Limit))
			return
		}
		h.respondError(w, "read upload", fmt.Errorf("%w: %v", ingest.ErrUnreadableSource, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ingestTimeout)
	defer cancel()

	ds, err := h.ingester.Ingest(ctx, ingest.Source{Name: name, Format: format, Reader: bytes.NewReader(data)})
	if err != nil {
		h.respondError(w, "ingest upload", err)
		return
	}
	if err := h.service.Activate(ctx, ds); err != nil {
		h.respondError(w, "activate dataset", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summarize(ds))
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Dataset(r.Context())
	if err != nil {
		h.respondError(w, "current dataset", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarize(ds))
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var (
		result any
		err    error
	)
	switch view := chi.URLParam(r, "view"); view {
	case "totals":
		result, err = h.service.Totals(ctx, filter)
	case "breakdown":
		result, err = h.service.Breakdown(ctx, filter)
	case "accounts":
		result, err = h.service.Accounts(ctx, filter)
	case "ranking":
		result, err = h.ranking(ctx, r, filter)
	case "difference":
		result, err = h.service.DifferenceTable(ctx, filter)
	case "pareto":
		result, err = h.service.Pareto(ctx, filter)
	case "monthly":
		result, err = h.service.Monthly(ctx, filter)
	case "countries":
		result, err = h.service.Countries(ctx, filter)
	case "statuses":
		result, err = h.service.Statuses(ctx, filter)
	case "problems":
		result, err = h.service.Problems(ctx, filter)
	case "currencies":
		result, err = h.service.Currencies(ctx)
	case "filters":
		result, err = h.service.Choices(ctx)
	default:
		httpx.RespondError(w, fmt.Errorf("%w: unknown view %q", httpx.ErrNotFound, view))
		return
	}
	if err != nil {
		h.respondError(w, "load view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) ranking(ctx context.Context, r *http.Request, filter analytics.Filter) ([]analytics.AccountAggregate, error) {
	metric, err := analytics.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		return nil, err
	}
	n, err := parseN(r)
	if err != nil {
		return nil, err
	}
	return h.service.Ranking(ctx, filter, metric, n)
}

// dashboard bundles the views shown together on the overview page.
type dashboard struct {
	Totals      analytics.Totals             `json:"totals"`
	Breakdown   analytics.Breakdown          `json:"breakdown"`
	TopAccounts []analytics.AccountAggregate `json:"top_accounts"`
	Difference  []analytics.AccountAggregate `json:"difference"`
	Pareto      analytics.Pareto             `json:"pareto"`
	Monthly     []analytics.MonthlyPoint     `json:"monthly"`
	Countries   []analytics.CountryTotal     `json:"countries"`
	Statuses    []analytics.StatusCount      `json:"statuses"`
	Currencies  []ingest.CurrencyCount       `json:"currencies"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadDashboard(ctx, filter)
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) loadDashboard(ctx context.Context, filter analytics.Filter) (dashboard, error) {
	var data dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		data.Totals, err = h.service.Totals(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.Breakdown, err = h.service.Breakdown(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.TopAccounts, err = h.service.Ranking(ctx, filter, analytics.MetricTotalCost, 0)
		return err
	})
	g.Go(func() (err error) {
		data.Difference, err = h.service.DifferenceTable(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.Pareto, err = h.service.Pareto(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.Monthly, err = h.service.Monthly(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.Countries, err = h.service.Countries(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.Statuses, err = h.service.Statuses(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.Currencies, err = h.service.Currencies(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return dashboard{}, err
	}
	return data, nil
}

func (h *Handler) handleRecordsCSV(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	records, err := h.service.Records(ctx, filter)
	if err != nil {
		h.respondError(w, "load records", err)
		return
	}
	h.streamCSV(w, export.RecordsFilename(h.now()), func(buf *bytes.Buffer) error {
		return export.WriteRecordsCSV(buf, records)
	})
}

func (h *Handler) handleAccountsCSV(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	aggs, err := h.service.Ranking(ctx, filter, analytics.MetricAbsMargin, maxViewN)
	if err != nil {
		h.respondError(w, "load account summary", err)
		return
	}
	h.streamCSV(w, export.AccountsFilename(h.now()), func(buf *bytes.Buffer) error {
		return export.WriteAccountSummaryCSV(buf, aggs)
	})
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, write func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.respondError(w, "write csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case ingest.IsSourceError(err):
		h.logger.Warn(op, slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnprocessable, err))
	case errors.Is(err, ingest.ErrNoDataset):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, analytics.ErrInvalidOptions), errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		h.logError(op, err)
		httpx.RespondError(w, err)
	}
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

func parseFilter(r *http.Request) analytics.Filter {
	q := r.URL.Query()
	return analytics.Filter{
		Accounts:  q["account"],
		Countries: q["country"],
		Statuses:  q["status"],
	}.Normalize()
}

func parseN(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("n"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxViewN {
		return 0, fmt.Errorf("%w: n must be between 1 and %d", httpx.ErrValidation, maxViewN)
	}
	return n, nil
}
