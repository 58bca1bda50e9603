package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/costlens/internal/analytics"
	analytichttp "github.com/odyssey-erp/costlens/internal/analytics/http"
	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/ingest"
	"github.com/odyssey-erp/costlens/internal/observability"
)

func testRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", StatusFilter: true, TopN: 10, TableN: 15, StatusTopN: 8}
	rates := fx.DefaultRates()
	metrics := observability.NewMetrics()
	svc, err := analytics.NewService(ingest.NewStore(), nil, cfg.AnalyticsOptions(rates))
	require.NoError(t, err)
	ingester := ingest.NewIngester(cfg.IngestOptions(rates), logger, metrics)
	handler := analytichttp.NewHandler(logger, svc, ingester, 0)
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: handler,
		Metrics:          metrics,
	}), metrics
}

func TestRouterHealthz(t *testing.T) {
	r, _ := testRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterRecordsIngestMetrics(t *testing.T) {
	r, _ := testRouter(t)
	body := "ORD DT,ACCT,ACCT NM,Total cost,NET,CURR,STATUS\n" +
		"2025-01-10,A,Acme,100,120,XYZ,440-BILLED\n"
	req := httptest.NewRequest(http.MethodPost, "/datasets?name=orders.csv", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	metrics := rr.Body.String()
	assert.Contains(t, metrics, `costlens_ingest_total{outcome="success"} 1`)
	assert.Contains(t, metrics, `costlens_ingest_notices_total{kind="unknown_currency"} 1`)
	assert.Contains(t, metrics, `costlens_http_requests_total{code="201",route="/datasets"} 1`)
}
