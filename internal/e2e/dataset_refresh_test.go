package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/costlens/internal/analytics"
	analytichttp "github.com/odyssey-erp/costlens/internal/analytics/http"
	"github.com/odyssey-erp/costlens/internal/app"
	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/ingest"
	jobmetrics "github.com/odyssey-erp/costlens/internal/jobs"
	"github.com/odyssey-erp/costlens/internal/observability"
	_ "github.com/odyssey-erp/costlens/internal/testing/guard"
	"github.com/odyssey-erp/costlens/jobs"
)

const source = "ORD DT,ACCT,ACCT NM,OFC,ORD#,PU COST,SHIP COST,MAN COST,DEL COST,Total cost,NET,CURR,INV#,TOTAL$,STATUS,PU CTRY\n" +
	"2025-01-10,A,Acme,LON,1,60,40,0,0,100,120,EUR,INV1,120,440-BILLED,GB\n" +
	"2025-01-11,A,Acme,LON,2,0,50,0,0,50,0,GBP,INV2,0,440-BILLED,GB\n" +
	"2025-02-01,B,Beta,NYC,3,10,0,0,0,10,5,USD,INV3,5,440-BILLED,US\n" +
	"2025-02-02,C,Core,PAR,4,5,0,0,0,5,5,EUR,INV4,5,300-PENDING,FR\n"

type harness struct {
	router   http.Handler
	job      *jobs.DatasetRefreshJob
	registry *prometheus.Registry
}

func newHarness(t *testing.T) harness {
	t.Helper()
	if !app.InTestMode() {
		t.Fatalf("expected test mode to be enabled by the guard import")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &app.Config{AppEnv: "test", StatusFilter: true, TopN: 10, TableN: 15, StatusTopN: 8}
	rates := fx.DefaultRates()
	metrics := observability.NewMetrics()
	registry := prometheus.NewRegistry()
	jobMetrics := jobmetrics.NewMetrics(registry)

	viewCache := analytics.NewCache(client, time.Minute).WithObserver(metrics)
	svc, err := analytics.NewService(ingest.NewStore(), viewCache, cfg.AnalyticsOptions(rates))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ingester := ingest.NewIngester(cfg.IngestOptions(rates), logger, metrics)
	job := jobs.NewDatasetRefreshJob(ingester, svc, logger, jobMetrics)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analytichttp.NewHandler(logger, svc, ingester, 0),
		JobHandler:       jobs.NewHandler(nil, logger),
		Metrics:          metrics,
	})
	return harness{router: router, job: job, registry: registry}
}

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestDatasetRefreshServesViews(t *testing.T) {
	h := newHarness(t)
	task, err := jobs.NewDatasetRefreshTask(jobs.DatasetRefreshPayload{Path: writeSource(t, source)})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := h.job.Handle(context.Background(), task); err != nil {
		t.Fatalf("job handle: %v", err)
	}

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/views/totals", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var totals analytics.Totals
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.Orders != 3 {
		t.Fatalf("expected 3 billed orders, got %d", totals.Orders)
	}

	rr = httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected jobs health 200, got %d", rr.Code)
	}

	families, err := h.registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "costlens_jobs_total", map[string]string{"job": "dataset_refresh", "status": "success"}, 1) {
		t.Fatalf("expected costlens_jobs_total increment for dataset refresh")
	}
	if !metricExists(families, "costlens_job_duration_seconds") {
		t.Fatalf("expected costlens_job_duration_seconds to be recorded")
	}
}

func TestDatasetRefreshFailureKeepsServing(t *testing.T) {
	h := newHarness(t)
	if _, err := h.job.Refresh(context.Background(), writeSource(t, source)); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	task, err := jobs.NewDatasetRefreshTask(jobs.DatasetRefreshPayload{Path: writeSource(t, "ACCT,NET\nA,1\n")})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	err = h.job.Handle(context.Background(), task)
	if err == nil {
		t.Fatalf("expected refresh of a malformed source to fail")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/datasets/current", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected previous dataset to stay active, got %d", rr.Code)
	}

	families, err := h.registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "costlens_jobs_failures_total", map[string]string{"job": "dataset_refresh"}, 1) {
		t.Fatalf("expected a recorded refresh failure")
	}
}

func assertCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
