package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/costlens/internal/analytics"
	"github.com/odyssey-erp/costlens/internal/ingest"
	jobmetrics "github.com/odyssey-erp/costlens/internal/jobs"
)

const warmupTimeout = 20 * time.Second

// SourceIngester turns a source into a dataset.
type SourceIngester interface {
	Ingest(ctx context.Context, src ingest.Source) (*ingest.Dataset, error)
}

// DatasetActivator installs datasets and computes the views warmed after a
// refresh.
type DatasetActivator interface {
	Activate(ctx context.Context, ds *ingest.Dataset) error
	Totals(ctx context.Context, filter analytics.Filter) (analytics.Totals, error)
	Monthly(ctx context.Context, filter analytics.Filter) ([]analytics.MonthlyPoint, error)
	DifferenceTable(ctx context.Context, filter analytics.Filter) ([]analytics.AccountAggregate, error)
}

// DatasetRefreshJob re-ingests a source file from disk.
type DatasetRefreshJob struct {
	Ingester  SourceIngester
	Analytics DatasetActivator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
	open      func(path string) (io.ReadCloser, error)
}

// NewDatasetRefreshJob wires dependencies for the refresh handler.
func NewDatasetRefreshJob(ingester SourceIngester, svc DatasetActivator, logger *slog.Logger, metrics *jobmetrics.Metrics) *DatasetRefreshJob {
	return &DatasetRefreshJob{
		Ingester:  ingester,
		Analytics: svc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Handle processes dataset refresh tasks. Defects of the source file are
// not retried.
func (j *DatasetRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("dataset refresh: handler not configured")
	}
	var payload DatasetRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if strings.TrimSpace(payload.Path) == "" {
		return asynq.SkipRetry
	}
	_, err := j.Refresh(ctx, payload.Path)
	if ingest.IsSourceError(err) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}

// Refresh ingests the file at path, activates it and warms the default views.
func (j *DatasetRefreshJob) Refresh(ctx context.Context, path string) (ds *ingest.Dataset, resultErr error) {
	tracker := j.metrics().Track("dataset_refresh")
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("path", path))
	start := j.now()
	logger.Info("starting dataset refresh")

	f, err := j.open(path)
	if err != nil {
		logger.Error("open source", slog.Any("error", err))
		return nil, fmt.Errorf("dataset refresh: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	ds, err = j.Ingester.Ingest(ctx, ingest.Source{Name: filepath.Base(path), Reader: f})
	if err != nil {
		return nil, err
	}
	if err := j.Analytics.Activate(ctx, ds); err != nil {
		logger.Error("activate dataset", slog.Any("error", err))
		return nil, err
	}
	j.warm(ctx, logger)

	logger.Info("completed dataset refresh",
		slog.String("dataset_id", ds.ID),
		slog.Int("records", len(ds.Records)),
		slog.Duration("duration", j.now().Sub(start)))
	return ds, nil
}

func (j *DatasetRefreshJob) warm(ctx context.Context, logger *slog.Logger) {
	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	var all analytics.Filter
	if _, err := j.Analytics.Totals(warmCtx, all); err != nil {
		logger.Warn("warm totals", slog.Any("error", err))
		return
	}
	if _, err := j.Analytics.Monthly(warmCtx, all); err != nil {
		logger.Warn("warm monthly", slog.Any("error", err))
		return
	}
	if _, err := j.Analytics.DifferenceTable(warmCtx, all); err != nil {
		logger.Warn("warm difference table", slog.Any("error", err))
	}
}

func (j *DatasetRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DatasetRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDatasetRefresh))
	}
	return slog.Default().With(slog.String("job", TaskDatasetRefresh))
}

func (j *DatasetRefreshJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
