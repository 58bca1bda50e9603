// Package analytics computes aggregate views over the active order dataset.
package analytics

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/costlens/internal/ingest"
	"github.com/odyssey-erp/costlens/internal/orders"
)

// DatasetStore exposes the active dataset.
type DatasetStore interface {
	Current() (*ingest.Dataset, error)
	Replace(ds *ingest.Dataset) *ingest.Dataset
}

// Service coordinates view computation with the cache layer.
type Service struct {
	store  DatasetStore
	cache  *Cache
	opts   Options
	logger *slog.Logger
	group  singleflight.Group
}

// NewService wires a dataset store with a Cache helper. The cache may be nil.
func NewService(store DatasetStore, cache *Cache, opts Options) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Service{store: store, cache: cache, opts: opts, logger: slog.Default()}, nil
}

// WithLogger overrides the service logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Options returns the pipeline options.
func (s *Service) Options() Options {
	return s.opts
}

// Activate installs ds as the active dataset and invalidates cached views.
func (s *Service) Activate(ctx context.Context, ds *ingest.Dataset) error {
	prev := s.store.Replace(ds)
	if prev != nil {
		s.logger.Info("replaced active dataset",
			slog.String("previous_id", prev.ID),
			slog.String("dataset_id", ds.ID))
	}
	return s.cache.Bump(ctx)
}

// Dataset returns the active dataset.
func (s *Service) Dataset(ctx context.Context) (*ingest.Dataset, error) {
	return s.store.Current()
}

// Records returns the filtered records of the active dataset.
func (s *Service) Records(ctx context.Context, filter Filter) ([]orders.Record, error) {
	ds, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	return Apply(ds.Records, filter), nil
}

// Totals returns the headline indicators.
func (s *Service) Totals(ctx context.Context, filter Filter) (Totals, error) {
	return cachedView(ctx, s, "totals", filter, ComputeTotals)
}

// Breakdown returns the cost split by component.
func (s *Service) Breakdown(ctx context.Context, filter Filter) (Breakdown, error) {
	return cachedView(ctx, s, "breakdown", filter, ComputeBreakdown)
}

// Accounts returns every account aggregate in first-encountered order.
func (s *Service) Accounts(ctx context.Context, filter Filter) ([]AccountAggregate, error) {
	return cachedView(ctx, s, "accounts", filter, GroupByAccount)
}

// Ranking returns the top n accounts by metric; n <= 0 uses Options.TopN.
func (s *Service) Ranking(ctx context.Context, filter Filter, metric Metric, n int) ([]AccountAggregate, error) {
	if n <= 0 {
		n = s.opts.TopN
	}
	return cachedView(ctx, s, "ranking", filter, func(records []orders.Record) []AccountAggregate {
		return Rank(GroupByAccount(records), metric, n)
	}, string(metric), strconv.Itoa(n))
}

// DifferenceTable returns the Options.TableN accounts with the largest
// absolute margin.
func (s *Service) DifferenceTable(ctx context.Context, filter Filter) ([]AccountAggregate, error) {
	return s.Ranking(ctx, filter, MetricAbsMargin, s.opts.TableN)
}

// Pareto returns the cumulative cost analysis.
func (s *Service) Pareto(ctx context.Context, filter Filter) (Pareto, error) {
	return cachedView(ctx, s, "pareto", filter, func(records []orders.Record) Pareto {
		return ComputePareto(GroupByAccount(records))
	})
}

// Monthly returns the monthly cost trend.
func (s *Service) Monthly(ctx context.Context, filter Filter) ([]MonthlyPoint, error) {
	return cachedView(ctx, s, "monthly", filter, ComputeMonthly)
}

// Countries returns the Options.TopN countries by cost.
func (s *Service) Countries(ctx context.Context, filter Filter) ([]CountryTotal, error) {
	n := s.opts.TopN
	return cachedView(ctx, s, "countries", filter, func(records []orders.Record) []CountryTotal {
		return ComputeCountries(records, n)
	}, strconv.Itoa(n))
}

// Statuses returns the Options.StatusTopN most frequent statuses.
func (s *Service) Statuses(ctx context.Context, filter Filter) ([]StatusCount, error) {
	n := s.opts.StatusTopN
	return cachedView(ctx, s, "statuses", filter, func(records []orders.Record) []StatusCount {
		return ComputeStatuses(records, n)
	}, strconv.Itoa(n))
}

// Problems returns accounts below Options.MarginFloor or billing no net.
func (s *Service) Problems(ctx context.Context, filter Filter) (ProblemReport, error) {
	floor := s.opts.MarginFloor
	return cachedView(ctx, s, "problems", filter, func(records []orders.Record) ProblemReport {
		return ComputeProblems(GroupByAccount(records), floor)
	}, strconv.FormatFloat(floor, 'f', -1, 64))
}

// Choices returns the distinct filter values of the active dataset.
func (s *Service) Choices(ctx context.Context) (FilterChoices, error) {
	return cachedView(ctx, s, "choices", Filter{}, Choices)
}

// Currencies returns the currency distribution recorded at ingestion.
func (s *Service) Currencies(ctx context.Context) ([]ingest.CurrencyCount, error) {
	ds, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	return ds.Currencies, nil
}

// cachedView computes a view over the filtered records of the active
// dataset, going through the cache when one is configured. Concurrent
// requests for the same key share one computation.
func cachedView[T any](ctx context.Context, s *Service, view string, filter Filter, compute func([]orders.Record) T, extra ...string) (T, error) {
	var zero T
	ds, err := s.store.Current()
	if err != nil {
		return zero, err
	}
	filter = filter.Normalize()
	loader := func(ctx context.Context) (any, error) {
		return compute(Apply(ds.Records, filter)), nil
	}
	keyBase := keyView(ds.Fingerprint, ds.StatusFiltered, view, filter, extra...)

	value, err, _ := s.group.Do(keyBase, func() (interface{}, error) {
		if s.cache == nil {
			return loader(ctx)
		}
		key, err := s.cache.BuildKey(ctx, keyBase)
		if err != nil {
			s.logger.Warn("build view cache key", slog.String("view", view), slog.Any("error", err))
			return loader(ctx)
		}
		var result T
		if err := s.cache.FetchJSON(ctx, key, &result, loader); err != nil {
			s.logger.Warn("fetch cached view", slog.String("view", view), slog.Any("error", err))
			return loader(ctx)
		}
		return result, nil
	})
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}
